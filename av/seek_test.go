package av

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeekHalfwayWhilePlayingResumes(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)

	require.NoError(t, s.Play())
	h.tp.Advance(2 * time.Second)

	require.True(t, s.Seeker().Seek(0.5))
	require.NoError(t, waitSeek(t, done))

	state := s.State()
	assert.InDelta(t, 0.5, state.Progress, 1e-9)
	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsSeekInFlight)
	assert.False(t, state.IsScrubbing)
	assert.Equal(t, StatePlaying, s.Lifecycle())
	assert.Equal(t, 5*time.Second, s.Position())
	assert.Contains(t, h.log.snapshot(), "decoder.seek:a.mp4:5s")
}

func TestSeekWhilePausedStaysPaused(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)

	require.NoError(t, s.Play())
	require.NoError(t, s.Pause())

	require.True(t, s.Seeker().Seek(0.5))
	require.NoError(t, waitSeek(t, done))

	state := s.State()
	assert.InDelta(t, 0.5, state.Progress, 1e-9)
	assert.False(t, state.IsPlaying)
	assert.Equal(t, StatePaused, s.Lifecycle())

	h.tp.Advance(time.Second)
	assert.Equal(t, 5*time.Second, s.Position())
}

func TestSeekInFlightRejectsSecondSeek(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	gate := make(chan struct{})
	h.configure = func(d *fakeDecoder) { d.seekGate = gate }
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)

	require.True(t, s.Seeker().Seek(0.2))
	before := s.State()
	require.True(t, before.IsSeekInFlight)

	assert.False(t, s.Seeker().Seek(0.8))
	assert.Equal(t, before, s.State())

	close(gate)
	require.NoError(t, waitSeek(t, done))
	assert.InDelta(t, 0.2, s.State().Progress, 1e-9)
	assert.Len(t, h.log.with("decoder.seek:"), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.mgr.Metrics().Seeks.WithLabelValues(SeekResultRejected)))
}

func TestSeekWithUnknownDurationIsNoop(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("live.mp4", 0)
	require.NoError(t, s.Play())

	before := s.State()
	assert.False(t, s.Seeker().Seek(0.5))
	assert.Equal(t, before, s.State())
	assert.Empty(t, h.log.with("decoder.seek:"))
}

func TestFailedSeekFallsBackToPaused(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	seekErr := errors.New("no keyframe")
	h.configure = func(d *fakeDecoder) { d.seekErr = seekErr }
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)

	require.NoError(t, s.Play())
	h.tp.Advance(time.Second)
	require.True(t, s.Seeker().Seek(0.5))
	assert.ErrorIs(t, waitSeek(t, done), seekErr)

	state := s.State()
	assert.False(t, state.IsPlaying)
	assert.False(t, state.IsSeekInFlight)
	assert.False(t, state.IsScrubbing)
	assert.Equal(t, StatePaused, s.Lifecycle())
	assert.Equal(t, time.Second, s.Position())
}

func TestScrubOwnsProgress(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	require.NoError(t, s.Play())

	h.tp.Advance(time.Second)
	require.True(t, h.tick(TickProgress, "a.mp4"))
	assert.InDelta(t, 0.1, s.State().Progress, 1e-9)

	require.True(t, s.Seeker().BeginScrub())
	state := s.State()
	assert.True(t, state.IsScrubbing)
	assert.False(t, state.IsPlaying)

	require.True(t, s.Seeker().UpdateScrub(0.7))
	h.tp.Advance(time.Second)
	h.tick(TickProgress, "a.mp4")
	assert.InDelta(t, 0.7, s.State().Progress, 1e-9)
}

func TestUpdateScrubOutsideScrubIsIgnored(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)

	assert.False(t, s.Seeker().UpdateScrub(0.5))
	assert.False(t, s.Seeker().EndScrub(0.5))
	assert.Zero(t, s.State().Progress)
}

func TestEndScrubSeeksAndResumes(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)
	require.NoError(t, s.Play())

	require.True(t, s.Seeker().BeginScrub())
	s.Seeker().UpdateScrub(0.25)
	require.True(t, s.Seeker().EndScrub(0.3))
	require.NoError(t, waitSeek(t, done))

	state := s.State()
	assert.InDelta(t, 0.3, state.Progress, 1e-9)
	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsScrubbing)
	assert.Equal(t, 3*time.Second, s.Position())
}

func TestEndScrubWithoutDurationResumes(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("live.mp4", 0)
	require.NoError(t, s.Play())

	require.True(t, s.Seeker().BeginScrub())
	assert.False(t, s.Seeker().EndScrub(0.5))

	state := s.State()
	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsScrubbing)
}

func TestScrubDuringSeekIsNotCleared(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	gate := make(chan struct{})
	h.configure = func(d *fakeDecoder) { d.seekGate = gate }
	s := h.load("a.mp4", 10*time.Second)
	done := awaitSeek(s)
	require.NoError(t, s.Play())

	require.True(t, s.Seeker().Seek(0.4))
	require.True(t, s.Seeker().BeginScrub())

	close(gate)
	require.NoError(t, waitSeek(t, done))

	state := s.State()
	assert.True(t, state.IsScrubbing)
	assert.False(t, state.IsPlaying, "resume waits for the scrub to end")

	require.True(t, s.Seeker().EndScrub(0.9))
	require.NoError(t, waitSeek(t, done))
	state = s.State()
	assert.InDelta(t, 0.9, state.Progress, 1e-9)
	assert.True(t, state.IsPlaying)
}

func TestSeekAfterTeardownIsRejected(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	require.NoError(t, h.mgr.Release())

	assert.False(t, s.Seeker().Seek(0.5))
	assert.False(t, s.Seeker().BeginScrub())
}
