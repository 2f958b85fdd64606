package av

import (
	"context"
	"testing"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, func(context.Context, asset.Handle, *asset.VideoFile) (Decoder, error) { return nil, nil }, SessionConfig{})
	assert.Error(t, err)

	_, err = NewManager(&fakeSource{}, nil, SessionConfig{})
	assert.Error(t, err)
}

func TestReplaceReleasesPreviousSessionFirst(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	a := h.load("a.mp4", 10*time.Second)
	require.NoError(t, a.Play())
	h.tp.Advance(time.Second)
	h.tick(TickDisplay, "a.mp4")

	b := h.load("b.mp4", 10*time.Second)

	assert.Same(t, b, h.mgr.Active())
	assert.Equal(t, StateTornDown, a.Lifecycle())
	assert.Equal(t, StateReady, b.Lifecycle())

	activateB := h.log.index("audio.activate:b.mp4")
	require.NotEqual(t, -1, activateB)
	for _, event := range []string{
		"ticks.stop:progress:a.mp4",
		"ticks.stop:display:a.mp4",
		"audio.deactivate:a.mp4",
		"decoder.close:a.mp4",
		"scope.stop:a.mp4",
	} {
		idx := h.log.index(event)
		require.NotEqual(t, -1, idx, event)
		assert.Less(t, idx, activateB, event)
	}

	h.mu.Lock()
	progressA, displayA := h.ticks["progress:a.mp4"], h.ticks["display:a.mp4"]
	h.mu.Unlock()
	assert.True(t, progressA.Stopped())
	assert.True(t, displayA.Stopped())
	assert.False(t, progressA.Fire(h.tp.Now()))
	assert.Nil(t, a.CurrentFrame(h.tp.Now()))
}

func TestTeardownOrder(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)
	require.NoError(t, s.Play())

	require.NoError(t, h.mgr.Release())
	assert.Nil(t, h.mgr.Active())

	events := h.log.snapshot()
	var teardown []string
	for _, e := range events {
		switch e {
		case "ticks.stop:progress:a.mp4", "ticks.stop:display:a.mp4",
			"audio.deactivate:a.mp4", "decoder.close:a.mp4", "scope.stop:a.mp4":
			teardown = append(teardown, e)
		}
	}
	assert.Equal(t, []string{
		"ticks.stop:progress:a.mp4",
		"ticks.stop:display:a.mp4",
		"audio.deactivate:a.mp4",
		"decoder.close:a.mp4",
		"scope.stop:a.mp4",
	}, teardown)

	assert.ErrorIs(t, h.mgr.Release(), ErrNoActiveSession)
}

func TestTeardownWaitsForSeekInFlight(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	gate := make(chan struct{})
	h.configure = func(d *fakeDecoder) { d.seekGate = gate }
	s := h.load("a.mp4", 10*time.Second)

	require.True(t, s.Seeker().Seek(0.5))
	require.NoError(t, h.mgr.Release())

	assert.Equal(t, StateTornDown, s.Lifecycle())
	assert.Empty(t, h.log.with("decoder.seek:"), "cancelled seek never reached the decoder")
}

func TestReplaceRejectsImages(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	handle, err := asset.NewHandle("pano.jpg", asset.KindImage, 4096, 2048)
	require.NoError(t, err)

	_, err = h.mgr.Replace(context.Background(), handle)
	assert.ErrorIs(t, err, asset.ErrUnsupportedKind)
}

func TestLoadFailureLeavesSlotEmpty(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	a := h.load("a.mp4", 10*time.Second)

	h.source.missing["gone.mp4"] = true
	handle, err := asset.NewHandle("gone.mp4", asset.KindVideo, 0, 0)
	require.NoError(t, err)

	_, err = h.mgr.Replace(context.Background(), handle)
	assert.ErrorIs(t, err, asset.ErrAssetUnavailable)
	assert.Nil(t, h.mgr.Active())
	assert.Equal(t, StateTornDown, a.Lifecycle())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.mgr.Metrics().LoadFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.mgr.Metrics().ActiveSessions))
}

func TestLoadFailureReleasesPartialResources(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	handle, err := asset.NewHandle("undecodable.mp4", asset.KindVideo, 0, 0)
	require.NoError(t, err)

	// The decoder factory has no media for this id.
	_, err = h.mgr.Replace(context.Background(), handle)
	assert.ErrorIs(t, err, asset.ErrAssetUnavailable)

	assert.Equal(t, []string{"scope.start:undecodable.mp4", "scope.stop:undecodable.mp4"}, h.log.with("scope."))
}

func TestClosedManagerRefusesSessions(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	s := h.load("a.mp4", 10*time.Second)

	require.NoError(t, h.mgr.Close())
	require.NoError(t, h.mgr.Close())
	assert.Equal(t, StateTornDown, s.Lifecycle())

	handle, err := asset.NewHandle("b.mp4", asset.KindVideo, 0, 0)
	require.NoError(t, err)
	_, err = h.mgr.Replace(context.Background(), handle)
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestClaimOccupiedSlotPanics(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	a := h.load("a.mp4", 10*time.Second)

	assert.PanicsWithError(t, "playback session conflict: session "+a.ID()+" claimed an occupied slot", func() {
		h.mgr.mu.Lock()
		defer h.mgr.mu.Unlock()
		h.mgr.claimLocked(a)
	})
}

func TestManagerMetrics(t *testing.T) {
	h := newHarness(t, DefaultSessionConfig())
	h.load("a.mp4", 10*time.Second)
	h.load("b.mp4", 10*time.Second)

	m := h.mgr.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTornDown))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}
