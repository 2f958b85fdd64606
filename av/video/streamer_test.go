package video

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// identityClock maps host time to media time measured from epoch.
var identityClock = ItemClockFunc(func(h time.Time) time.Duration { return h.Sub(epoch) })

func at(d time.Duration) time.Time { return epoch.Add(d) }

func mustFrame(t *testing.T, pts time.Duration) *Frame {
	t.Helper()
	f, err := NewFrame(16, 16, pts)
	require.NoError(t, err)
	return f
}

func enqueueAll(t *testing.T, s *Streamer, pts ...time.Duration) {
	t.Helper()
	for _, p := range pts {
		require.NoError(t, s.Enqueue(context.Background(), mustFrame(t, p)))
	}
}

func TestTakeFrameReturnsNewestDueFrame(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{QueueDepth: 8})
	enqueueAll(t, s, 0, 40*time.Millisecond, 80*time.Millisecond, 120*time.Millisecond)

	f, ok := s.TakeFrame(at(90 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 80*time.Millisecond, f.PTS)
	assert.Equal(t, uint64(2), s.Stats().Dropped)
	assert.Equal(t, 1, s.Pending())
}

func TestTakeFrameNothingDue(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{})
	enqueueAll(t, s, 100*time.Millisecond)

	assert.False(t, s.HasNewFrame(at(50*time.Millisecond)))
	f, ok := s.TakeFrame(at(50 * time.Millisecond))
	assert.False(t, ok)
	assert.Nil(t, f)
	assert.True(t, s.HasNewFrame(at(100*time.Millisecond)))
}

func TestTickRetainsPreviousFrameWhenDecoderLags(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{})
	enqueueAll(t, s, 0)

	s.Tick(at(10 * time.Millisecond))
	first := s.Current()
	require.NotNil(t, first)

	// Ticks faster than frames arrive are no-ops.
	for i := 0; i < 5; i++ {
		s.Tick(at(time.Duration(20+i) * time.Millisecond))
		assert.Same(t, first, s.Current())
	}
	assert.Equal(t, uint64(1), s.Stats().Presented)
}

func TestEnqueueRejectsNonIncreasingPTS(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{})
	enqueueAll(t, s, 50*time.Millisecond, 50*time.Millisecond, 10*time.Millisecond)

	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, uint64(2), s.Stats().Rejected)
}

func TestTakeFrameNeverExceedsOrReorders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewStreamer(identityClock, StreamerConfig{QueueDepth: 64})

	var produced time.Duration
	var lastTaken time.Duration = -1
	var clock time.Duration
	for step := 0; step < 500; step++ {
		if rng.Intn(2) == 0 && s.Pending() < 60 {
			produced += time.Duration(rng.Intn(30)+1) * time.Millisecond
			require.NoError(t, s.Enqueue(context.Background(), mustFrame(t, produced)))
		}
		clock += time.Duration(rng.Intn(25)) * time.Millisecond
		if f, ok := s.TakeFrame(at(clock)); ok {
			require.LessOrEqual(t, f.PTS, clock)
			require.Greater(t, f.PTS, lastTaken)
			lastTaken = f.PTS
		}
	}
}

func TestEnqueueWaitsForRoomAndHonoursContext(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{QueueDepth: 2})
	enqueueAll(t, s, 0, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Enqueue(ctx, mustFrame(t, 20*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Taking frames frees room.
	next := mustFrame(t, 30*time.Millisecond)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Enqueue(context.Background(), next))
	}()
	_, ok := s.TakeFrame(at(15 * time.Millisecond))
	require.True(t, ok)
	wg.Wait()
	assert.Equal(t, 1, s.Pending())
}

func TestFlushRestartsOrdering(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{QueueDepth: 4})
	enqueueAll(t, s, 0, 100*time.Millisecond, 200*time.Millisecond, 300*time.Millisecond)
	s.Tick(at(150 * time.Millisecond))
	published := s.Current()

	s.Flush()
	assert.Equal(t, 0, s.Pending())
	assert.Same(t, published, s.Current())

	// After a seek back to the start, earlier timestamps are accepted again.
	enqueueAll(t, s, 0, 40*time.Millisecond, 80*time.Millisecond, 120*time.Millisecond)
	assert.Equal(t, 4, s.Pending())
}

func TestCloseUnblocksEnqueue(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{QueueDepth: 1})
	enqueueAll(t, s, 0)

	next := mustFrame(t, 10*time.Millisecond)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Enqueue(context.Background(), next)
	}()
	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStreamerClosed)
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not return after Close")
	}
	assert.Nil(t, s.Current())
	s.Close()
}

func TestCallbacksInvoked(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{})
	var presented, dropped int
	s.SetPresentCallback(func(*Frame) { presented++ })
	s.SetDropCallback(func(n int) { dropped += n })

	enqueueAll(t, s, 0, 10*time.Millisecond, 20*time.Millisecond)
	s.Tick(at(25 * time.Millisecond))

	assert.Equal(t, 1, presented)
	assert.Equal(t, 2, dropped)
}

func TestEnqueueScalesWideFrames(t *testing.T) {
	s := NewStreamer(identityClock, StreamerConfig{MaxTextureWidth: 32})
	f, err := NewFrame(64, 32, 0)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(context.Background(), f))

	got, ok := s.TakeFrame(at(0))
	require.True(t, ok)
	assert.Equal(t, uint16(32), got.Width)
	assert.Equal(t, uint16(16), got.Height)
}
