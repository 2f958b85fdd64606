package video

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultQueueDepth is the number of decoded frames buffered ahead of display.
const DefaultQueueDepth = 8

// ErrStreamerClosed is returned by Enqueue after Close.
var ErrStreamerClosed = errors.New("frame streamer closed")

// ItemClock maps display host time to media time.
type ItemClock interface {
	ItemTime(host time.Time) time.Duration
}

// ItemClockFunc adapts a function to ItemClock.
type ItemClockFunc func(host time.Time) time.Duration

// ItemTime calls f(host).
func (f ItemClockFunc) ItemTime(host time.Time) time.Duration { return f(host) }

// StreamerConfig configures a Streamer.
type StreamerConfig struct {
	// QueueDepth bounds the frames decoded ahead of display. Enqueue waits
	// for room once it is reached.
	QueueDepth int
	// MaxTextureWidth downsamples wider frames before they are queued.
	// Zero disables scaling.
	MaxTextureWidth int
}

// Stats are cumulative frame counters.
type Stats struct {
	Enqueued  uint64 // frames accepted into the queue
	Presented uint64 // frames published to the texture
	Dropped   uint64 // frames overtaken before display
	Rejected  uint64 // frames refused for non-increasing presentation time
	Flushes   uint64
}

// Streamer bridges a decoder's frame output to a texture read once per
// render tick.
type Streamer struct {
	clock    ItemClock
	scaler   *Scaler
	maxWidth int

	mu           sync.Mutex
	pending      []*Frame
	lastEnqueued time.Duration
	hasEnqueued  bool
	closed       bool

	room      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	current atomic.Pointer[Frame]

	enqueued  atomic.Uint64
	presented atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
	flushes   atomic.Uint64

	onPresent func(*Frame)
	onDrop    func(n int)
}

// NewStreamer creates a streamer reading media time from clock.
func NewStreamer(clock ItemClock, cfg StreamerConfig) *Streamer {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}

	logrus.WithFields(logrus.Fields{
		"function":          "NewStreamer",
		"queue_depth":       cfg.QueueDepth,
		"max_texture_width": cfg.MaxTextureWidth,
	}).Debug("Creating frame streamer")

	return &Streamer{
		clock:    clock,
		scaler:   NewScaler(),
		maxWidth: cfg.MaxTextureWidth,
		room:     make(chan struct{}, cfg.QueueDepth),
		done:     make(chan struct{}),
	}
}

// SetPresentCallback registers fn to run on every published frame.
// It runs on the tick goroutine and must not block.
func (s *Streamer) SetPresentCallback(fn func(*Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPresent = fn
}

// SetDropCallback registers fn to run with the number of frames skipped by a
// take. It runs on the tick goroutine and must not block.
func (s *Streamer) SetDropCallback(fn func(n int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

// Enqueue hands a decoded frame to the streamer. It waits while the queue is
// full, and returns early if ctx is cancelled or the streamer is closed.
// Frames whose presentation time does not advance are discarded.
func (s *Streamer) Enqueue(ctx context.Context, frame *Frame) error {
	if frame == nil {
		return errors.New("frame cannot be nil")
	}

	frame, err := s.scaler.FitWidth(frame, s.maxWidth)
	if err != nil {
		return err
	}

	select {
	case s.room <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStreamerClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		<-s.room
		return ErrStreamerClosed
	}
	if s.hasEnqueued && frame.PTS <= s.lastEnqueued {
		<-s.room
		s.rejected.Add(1)
		return nil
	}

	s.pending = append(s.pending, frame)
	s.lastEnqueued = frame.PTS
	s.hasEnqueued = true
	s.enqueued.Add(1)
	return nil
}

// HasNewFrame reports whether a frame is due at host time.
func (s *Streamer) HasNewFrame(host time.Time) bool {
	t := s.clock.ItemTime(host)

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0 && s.pending[0].PTS <= t
}

// TakeFrame removes and returns the newest due frame: the one whose
// presentation time is closest to the media time of host without exceeding
// it. Older due frames are dropped. It returns false when nothing is due.
func (s *Streamer) TakeFrame(host time.Time) (*Frame, bool) {
	t := s.clock.ItemTime(host)

	s.mu.Lock()
	idx := -1
	for i, f := range s.pending {
		if f.PTS > t {
			break
		}
		idx = i
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, false
	}

	frame := s.pending[idx]
	n := copy(s.pending, s.pending[idx+1:])
	for i := n; i < len(s.pending); i++ {
		s.pending[i] = nil
	}
	s.pending = s.pending[:n]
	for i := 0; i <= idx; i++ {
		<-s.room
	}
	onDrop := s.onDrop
	s.mu.Unlock()

	if idx > 0 {
		s.dropped.Add(uint64(idx))
		if onDrop != nil {
			onDrop(idx)
		}
	}
	return frame, true
}

// Tick is the display-refresh callback. It publishes the newest due frame,
// or leaves the current frame in place when nothing new is due.
func (s *Streamer) Tick(host time.Time) {
	frame, ok := s.TakeFrame(host)
	if !ok {
		return
	}
	s.current.Store(frame)
	s.presented.Add(1)

	s.mu.Lock()
	onPresent := s.onPresent
	s.mu.Unlock()
	if onPresent != nil {
		onPresent(frame)
	}
}

// Current returns the published frame, or nil before the first one. The
// frame is valid until the next tick.
func (s *Streamer) Current() *Frame {
	return s.current.Load()
}

// Flush discards queued frames and restarts presentation-time ordering.
// The decode goroutine must be stopped while flushing; the published frame
// stays current until a new one arrives.
func (s *Streamer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range s.pending {
		<-s.room
	}
	for i := range s.pending {
		s.pending[i] = nil
	}
	s.pending = s.pending[:0]
	s.hasEnqueued = false
	s.lastEnqueued = 0
	s.flushes.Add(1)
}

// Pending returns the number of queued frames.
func (s *Streamer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats returns the cumulative counters.
func (s *Streamer) Stats() Stats {
	return Stats{
		Enqueued:  s.enqueued.Load(),
		Presented: s.presented.Load(),
		Dropped:   s.dropped.Load(),
		Rejected:  s.rejected.Load(),
		Flushes:   s.flushes.Load(),
	}
}

// Close releases queued frames and the published frame and wakes any
// Enqueue waiting for room. It is safe to call more than once.
func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		for range s.pending {
			<-s.room
		}
		s.pending = nil
		s.onPresent = nil
		s.onDrop = nil
		s.mu.Unlock()

		s.current.Store(nil)

		stats := s.Stats()
		logrus.WithFields(logrus.Fields{
			"function":  "Streamer.Close",
			"enqueued":  stats.Enqueued,
			"presented": stats.Presented,
			"dropped":   stats.Dropped,
			"rejected":  stats.Rejected,
		}).Debug("Frame streamer closed")
	})
}
