package av

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TickSource delivers periodic callbacks with the host time of each tick.
//
// Start may be called while holding locks that the callback also takes.
// Stop must not: it returns only after any callback in progress has
// finished, and no callback runs after it returns.
type TickSource interface {
	Start(fn func(host time.Time)) error
	Stop()
}

// TickKind names the purpose of a tick source.
type TickKind int

const (
	// TickDisplay fires once per display refresh and publishes video frames.
	TickDisplay TickKind = iota
	// TickProgress fires on the progress interval and reports position.
	TickProgress
)

// String returns the tick kind name.
func (k TickKind) String() string {
	switch k {
	case TickDisplay:
		return "display"
	case TickProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// TickSourceFactory creates the tick source of the given kind.
type TickSourceFactory func(kind TickKind, interval time.Duration) TickSource

// IntervalTickSourceFactory returns a factory of IntervalTickSources.
func IntervalTickSourceFactory(tp TimeProvider) TickSourceFactory {
	return func(kind TickKind, interval time.Duration) TickSource {
		return NewIntervalTickSource(interval, tp)
	}
}

// IntervalTickSource fires on a fixed wall-clock interval from its own
// goroutine.
type IntervalTickSource struct {
	interval time.Duration
	tp       TimeProvider

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewIntervalTickSource creates a stopped tick source.
func NewIntervalTickSource(interval time.Duration, tp TimeProvider) *IntervalTickSource {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	return &IntervalTickSource{interval: interval, tp: tp}
}

// Start begins delivering ticks to fn.
func (t *IntervalTickSource) Start(fn func(host time.Time)) error {
	if fn == nil {
		return errors.New("tick callback cannot be nil")
	}
	if t.interval <= 0 {
		return errors.New("tick interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTickSourceRunning
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.loop(fn, t.stop, t.done)

	logrus.WithFields(logrus.Fields{
		"function": "IntervalTickSource.Start",
		"interval": t.interval,
	}).Debug("Tick source started")
	return nil
}

func (t *IntervalTickSource) loop(fn func(time.Time), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			fn(t.tp.Now())
		}
	}
}

// Stop halts delivery and waits for the tick goroutine to exit. It is safe
// to call more than once.
func (t *IntervalTickSource) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done

	logrus.WithFields(logrus.Fields{
		"function": "IntervalTickSource.Stop",
		"interval": t.interval,
	}).Debug("Tick source stopped")
}

// Running reports whether the source is delivering ticks.
func (t *IntervalTickSource) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// ManualTickSource delivers ticks only when Fire is called. It drives
// sessions deterministically in tests and lets a renderer that owns its own
// refresh loop push display ticks.
type ManualTickSource struct {
	mu      sync.Mutex
	fn      func(time.Time)
	running bool
	starts  int
	stops   int

	// fire is held while a callback runs so Stop can wait for it.
	fire sync.Mutex
}

// NewManualTickSource creates a stopped manual tick source.
func NewManualTickSource() *ManualTickSource {
	return &ManualTickSource{}
}

// Start registers fn.
func (m *ManualTickSource) Start(fn func(host time.Time)) error {
	if fn == nil {
		return errors.New("tick callback cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrTickSourceRunning
	}
	m.fn = fn
	m.running = true
	m.starts++
	return nil
}

// Stop unregisters the callback, waiting for a Fire in progress.
func (m *ManualTickSource) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.fn = nil
	m.stops++
	m.mu.Unlock()

	m.fire.Lock()
	m.fire.Unlock()
}

// Fire delivers one tick at host time and reports whether a callback ran.
func (m *ManualTickSource) Fire(host time.Time) bool {
	m.fire.Lock()
	defer m.fire.Unlock()

	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(host)
	return true
}

// Running reports whether a callback is registered.
func (m *ManualTickSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stopped reports whether the source was started and then stopped.
func (m *ManualTickSource) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts > 0 && !m.running
}
