package av

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/panosphere/asset"
	"github.com/sirupsen/logrus"
)

// Manager owns the single playback slot. At most one Session is active at
// any time; Replace tears the previous one down completely before the next
// one is constructed.
type Manager struct {
	source   asset.Source
	decoders DecoderFactory
	cfg      SessionConfig

	audio        AudioFactory
	ticks        TickSourceFactory
	timeProvider TimeProvider
	metrics      *Metrics

	// mu serializes Replace, Release, and Close.
	mu     sync.Mutex
	active atomic.Pointer[Session]
	closed bool

	// cbMu guards the callbacks, which session goroutines read during
	// teardown while mu is held.
	cbMu             sync.RWMutex
	progressCallback func(sessionID string, progress float64)
	stateCallback    func(sessionID string, state SessionState)
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeProvider sets the time source for clocks and tick sources.
func WithTimeProvider(tp TimeProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.timeProvider = tp
		}
	}
}

// WithTickSourceFactory replaces the interval tick sources.
func WithTickSourceFactory(f TickSourceFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.ticks = f
		}
	}
}

// WithAudioFactory sets how audio outputs are created. The default is
// silent output.
func WithAudioFactory(f AudioFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.audio = f
		}
	}
}

// WithMetrics sets the Prometheus collectors to update.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewManager creates a manager that loads videos from source and decodes
// them with decoders.
func NewManager(source asset.Source, decoders DecoderFactory, cfg SessionConfig, opts ...Option) (*Manager, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewManager",
	}).Info("Creating playback manager")

	if source == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    "asset source cannot be nil",
		}).Error("Source validation failed")
		return nil, errors.New("asset source cannot be nil")
	}
	if decoders == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewManager",
			"error":    "decoder factory cannot be nil",
		}).Error("Decoder factory validation failed")
		return nil, errors.New("decoder factory cannot be nil")
	}

	m := &Manager{
		source:       source,
		decoders:     decoders,
		cfg:          cfg.withDefaults(),
		audio:        NewAudioFactory(nil, 0),
		timeProvider: DefaultTimeProvider{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ticks == nil {
		m.ticks = IntervalTickSourceFactory(m.timeProvider)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}

	logrus.WithFields(logrus.Fields{
		"function":          "NewManager",
		"progress_interval": m.cfg.ProgressInterval,
		"tick_rate":         m.cfg.TickRate,
		"loop":              m.cfg.Loop,
	}).Debug("Playback manager configured")

	return m, nil
}

// Replace tears down the active session, if any, and starts a session for
// handle. Teardown completes before the new session acquires anything. If
// loading fails the slot is left empty.
func (m *Manager) Replace(ctx context.Context, handle asset.Handle) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if handle.Kind() != asset.KindVideo {
		return nil, fmt.Errorf("%w: playback needs a video, got %s", asset.ErrUnsupportedKind, handle.Kind())
	}

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Replace",
		"asset":    handle.String(),
	}).Info("Replacing playback session")

	if err := m.teardownLocked(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Replace",
			"error":    err.Error(),
		}).Warn("Previous session released with errors")
	}

	s, err := newSession(ctx, sessionDeps{
		source:     m.source,
		decoders:   m.decoders,
		audio:      m.audio,
		ticks:      m.ticks,
		tp:         m.timeProvider,
		metrics:    m.metrics,
		onProgress: m.emitProgress,
		onState:    m.emitState,
	}, m.cfg, handle)
	if err != nil {
		m.metrics.LoadFailures.Inc()
		return nil, err
	}

	m.claimLocked(s)
	return s, nil
}

// claimLocked puts s in the slot. The slot must be empty: Replace has
// already torn its occupant down.
func (m *Manager) claimLocked(s *Session) {
	if !m.active.CompareAndSwap(nil, s) {
		panic(fmt.Errorf("%w: session %s claimed an occupied slot", ErrSessionConflict, s.id))
	}
	m.metrics.ActiveSessions.Set(1)
}

func (m *Manager) teardownLocked() error {
	s := m.active.Load()
	if s == nil {
		return nil
	}
	err := s.teardown()
	m.active.Store(nil)
	m.metrics.ActiveSessions.Set(0)
	return err
}

// Active returns the active session, or nil.
func (m *Manager) Active() *Session {
	return m.active.Load()
}

// Release tears down the active session and leaves the slot empty.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active.Load() == nil {
		return ErrNoActiveSession
	}
	return m.teardownLocked()
}

// Close tears down the active session and refuses further sessions. It is
// safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Close",
	}).Info("Closing playback manager")
	return m.teardownLocked()
}

// Metrics returns the manager's collectors.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// SetProgressCallback registers fn to receive progress reports. Callbacks
// run on session goroutines and must not call Replace, Release, or Close.
func (m *Manager) SetProgressCallback(fn func(sessionID string, progress float64)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.progressCallback = fn
}

// SetStateCallback registers fn to receive session state changes. The same
// restrictions as SetProgressCallback apply.
func (m *Manager) SetStateCallback(fn func(sessionID string, state SessionState)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.stateCallback = fn
}

func (m *Manager) emitProgress(id string, progress float64) {
	m.cbMu.RLock()
	fn := m.progressCallback
	m.cbMu.RUnlock()
	if fn != nil {
		fn(id, progress)
	}
}

func (m *Manager) emitState(id string, state SessionState) {
	m.cbMu.RLock()
	fn := m.stateCallback
	m.cbMu.RUnlock()
	if fn != nil {
		fn(id, state)
	}
}
