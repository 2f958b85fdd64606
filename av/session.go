package av

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av/audio"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultProgressInterval is the spacing of progress reports while playing.
	DefaultProgressInterval = 500 * time.Millisecond
	// DefaultTickRate is the display refresh rate in Hz.
	DefaultTickRate = 60
)

// SessionConfig configures playback sessions.
type SessionConfig struct {
	// ProgressInterval is the spacing of progress ticks.
	ProgressInterval time.Duration
	// TickRate is the display tick frequency in Hz.
	TickRate int
	// Loop restarts playback from the beginning at the end of the media.
	Loop bool
	// Streamer configures the frame streamer.
	Streamer video.StreamerConfig
	// ExternalTicks leaves display ticks to the renderer: no display tick
	// source is created and CurrentFrame publishes due frames itself.
	ExternalTicks bool
	// NetworkAllowed permits fetching remote-backed videos.
	NetworkAllowed bool
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ProgressInterval: DefaultProgressInterval,
		TickRate:         DefaultTickRate,
		Loop:             true,
		Streamer: video.StreamerConfig{
			QueueDepth:      video.DefaultQueueDepth,
			MaxTextureWidth: 4096,
		},
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	return c
}

type sessionDeps struct {
	source     asset.Source
	decoders   DecoderFactory
	audio      AudioFactory
	ticks      TickSourceFactory
	tp         TimeProvider
	metrics    *Metrics
	onProgress func(id string, progress float64)
	onState    func(id string, state SessionState)
}

// Session is one video playback session. It owns the decoder, the audio
// output, the media clock, the frame streamer, and the tick sources, and
// releases all of them when torn down.
//
// Sessions are created by Manager.Replace.
type Session struct {
	id      string
	handle  asset.Handle
	cfg     SessionConfig
	tp      TimeProvider
	metrics *Metrics

	decoder  Decoder
	audio    audio.Output
	clock    *Clock
	streamer *video.Streamer
	display  TickSource
	progress TickSource
	seeker   *SeekCoordinator

	scope  *resourceScope
	ctx    context.Context
	cancel context.CancelFunc

	onProgress func(id string, progress float64)
	onState    func(id string, state SessionState)

	mu              sync.Mutex
	state           SessionState
	playback        PlaybackState
	looping         bool
	ticking         bool
	closing         bool
	resumeAfterSeek bool
	scrubEpoch      uint64
	onSeekComplete  func(target float64, err error)

	decodeCancel context.CancelFunc
	decodeDone   chan struct{}
	seekWG       sync.WaitGroup
}

// newSession loads handle and returns a Ready session. On failure every
// resource acquired so far is released before returning.
func newSession(ctx context.Context, deps sessionDeps, cfg SessionConfig, handle asset.Handle) (_ *Session, err error) {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	sctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:         id,
		handle:     handle,
		cfg:        cfg,
		tp:         deps.tp,
		metrics:    deps.metrics,
		scope:      newResourceScope(id),
		ctx:        sctx,
		cancel:     cancel,
		onProgress: deps.onProgress,
		onState:    deps.onState,
		looping:    cfg.Loop,
		state:      StateIdle,
	}
	s.seeker = &SeekCoordinator{s: s}

	logrus.WithFields(logrus.Fields{
		"function": "newSession",
		"session":  id,
		"asset":    handle.String(),
	}).Info("Loading playback session")
	s.setState(StateLoading)

	defer func() {
		if err == nil {
			return
		}
		s.mu.Lock()
		s.closing = true
		s.state = StateTornDown
		s.mu.Unlock()
		cancel()
		if rerr := s.scope.release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		logrus.WithFields(logrus.Fields{
			"function": "newSession",
			"session":  id,
			"asset":    handle.String(),
			"error":    err.Error(),
		}).Error("Failed to load playback session")
	}()

	file, err := deps.source.FetchVideo(ctx, handle.ID(), asset.FetchOptions{NetworkAllowed: cfg.NetworkAllowed})
	if err != nil {
		return nil, unavailable(handle, err)
	}

	guard, err := asset.Acquire(file.Scope, handle.ID())
	if err != nil {
		return nil, unavailable(handle, err)
	}
	s.scope.add("access guard", func() error {
		guard.Release()
		return nil
	})

	dec, err := deps.decoders(ctx, handle, file)
	if err != nil {
		return nil, unavailable(handle, err)
	}
	s.decoder = dec
	s.scope.add("decoder", dec.Close)

	out, err := deps.audio(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio output: %w", err)
	}
	if err := out.Activate(); err != nil {
		return nil, fmt.Errorf("failed to activate audio output: %w", err)
	}
	s.audio = out
	s.scope.add("audio output", out.Deactivate)

	s.clock = NewClock(deps.tp, dec.Duration())
	s.streamer = video.NewStreamer(s.clock, cfg.Streamer)
	s.streamer.SetPresentCallback(func(*video.Frame) { s.metrics.FramesPresented.Inc() })
	s.streamer.SetDropCallback(func(n int) { s.metrics.FramesDropped.Add(float64(n)) })
	s.scope.add("frame streamer", func() error {
		s.streamer.Close()
		return nil
	})

	s.scope.add("decode loop", func() error {
		s.seekWG.Wait()
		s.stopDecode()
		return nil
	})

	if !cfg.ExternalTicks {
		s.display = deps.ticks(TickDisplay, time.Second/time.Duration(cfg.TickRate))
		s.scope.add("display ticks", stopTicks(s.display))
	}
	s.progress = deps.ticks(TickProgress, cfg.ProgressInterval)
	s.scope.add("progress ticks", stopTicks(s.progress))

	s.mu.Lock()
	s.startDecodeLocked()
	s.mu.Unlock()

	s.metrics.SessionsStarted.Inc()
	logrus.WithFields(logrus.Fields{
		"function": "newSession",
		"session":  id,
		"duration": s.clock.Duration(),
	}).Info("Playback session ready")
	s.setState(StateReady)
	return s, nil
}

func unavailable(handle asset.Handle, err error) error {
	if errors.Is(err, asset.ErrAssetUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", asset.ErrAssetUnavailable, handle.ID(), err)
}

func stopTicks(t TickSource) func() error {
	return func() error {
		t.Stop()
		return nil
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Handle returns the asset being played.
func (s *Session) Handle() asset.Handle { return s.handle }

// Duration returns the media duration, or zero if unknown.
func (s *Session) Duration() time.Duration { return s.clock.Duration() }

// Seeker returns the session's seek coordinator.
func (s *Session) Seeker() *SeekCoordinator { return s.seeker }

// FrameStats returns the frame streamer counters.
func (s *Session) FrameStats() video.Stats { return s.streamer.Stats() }

// Position returns the current media position.
func (s *Session) Position() time.Duration { return s.clock.Time() }

// State returns a snapshot of the playback state.
func (s *Session) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// Lifecycle returns the session state.
func (s *Session) Lifecycle() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Looping reports whether playback restarts at the end of the media.
func (s *Session) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

// SetLooping enables or disables restarting at the end of the media.
func (s *Session) SetLooping(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.looping = loop
}

// Play starts or resumes playback. The first Play starts the tick sources.
// Playing from Ended restarts at the beginning. While a scrub or seek is in
// progress, Play takes effect when it completes.
func (s *Session) Play() error {
	s.mu.Lock()
	switch s.state {
	case StatePlaying:
		s.mu.Unlock()
		return nil
	case StateReady, StatePaused, StateEnded:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: play while %s", ErrInvalidTransition, state)
	}

	if s.playback.IsScrubbing || s.playback.IsSeekInFlight {
		s.resumeAfterSeek = true
		s.mu.Unlock()
		return nil
	}

	if s.state == StateEnded {
		started, _ := s.seeker.issueLocked(0, seekRestart)
		if started {
			s.mu.Unlock()
			return nil
		}
	}

	s.startPlayingLocked()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Session.Play",
		"session":  s.id,
	}).Debug("Playback started")
	s.emitState(StatePlaying)
	return nil
}

// Pause stops the clock without releasing decoder state.
func (s *Session) Pause() error {
	s.mu.Lock()
	switch s.state {
	case StatePlaying:
		s.pauseLocked(StatePaused)
		s.mu.Unlock()
		s.emitState(StatePaused)
		return nil
	case StateReady, StatePaused, StateEnded:
		s.resumeAfterSeek = false
		s.mu.Unlock()
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, state)
	}
}

// Stop ends playback and disables looping. Play restarts from the
// beginning.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateReady, StatePlaying, StatePaused:
	case StateEnded:
		s.looping = false
		s.mu.Unlock()
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: stop while %s", ErrInvalidTransition, state)
	}
	s.looping = false
	s.resumeAfterSeek = false
	s.pauseLocked(StateEnded)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Session.Stop",
		"session":  s.id,
	}).Debug("Playback stopped")
	s.emitState(StateEnded)
	return nil
}

// SetMuted silences or restores audio.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	s.playback.IsMuted = muted
	s.audio.SetMuted(muted)
}

// CurrentFrame returns the frame to draw at host time, or nil before the
// first frame and after teardown. The frame is valid until the next tick.
func (s *Session) CurrentFrame(host time.Time) *video.Frame {
	if s.cfg.ExternalTicks {
		s.streamer.Tick(host)
	}
	return s.streamer.Current()
}

// teardown releases every resource. It is synchronous: when it returns no
// tick callback, decode goroutine, or audio write of this session runs.
func (s *Session) teardown() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.state = StateTornDown
	s.playback.IsPlaying = false
	s.mu.Unlock()

	start := s.tp.Now()
	s.cancel()
	err := s.scope.release()
	elapsed := s.tp.Since(start)

	s.metrics.TeardownSeconds.Observe(elapsed.Seconds())
	s.metrics.SessionsTornDown.Inc()

	fields := logrus.Fields{
		"function": "Session.teardown",
		"session":  s.id,
		"elapsed":  elapsed,
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Playback session torn down with errors")
	} else {
		logrus.WithFields(fields).Info("Playback session torn down")
	}

	s.emitState(StateTornDown)
	return err
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.emitState(state)
}

func (s *Session) emitState(state SessionState) {
	if s.onState != nil {
		s.onState(s.id, state)
	}
}

func (s *Session) emitProgress(progress float64) {
	if s.onProgress != nil {
		s.onProgress(s.id, progress)
	}
}

func (s *Session) startPlayingLocked() {
	s.clock.Start()
	s.audio.SetPlaying(true)
	s.state = StatePlaying
	s.playback.IsPlaying = true
	s.startTicksLocked()
}

func (s *Session) pauseLocked(next SessionState) {
	s.clock.Pause()
	s.audio.SetPlaying(false)
	s.playback.IsPlaying = false
	s.state = next
}

func (s *Session) startTicksLocked() {
	if s.ticking || s.closing {
		return
	}
	s.ticking = true
	if s.display != nil {
		if err := s.display.Start(s.onDisplayTick); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Session.startTicks",
				"session":  s.id,
				"error":    err.Error(),
			}).Warn("Display tick source failed to start")
		}
	}
	if err := s.progress.Start(s.onProgressTick); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.startTicks",
			"session":  s.id,
			"error":    err.Error(),
		}).Warn("Progress tick source failed to start")
	}
}

func (s *Session) onDisplayTick(host time.Time) {
	s.streamer.Tick(host)
}

// onProgressTick reports position while playing. It leaves Progress alone
// while a scrub or seek owns it.
func (s *Session) onProgressTick(host time.Time) {
	s.mu.Lock()
	if s.closing || s.state != StatePlaying || s.playback.IsScrubbing || s.playback.IsSeekInFlight {
		s.mu.Unlock()
		return
	}
	duration := s.clock.Duration()
	if duration <= 0 {
		s.mu.Unlock()
		return
	}

	pos := s.clock.ItemTime(host)
	progress := clampUnit(float64(pos) / float64(duration))
	s.playback.Progress = progress

	atEnd := pos >= duration
	loop := atEnd && s.looping
	ended := atEnd && !s.looping
	if ended {
		s.pauseLocked(StateEnded)
	}
	if loop {
		s.seeker.issueLocked(0, seekRestart)
	}
	s.mu.Unlock()

	s.emitProgress(progress)
	if loop {
		s.metrics.Loops.Inc()
		logrus.WithFields(logrus.Fields{
			"function": "Session.onProgressTick",
			"session":  s.id,
		}).Debug("Looping to start")
		// issueLocked paused the session until the seek completes.
		s.emitState(StatePaused)
	}
	if ended {
		logrus.WithFields(logrus.Fields{
			"function": "Session.onProgressTick",
			"session":  s.id,
		}).Info("Playback reached end of media")
		s.emitState(StateEnded)
	}
}

// startDecodeLocked starts the decode goroutine unless it is running or the
// session is closing.
func (s *Session) startDecodeLocked() {
	if s.closing || s.decodeDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.decodeCancel = cancel
	s.decodeDone = done
	go s.decodeLoop(ctx, done)
}

// stopDecode stops the decode goroutine and waits for it to exit.
func (s *Session) stopDecode() {
	s.mu.Lock()
	cancel, done := s.decodeCancel, s.decodeDone
	s.decodeCancel, s.decodeDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) decodeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.recoverDecodeError(fmt.Errorf("decoder panic: %v", r))
		}
	}()

	for {
		frame, err := s.decoder.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.recoverDecodeError(err)
			return
		}
		if err := s.streamer.Enqueue(ctx, frame); err != nil {
			return
		}
	}
}

// recoverDecodeError falls back to Paused instead of failing the session.
func (s *Session) recoverDecodeError(err error) {
	s.metrics.DecodeErrors.Inc()
	logrus.WithFields(logrus.Fields{
		"function": "Session.decodeLoop",
		"session":  s.id,
		"error":    err.Error(),
	}).Warn("Decode failed, pausing playback")

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.resumeAfterSeek = false
	paused := s.state == StatePlaying
	if paused {
		s.pauseLocked(StatePaused)
	}
	s.mu.Unlock()

	if paused {
		s.emitState(StatePaused)
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
