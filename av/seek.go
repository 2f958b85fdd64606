package av

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

type seekOrigin int

const (
	seekDirect seekOrigin = iota
	seekScrub
	seekRestart
)

// SeekCoordinator decides whether passive progress reports or the user's
// scrub own PlaybackState.Progress, and serializes seeks. Its state lives in
// the session and is guarded by the session lock.
type SeekCoordinator struct {
	s *Session
}

// SetCompletionCallback registers fn to run after every seek completes,
// with the requested progress and the decoder's error, if any.
func (c *SeekCoordinator) SetCompletionCallback(fn func(target float64, err error)) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.onSeekComplete = fn
}

// BeginScrub hands Progress to the user and pauses the clock. It reports
// false if the session cannot seek.
func (c *SeekCoordinator) BeginScrub() bool {
	s := c.s
	s.mu.Lock()
	if !s.seekableLocked() {
		s.mu.Unlock()
		return false
	}
	if s.playback.IsScrubbing {
		s.mu.Unlock()
		return true
	}

	s.playback.IsScrubbing = true
	s.scrubEpoch++
	wasPlaying := s.state == StatePlaying
	if !s.playback.IsSeekInFlight {
		s.resumeAfterSeek = wasPlaying
	}
	if wasPlaying {
		s.pauseLocked(StatePaused)
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "SeekCoordinator.BeginScrub",
		"session":     s.id,
		"was_playing": wasPlaying,
	}).Debug("Scrub started")
	if wasPlaying {
		s.emitState(StatePaused)
	}
	return true
}

// UpdateScrub records the scrub position. It reports false outside a scrub.
func (c *SeekCoordinator) UpdateScrub(progress float64) bool {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playback.IsScrubbing || math.IsNaN(progress) {
		return false
	}
	s.playback.Progress = clampUnit(progress)
	return true
}

// EndScrub returns Progress to passive reporting and seeks to target. It
// reports whether a seek was issued. When none is, playback resumes if it
// was playing when the scrub began.
func (c *SeekCoordinator) EndScrub(target float64) bool {
	s := c.s
	s.mu.Lock()
	if !s.playback.IsScrubbing {
		s.mu.Unlock()
		return false
	}
	s.playback.IsScrubbing = false

	started, _ := c.issueLocked(target, seekScrub)
	resumed := false
	if !started && s.resumeAfterSeek && !s.playback.IsSeekInFlight && !s.closing && s.state == StatePaused {
		s.resumeAfterSeek = false
		s.startPlayingLocked()
		resumed = true
	}
	s.mu.Unlock()

	if resumed {
		s.emitState(StatePlaying)
	}
	return started
}

// Seek moves playback to target, a fraction of the duration. It reports
// whether the seek was issued: a seek while another is in flight is
// rejected, and with an unknown duration seeking does nothing. On
// completion playback resumes only if it was playing before; a failed seek
// leaves the session paused.
func (c *SeekCoordinator) Seek(target float64) bool {
	s := c.s
	s.mu.Lock()
	started, paused := c.issueLocked(target, seekDirect)
	s.mu.Unlock()

	if paused {
		s.emitState(StatePaused)
	}
	return started
}

// issueLocked starts a seek and reports whether it did and whether it
// paused playback to do so.
func (c *SeekCoordinator) issueLocked(target float64, origin seekOrigin) (started, paused bool) {
	s := c.s
	if !s.seekableLocked() || math.IsNaN(target) {
		return false, false
	}

	duration := s.clock.Duration()
	if duration <= 0 {
		s.metrics.Seeks.WithLabelValues(SeekResultNoop).Inc()
		logrus.WithFields(logrus.Fields{
			"function": "SeekCoordinator.Seek",
			"session":  s.id,
		}).Debug("Seek ignored, duration unknown")
		return false, false
	}
	if s.playback.IsSeekInFlight {
		s.metrics.Seeks.WithLabelValues(SeekResultRejected).Inc()
		logrus.WithFields(logrus.Fields{
			"function": "SeekCoordinator.Seek",
			"session":  s.id,
			"target":   target,
			"error":    ErrSeekRejected.Error(),
		}).Debug("Seek rejected")
		return false, false
	}

	target = clampUnit(target)
	switch origin {
	case seekDirect:
		if !s.playback.IsScrubbing {
			s.resumeAfterSeek = s.state == StatePlaying
		}
	case seekRestart:
		s.resumeAfterSeek = true
	case seekScrub:
		// Recorded by BeginScrub.
	}

	s.playback.IsSeekInFlight = true
	if s.state == StatePlaying {
		s.pauseLocked(StatePaused)
		paused = true
	}

	pos := time.Duration(target * float64(duration))
	epoch := s.scrubEpoch
	s.seekWG.Add(1)
	go c.run(target, pos, epoch)

	logrus.WithFields(logrus.Fields{
		"function": "SeekCoordinator.Seek",
		"session":  s.id,
		"target":   target,
		"position": pos,
	}).Debug("Seek issued")
	return true, paused
}

// run performs the seek off the caller's goroutine. The decode goroutine
// is stopped while the decoder seeks and the streamer flushes.
func (c *SeekCoordinator) run(target float64, pos time.Duration, epoch uint64) {
	s := c.s
	defer s.seekWG.Done()

	s.stopDecode()
	err := s.decoder.Seek(s.ctx, pos)

	s.mu.Lock()
	if s.closing {
		s.playback.IsSeekInFlight = false
		s.mu.Unlock()
		return
	}

	before := s.state
	if err == nil {
		s.streamer.Flush()
		s.clock.Set(pos)
		s.playback.Progress = target
	}
	s.playback.IsSeekInFlight = false
	if s.scrubEpoch == epoch {
		s.playback.IsScrubbing = false
	}
	s.startDecodeLocked()

	if err != nil {
		s.resumeAfterSeek = false
		s.pauseLocked(StatePaused)
	} else {
		if s.state == StateEnded {
			s.state = StatePaused
		}
		if s.resumeAfterSeek && !s.playback.IsScrubbing {
			s.resumeAfterSeek = false
			s.startPlayingLocked()
		}
	}
	after := s.state
	progress := s.playback.Progress
	onComplete := s.onSeekComplete
	s.mu.Unlock()

	if err != nil {
		s.metrics.Seeks.WithLabelValues(SeekResultFailed).Inc()
		logrus.WithFields(logrus.Fields{
			"function": "SeekCoordinator.run",
			"session":  s.id,
			"position": pos,
			"error":    err.Error(),
		}).Warn("Seek failed, playback paused")
	} else {
		s.metrics.Seeks.WithLabelValues(SeekResultOK).Inc()
		logrus.WithFields(logrus.Fields{
			"function": "SeekCoordinator.run",
			"session":  s.id,
			"position": pos,
			"state":    after.String(),
		}).Debug("Seek completed")
		s.emitProgress(progress)
	}
	if after != before {
		s.emitState(after)
	}
	if onComplete != nil {
		onComplete(target, err)
	}
}

func (s *Session) seekableLocked() bool {
	if s.closing {
		return false
	}
	switch s.state {
	case StateReady, StatePlaying, StatePaused, StateEnded:
		return true
	default:
		return false
	}
}
