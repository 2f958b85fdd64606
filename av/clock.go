package av

import (
	"sync"
	"time"
)

// Clock is the media clock of a session. It maps host time to a position in
// the media, advancing only while running.
type Clock struct {
	tp       TimeProvider
	duration time.Duration

	mu      sync.Mutex
	base    time.Duration
	anchor  time.Time
	running bool
}

// NewClock creates a stopped clock at position zero. A zero duration means
// the length of the media is unknown and positions are not clamped above.
func NewClock(tp TimeProvider, duration time.Duration) *Clock {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	if duration < 0 {
		duration = 0
	}
	return &Clock{tp: tp, duration: duration}
}

// Duration returns the media duration, or zero if unknown.
func (c *Clock) Duration() time.Duration {
	return c.duration
}

// Start resumes the clock from its current position.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.anchor = c.tp.Now()
	c.running = true
}

// Pause freezes the clock at its current position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.base = c.positionLocked(c.tp.Now())
	c.running = false
}

// Running reports whether the clock is advancing.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Set moves the clock to pos without changing whether it runs.
func (c *Clock) Set(pos time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.clamp(pos)
	c.anchor = c.tp.Now()
}

// Time returns the current media position.
func (c *Clock) Time() time.Duration {
	return c.ItemTime(c.tp.Now())
}

// ItemTime returns the media position at host time.
func (c *Clock) ItemTime(host time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked(host)
}

func (c *Clock) positionLocked(host time.Time) time.Duration {
	if !c.running {
		return c.base
	}
	elapsed := host.Sub(c.anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	return c.clamp(c.base + elapsed)
}

func (c *Clock) clamp(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if c.duration > 0 && pos > c.duration {
		return c.duration
	}
	return pos
}
