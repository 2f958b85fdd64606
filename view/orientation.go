package view

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultSensitivity is the rotation applied per gesture input unit, in radians.
const DefaultSensitivity = 0.005

// DefaultMaxPitch is the default symmetric pitch limit (85 degrees).
const DefaultMaxPitch = 85 * math.Pi / 180

// Orientation is the accumulated camera orientation in radians.
type Orientation struct {
	Yaw   float64
	Pitch float64
}

// OrientationConfig configures an OrientationController.
type OrientationConfig struct {
	// Sensitivity is radians of rotation per input unit.
	Sensitivity float64
	// MaxPitch bounds pitch to [-MaxPitch, MaxPitch] radians.
	MaxPitch float64
}

// DefaultOrientationConfig returns the default sensitivity and pitch range.
func DefaultOrientationConfig() OrientationConfig {
	return OrientationConfig{
		Sensitivity: DefaultSensitivity,
		MaxPitch:    DefaultMaxPitch,
	}
}

// gestureSession is the transient per-drag state.
type gestureSession struct {
	lastX float64
	lastY float64
}

// OrientationController maps drag deltas to accumulated yaw and pitch.
//
// Orientation persists across gestures and is reset only by Reset, which the
// viewer calls when a new medium is loaded.
type OrientationController struct {
	mu          sync.RWMutex
	sensitivity float64
	minPitch    float64
	maxPitch    float64
	orientation Orientation
	gesture     *gestureSession
}

// NewOrientationController creates a controller at yaw 0, pitch 0.
// Non-positive config values fall back to the defaults.
func NewOrientationController(cfg OrientationConfig) *OrientationController {
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = DefaultSensitivity
	}
	if cfg.MaxPitch <= 0 || cfg.MaxPitch > math.Pi/2 {
		cfg.MaxPitch = DefaultMaxPitch
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewOrientationController",
		"sensitivity": cfg.Sensitivity,
		"max_pitch":   cfg.MaxPitch,
	}).Debug("Creating orientation controller")

	return &OrientationController{
		sensitivity: cfg.Sensitivity,
		minPitch:    -cfg.MaxPitch,
		maxPitch:    cfg.MaxPitch,
	}
}

// Begin starts a drag gesture and resets the per-gesture delta baseline.
func (c *OrientationController) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture = &gestureSession{}
}

// Update applies a relative drag delta and returns the new orientation.
// Outside of a gesture the orientation is returned unchanged.
func (c *OrientationController) Update(dx, dy float64) Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gesture == nil {
		return c.orientation
	}
	c.gesture.lastX += dx
	c.gesture.lastY += dy
	return c.applyLocked(dx, dy)
}

// Track applies a cumulative gesture translation, as reported by pan
// recognizers, converting it to a delta against the previous translation.
func (c *OrientationController) Track(x, y float64) Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gesture == nil {
		return c.orientation
	}
	dx := x - c.gesture.lastX
	dy := y - c.gesture.lastY
	c.gesture.lastX = x
	c.gesture.lastY = y
	return c.applyLocked(dx, dy)
}

func (c *OrientationController) applyLocked(dx, dy float64) Orientation {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return c.orientation
	}
	c.orientation.Yaw += dx * c.sensitivity
	c.orientation.Pitch = clamp(c.orientation.Pitch+dy*c.sensitivity, c.minPitch, c.maxPitch)
	return c.orientation
}

// End finishes the drag gesture.
func (c *OrientationController) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture = nil
}

// Cancel abandons the drag gesture. Rotation already applied is kept.
func (c *OrientationController) Cancel() {
	c.End()
}

// Active reports whether a drag gesture is in progress.
func (c *OrientationController) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gesture != nil
}

// Orientation returns the current orientation.
func (c *OrientationController) Orientation() Orientation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orientation
}

// PitchRange returns the pitch limits in radians.
func (c *OrientationController) PitchRange() (minPitch, maxPitch float64) {
	return c.minPitch, c.maxPitch
}

// Reset returns the orientation to yaw 0, pitch 0 and drops any gesture.
func (c *OrientationController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = Orientation{}
	c.gesture = nil
}

// ViewTransform returns the view matrix for the current orientation.
func (c *OrientationController) ViewTransform() Mat4 {
	return RotationView(c.Orientation())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
