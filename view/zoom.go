package view

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Default field of view limits, in degrees.
const (
	DefaultMinFOV = 30.0
	DefaultMaxFOV = 110.0
	DefaultFOV    = 75.0
)

// Clip planes used by Projection. The sphere has unit radius.
const (
	NearPlane = 0.1
	FarPlane  = 100.0
)

// ZoomConfig configures a ZoomController.
type ZoomConfig struct {
	MinFOV  float64
	MaxFOV  float64
	Initial float64
}

// DefaultZoomConfig returns the default FOV range.
func DefaultZoomConfig() ZoomConfig {
	return ZoomConfig{MinFOV: DefaultMinFOV, MaxFOV: DefaultMaxFOV, Initial: DefaultFOV}
}

// ZoomController maps pinch scale to field of view.
//
// FOV is inversely related to scale: a scale above 1 narrows the FOV and
// zooms in. The FOV captured at Begin is the baseline every Update of the
// same pinch is relative to.
type ZoomController struct {
	mu       sync.RWMutex
	minFOV   float64
	maxFOV   float64
	initial  float64
	fov      float64
	baseline float64
	pinching bool
}

// NewZoomController creates a controller at cfg.Initial, clamped to range.
func NewZoomController(cfg ZoomConfig) *ZoomController {
	if cfg.MinFOV <= 0 || cfg.MaxFOV <= cfg.MinFOV || cfg.MaxFOV >= 180 {
		def := DefaultZoomConfig()
		cfg.MinFOV, cfg.MaxFOV = def.MinFOV, def.MaxFOV
	}
	initial := clamp(cfg.Initial, cfg.MinFOV, cfg.MaxFOV)
	if cfg.Initial == 0 {
		initial = clamp(DefaultFOV, cfg.MinFOV, cfg.MaxFOV)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewZoomController",
		"min_fov":  cfg.MinFOV,
		"max_fov":  cfg.MaxFOV,
		"fov":      initial,
	}).Debug("Creating zoom controller")

	return &ZoomController{
		minFOV:   cfg.MinFOV,
		maxFOV:   cfg.MaxFOV,
		initial:  initial,
		fov:      initial,
		baseline: initial,
	}
}

// Begin captures the current FOV as the pinch baseline.
func (z *ZoomController) Begin() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.baseline = z.fov
	z.pinching = true
}

// Update applies a pinch scale relative to the baseline and returns the new
// FOV. Non-positive or non-finite scales are ignored.
func (z *ZoomController) Update(scale float64) float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.pinching || scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return z.fov
	}
	z.fov = clamp(z.baseline/scale, z.minFOV, z.maxFOV)
	return z.fov
}

// End finishes the pinch and re-captures the baseline for the next one.
func (z *ZoomController) End() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.baseline = z.fov
	z.pinching = false
}

// FOV returns the current field of view in degrees.
func (z *ZoomController) FOV() float64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.fov
}

// Range returns the FOV limits in degrees.
func (z *ZoomController) Range() (minFOV, maxFOV float64) {
	return z.minFOV, z.maxFOV
}

// Reset restores the initial FOV.
func (z *ZoomController) Reset() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.fov = z.initial
	z.baseline = z.initial
	z.pinching = false
}

// Projection returns the projection matrix for the current FOV.
func (z *ZoomController) Projection(aspect float64) Mat4 {
	return Perspective(z.FOV(), aspect, NearPlane, FarPlane)
}
