package view

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoomInverseScale(t *testing.T) {
	z := NewZoomController(ZoomConfig{MinFOV: 20, MaxFOV: 120, Initial: 80})

	z.Begin()
	assert.Equal(t, 40.0, z.Update(2))
	assert.Equal(t, 80.0, z.Update(1))
	assert.Equal(t, 100.0, z.Update(0.8))
	z.End()
}

func TestZoomBaselineComposesAcrossPinches(t *testing.T) {
	z := NewZoomController(ZoomConfig{MinFOV: 10, MaxFOV: 120, Initial: 80})

	z.Begin()
	z.Update(2)
	z.End()

	z.Begin()
	fov := z.Update(2)
	z.End()

	assert.Equal(t, 20.0, fov)
}

func TestZoomClamped(t *testing.T) {
	z := NewZoomController(ZoomConfig{MinFOV: 30, MaxFOV: 110, Initial: 75})

	z.Begin()
	assert.Equal(t, 30.0, z.Update(100))
	assert.Equal(t, 110.0, z.Update(0.01))
	z.End()
}

func TestZoomIgnoresInvalidScale(t *testing.T) {
	z := NewZoomController(DefaultZoomConfig())
	z.Begin()
	assert.Equal(t, DefaultFOV, z.Update(0))
	assert.Equal(t, DefaultFOV, z.Update(-3))
	z.End()

	// No pinch in progress.
	assert.Equal(t, DefaultFOV, z.Update(2))
}

func TestZoomRandomPinchesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	z := NewZoomController(DefaultZoomConfig())
	lo, hi := z.Range()

	for g := 0; g < 100; g++ {
		z.Begin()
		baseline := z.FOV()
		for i := 0; i < 20; i++ {
			scale := rng.Float64()*4 + 0.01
			fov := z.Update(scale)
			require.GreaterOrEqual(t, fov, lo)
			require.LessOrEqual(t, fov, hi)
			if scale > 1 && baseline > lo {
				require.Less(t, fov, baseline, "zoom in must narrow the FOV")
			}
		}
		z.End()
	}
}

func TestZoomReset(t *testing.T) {
	z := NewZoomController(ZoomConfig{MinFOV: 30, MaxFOV: 110, Initial: 60})
	z.Begin()
	z.Update(2)
	z.End()
	z.Reset()
	assert.Equal(t, 60.0, z.FOV())
}

func TestZoomInvalidConfigFallsBack(t *testing.T) {
	z := NewZoomController(ZoomConfig{MinFOV: 90, MaxFOV: 10})
	lo, hi := z.Range()
	assert.Equal(t, DefaultMinFOV, lo)
	assert.Equal(t, DefaultMaxFOV, hi)
	assert.Equal(t, DefaultFOV, z.FOV())
}
