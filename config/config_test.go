package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/panosphere/view"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.005, cfg.View.Sensitivity)
	assert.InDelta(t, 85.0, cfg.View.MaxPitchDegrees, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.Playback.ProgressInterval)
	assert.Equal(t, 60, cfg.Playback.TickRate)
	assert.True(t, cfg.Playback.Loop)
	assert.Equal(t, 5*time.Minute, cfg.Share.GraceTimeout)
	assert.Equal(t, 4, cfg.Share.Concurrency)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
view:
  max_pitch_degrees: 60
playback:
  progress_interval: 250ms
  loop: false
share:
  grace_timeout: 30s
log:
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 60.0, cfg.View.MaxPitchDegrees)
	assert.Equal(t, view.DefaultFOV, cfg.View.DefaultFOV, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.ProgressInterval)
	assert.False(t, cfg.Playback.Loop)
	assert.Equal(t, 30*time.Second, cfg.Share.GraceTimeout)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.InDelta(t, math.Pi/3, cfg.OrientationConfig().MaxPitch, 1e-12)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.View.MaxPitchDegrees = 120
	cfg.View.DefaultFOV = 10
	cfg.Playback.TickRate = 0
	cfg.Share.Concurrency = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, key := range []string{"max_pitch_degrees", "default_fov", "tick_rate", "share.concurrency", "log.format"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panosphere.yaml")
	require.NoError(t, os.WriteFile(path, []byte("playback:\n  tick_rate: 120\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Playback.TickRate)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("playback:\n  tick_rate: -1\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Addr = ":9090"
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "progress_interval: 500ms")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestComponentConfigs(t *testing.T) {
	cfg := Default()

	zoom := cfg.ZoomConfig()
	assert.Equal(t, view.ZoomConfig{MinFOV: 30, MaxFOV: 110, Initial: 75}, zoom)

	session := cfg.SessionConfig()
	assert.Equal(t, 8, session.Streamer.QueueDepth)
	assert.Equal(t, 4096, session.Streamer.MaxTextureWidth)

	opts := cfg.ShareOptions()
	assert.Equal(t, cfg.Share.Dir, opts.Dir)
	assert.Equal(t, 4, opts.Concurrency)
}

func TestLogApply(t *testing.T) {
	logger := logrus.New()
	require.NoError(t, LogConfig{Level: "debug", Format: "json"}.Apply(logger))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	assert.ErrorIs(t, LogConfig{Level: "loud"}.Apply(logger), ErrInvalidConfig)
}
