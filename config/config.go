package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/opd-ai/panosphere/av"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/opd-ai/panosphere/share"
	"github.com/opd-ai/panosphere/view"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// MinPitchLimitDegrees and MaxPitchLimitDegrees bound view.max_pitch_degrees.
	MinPitchLimitDegrees = 10.0
	MaxPitchLimitDegrees = 90.0

	// MinFOVDegrees and MaxFOVDegrees bound every field-of-view setting.
	MinFOVDegrees = 1.0
	MaxFOVDegrees = 179.0

	// MaxTickRate bounds playback.tick_rate in Hz.
	MaxTickRate = 480
)

// ErrInvalidConfig indicates a configuration value was rejected.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the viewer configuration.
type Config struct {
	View     ViewConfig     `yaml:"view"`
	Playback PlaybackConfig `yaml:"playback"`
	Share    ShareConfig    `yaml:"share"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ViewConfig configures gesture navigation.
type ViewConfig struct {
	// Sensitivity is radians of rotation per input unit of drag.
	Sensitivity     float64 `yaml:"sensitivity"`
	MaxPitchDegrees float64 `yaml:"max_pitch_degrees"`
	MinFOV          float64 `yaml:"min_fov"`
	MaxFOV          float64 `yaml:"max_fov"`
	DefaultFOV      float64 `yaml:"default_fov"`
}

// PlaybackConfig configures video sessions.
type PlaybackConfig struct {
	ProgressInterval time.Duration `yaml:"progress_interval"`
	TickRate         int           `yaml:"tick_rate"`
	Loop             bool          `yaml:"loop"`
	FrameQueueDepth  int           `yaml:"frame_queue_depth"`
	MaxTextureWidth  int           `yaml:"max_texture_width"`
	NetworkAllowed   bool          `yaml:"network_allowed"`
}

// ShareConfig configures share staging.
type ShareConfig struct {
	Dir            string        `yaml:"dir"`
	GraceTimeout   time.Duration `yaml:"grace_timeout"`
	Concurrency    int           `yaml:"concurrency"`
	NetworkAllowed bool          `yaml:"network_allowed"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		View: ViewConfig{
			Sensitivity:     view.DefaultSensitivity,
			MaxPitchDegrees: view.DefaultMaxPitch * 180 / math.Pi,
			MinFOV:          view.DefaultMinFOV,
			MaxFOV:          view.DefaultMaxFOV,
			DefaultFOV:      view.DefaultFOV,
		},
		Playback: PlaybackConfig{
			ProgressInterval: av.DefaultProgressInterval,
			TickRate:         av.DefaultTickRate,
			Loop:             true,
			FrameQueueDepth:  video.DefaultQueueDepth,
			MaxTextureWidth:  4096,
		},
		Share: ShareConfig{
			Dir:          filepath.Join(os.TempDir(), share.DefaultDirName),
			GraceTimeout: share.DefaultGraceTimeout,
			Concurrency:  share.DefaultConcurrency,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"path":     path,
	}).Debug("Configuration loaded")
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every rejected value, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	v := c.View
	if !(v.Sensitivity > 0) || math.IsInf(v.Sensitivity, 0) {
		fail("view.sensitivity must be positive, got %v", v.Sensitivity)
	}
	if v.MaxPitchDegrees < MinPitchLimitDegrees || v.MaxPitchDegrees > MaxPitchLimitDegrees {
		fail("view.max_pitch_degrees must be within [%v, %v], got %v", MinPitchLimitDegrees, MaxPitchLimitDegrees, v.MaxPitchDegrees)
	}
	if v.MinFOV < MinFOVDegrees || v.MaxFOV > MaxFOVDegrees || v.MinFOV > v.MaxFOV {
		fail("view FOV range [%v, %v] must lie within [%v, %v]", v.MinFOV, v.MaxFOV, MinFOVDegrees, MaxFOVDegrees)
	}
	if v.DefaultFOV < v.MinFOV || v.DefaultFOV > v.MaxFOV {
		fail("view.default_fov %v outside [%v, %v]", v.DefaultFOV, v.MinFOV, v.MaxFOV)
	}

	p := c.Playback
	if p.ProgressInterval <= 0 {
		fail("playback.progress_interval must be positive, got %v", p.ProgressInterval)
	}
	if p.TickRate <= 0 || p.TickRate > MaxTickRate {
		fail("playback.tick_rate must be within [1, %d], got %d", MaxTickRate, p.TickRate)
	}
	if p.FrameQueueDepth <= 0 {
		fail("playback.frame_queue_depth must be positive, got %d", p.FrameQueueDepth)
	}
	if p.MaxTextureWidth < 0 || p.MaxTextureWidth%2 != 0 {
		fail("playback.max_texture_width must be even and non-negative, got %d", p.MaxTextureWidth)
	}

	s := c.Share
	if s.Dir == "" {
		fail("share.dir must be set")
	}
	if s.GraceTimeout <= 0 {
		fail("share.grace_timeout must be positive, got %v", s.GraceTimeout)
	}
	if s.Concurrency <= 0 {
		fail("share.concurrency must be positive, got %d", s.Concurrency)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		fail("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// OrientationConfig returns the orientation controller settings.
func (c *Config) OrientationConfig() view.OrientationConfig {
	return view.OrientationConfig{
		Sensitivity: c.View.Sensitivity,
		MaxPitch:    c.View.MaxPitchDegrees * math.Pi / 180,
	}
}

// ZoomConfig returns the zoom controller settings.
func (c *Config) ZoomConfig() view.ZoomConfig {
	return view.ZoomConfig{
		MinFOV:  c.View.MinFOV,
		MaxFOV:  c.View.MaxFOV,
		Initial: c.View.DefaultFOV,
	}
}

// SessionConfig returns the playback session settings.
func (c *Config) SessionConfig() av.SessionConfig {
	return av.SessionConfig{
		ProgressInterval: c.Playback.ProgressInterval,
		TickRate:         c.Playback.TickRate,
		Loop:             c.Playback.Loop,
		Streamer: video.StreamerConfig{
			QueueDepth:      c.Playback.FrameQueueDepth,
			MaxTextureWidth: c.Playback.MaxTextureWidth,
		},
		NetworkAllowed: c.Playback.NetworkAllowed,
	}
}

// ShareOptions returns the stager settings.
func (c *Config) ShareOptions() share.Options {
	return share.Options{
		Dir:            c.Share.Dir,
		GraceTimeout:   c.Share.GraceTimeout,
		Concurrency:    c.Share.Concurrency,
		NetworkAllowed: c.Share.NetworkAllowed,
	}
}

// Apply configures logger from the log settings.
func (l LogConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, l.Format)
	}
	return nil
}
