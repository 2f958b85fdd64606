package av

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "panosphere"
	metricsSubsystem = "playback"
)

// Seek results recorded by Metrics.Seeks.
const (
	SeekResultOK       = "ok"
	SeekResultRejected = "rejected"
	SeekResultFailed   = "failed"
	SeekResultNoop     = "noop"
)

// Metrics are the Prometheus collectors of the playback core.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsTornDown prometheus.Counter
	ActiveSessions   prometheus.Gauge
	LoadFailures     prometheus.Counter
	FramesPresented  prometheus.Counter
	FramesDropped    prometheus.Counter
	DecodeErrors     prometheus.Counter
	Loops            prometheus.Counter
	Seeks            *prometheus.CounterVec
	TeardownSeconds  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_started_total",
			Help:      "Playback sessions that finished loading.",
		}),
		SessionsTornDown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_torn_down_total",
			Help:      "Playback sessions whose resources were released.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "active_sessions",
			Help:      "Sessions occupying the playback slot (0 or 1).",
		}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "load_failures_total",
			Help:      "Sessions that failed to load.",
		}),
		FramesPresented: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "frames_presented_total",
			Help:      "Video frames published to the render texture.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "frames_dropped_total",
			Help:      "Decoded frames overtaken before display.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "decode_errors_total",
			Help:      "Decoder failures recovered by pausing.",
		}),
		Loops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "loops_total",
			Help:      "Times playback wrapped from the end to the start.",
		}),
		Seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "seeks_total",
			Help:      "Seek requests by result.",
		}, []string{"result"}),
		TeardownSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "teardown_seconds",
			Help:      "Time taken to release a session's resources.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.SessionsTornDown,
			m.ActiveSessions,
			m.LoadFailures,
			m.FramesPresented,
			m.FramesDropped,
			m.DecodeErrors,
			m.Loops,
			m.Seeks,
			m.TeardownSeconds,
		)
	}
	return m
}
