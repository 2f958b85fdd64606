package share

import "github.com/prometheus/client_golang/prometheus"

// Release reasons recorded by Metrics.Released.
const (
	ReasonReleased  = "released"
	ReasonExpired   = "expired"
	ReasonAbandoned = "abandoned"
	ReasonClosed    = "closed"
)

// Metrics are the Prometheus collectors of a Stager.
type Metrics struct {
	Staged       *prometheus.CounterVec
	Failures     prometheus.Counter
	Released     *prometheus.CounterVec
	Live         prometheus.Gauge
	Bytes        prometheus.Counter
	OrphansSwept prometheus.Counter
	StageSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Staged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "staged_total",
			Help:      "Staged copies by asset kind.",
		}, []string{"kind"}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "failures_total",
			Help:      "Items that could not be staged.",
		}),
		Released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "released_total",
			Help:      "Staged copies deleted, by reason.",
		}, []string{"reason"}),
		Live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "live",
			Help:      "Staged copies awaiting release.",
		}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "bytes_total",
			Help:      "Bytes written to staged copies.",
		}),
		OrphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "orphans_swept_total",
			Help:      "Stale staging directories removed at startup.",
		}),
		StageSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "panosphere",
			Subsystem: "share",
			Name:      "stage_seconds",
			Help:      "Time taken to stage one item.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Staged, m.Failures, m.Released, m.Live, m.Bytes, m.OrphansSwept, m.StageSeconds)
	}
	return m
}
