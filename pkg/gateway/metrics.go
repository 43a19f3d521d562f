package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Numeric encoding of the effective mode gauge.
const (
	gaugeModeOff       = 0
	gaugeModeWriteOnly = 1
	gaugeModeReadWrite = 2
)

// Metrics holds the gateway's prometheus instruments. Safe for concurrent
// use after creation.
type Metrics struct {
	// ModeDowngrades counts forced downgrades by reason.
	ModeDowngrades *prometheus.CounterVec

	// FetchFailures counts failed context fetches by reason.
	FetchFailures *prometheus.CounterVec

	// Redactions counts replaced PII spans by category.
	Redactions *prometheus.CounterVec

	// WritesDropped counts turns dropped because the write queue was full.
	WritesDropped prometheus.Counter

	// ProbeAttempts counts recovery probes by outcome.
	ProbeAttempts *prometheus.CounterVec

	// EffectiveMode tracks the current mode (0=off, 1=write_only, 2=read_write).
	EffectiveMode prometheus.Gauge

	// FetchDuration records context fetch latency in seconds, cache hits
	// included.
	FetchDuration prometheus.Histogram
}

// NewMetrics registers the gateway instruments on the given registerer.
// Tests pass a fresh prometheus.NewRegistry() to avoid cross-suite
// duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ModeDowngrades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_mode_downgrades_total",
			Help: "Forced downgrades to write-only mode, by reason.",
		}, []string{"reason"}),

		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_fetch_failures_total",
			Help: "Context fetches that failed against the memory service, by reason.",
		}, []string{"reason"}),

		Redactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_redactions_total",
			Help: "PII spans replaced before write, by category.",
		}, []string{"category"}),

		WritesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mnemo_writes_dropped_total",
			Help: "Turns dropped because the async write queue was full.",
		}),

		ProbeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mnemo_probe_attempts_total",
			Help: "Recovery probe attempts, by outcome.",
		}, []string{"outcome"}),

		EffectiveMode: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mnemo_effective_mode",
			Help: "Current effective mode: 0=off, 1=write_only, 2=read_write.",
		}),

		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mnemo_fetch_duration_seconds",
			Help:    "Context fetch latency in seconds, cache hits included.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

// SetMode updates the effective mode gauge.
func (m *Metrics) SetMode(mode Mode) {
	switch mode {
	case ModeReadWrite:
		m.EffectiveMode.Set(gaugeModeReadWrite)
	case ModeWriteOnly:
		m.EffectiveMode.Set(gaugeModeWriteOnly)
	default:
		m.EffectiveMode.Set(gaugeModeOff)
	}
}
