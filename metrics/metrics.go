package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for verification runs.
//
// Each Metrics owns its registry, so a process (or a test) can create
// more than one without duplicate registration panics.
type Metrics struct {
	Registry *prometheus.Registry

	// Verification outcomes: verified, mismatch, failed
	Outcomes *prometheus.CounterVec

	// Failed runs by the stage that failed
	Failures *prometheus.CounterVec

	// Pointer resolutions by source: primary, fallback
	PointerSources *prometheus.CounterVec

	// Runs rejected because another run was in flight
	BusyRejections prometheus.Counter

	// Runs abandoned because the caller cancelled
	Abandoned prometheus.Counter

	ArtifactSize prometheus.Gauge
	RunDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all beacon metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_verification_outcomes_total",
			Help: "Total verification runs by outcome",
		}, []string{"outcome"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_verification_failures_total",
			Help: "Total failed verification runs by stage",
		}, []string{"stage"}),

		PointerSources: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_pointer_resolutions_total",
			Help: "Total pointer resolutions by the source that answered",
		}, []string{"source"}),

		BusyRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_busy_rejections_total",
			Help: "Verification requests rejected because a run was in flight",
		}),

		Abandoned: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_abandoned_runs_total",
			Help: "Verification runs abandoned by cancellation",
		}),

		ArtifactSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_artifact_size_bytes",
			Help: "Size of the most recently downloaded artifact",
		}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_verification_duration_seconds",
			Help:    "Duration of complete verification runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
	}
}

// IncrementOutcome records a completed run.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementFailure records the stage of a failed run.
func (m *Metrics) IncrementFailure(stage string) {
	if m != nil {
		m.Failures.WithLabelValues(stage).Inc()
	}
}

// IncrementPointerSource records which source supplied the pointer.
func (m *Metrics) IncrementPointerSource(source string) {
	if m != nil {
		m.PointerSources.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) IncrementBusy() {
	if m != nil {
		m.BusyRejections.Inc()
	}
}

func (m *Metrics) IncrementAbandoned() {
	if m != nil {
		m.Abandoned.Inc()
	}
}

// SetArtifactSize records the size of the latest artifact.
func (m *Metrics) SetArtifactSize(size int64) {
	if m != nil {
		m.ArtifactSize.Set(float64(size))
	}
}

// ObserveRunDuration records how long a run took, start to outcome.
func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

// Handler serves this instance's metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
