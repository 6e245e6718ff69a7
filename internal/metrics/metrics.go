package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the sweep.
type Metrics struct {
	registry *prometheus.Registry

	// Step outcomes: processed, paused, finished, failed
	StepOutcome *prometheus.CounterVec

	// Verdicts by result: ok, corrupted
	Verdicts *prometheus.CounterVec

	FetchLatency prometheus.Histogram
	CheckLatency prometheus.Histogram

	SweepsCompleted prometheus.Counter
	Active          prometheus.Gauge
	Running         prometheus.Gauge
	Waiting         prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry, alongside the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StepOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_sweep_steps_total",
			Help: "Sweep steps by outcome",
		}, []string{"outcome"}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_objects_verified_total",
			Help: "Objects verified by result",
		}, []string{"result"}),

		FetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_fetch_duration_seconds",
			Help:    "Duration of content store fetches including download",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),

		CheckLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_check_duration_seconds",
			Help:    "Duration of archive corruption checks",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		SweepsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_sweeps_completed_total",
			Help: "Full passes over the catalog",
		}),

		Active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_sweep_active",
			Help: "1 when the controller is active",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_sweep_running",
			Help: "1 while a continuation is running",
		}),
		Waiting: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_sweep_waiting",
			Help: "1 while the sweep is parked on a preparing object",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementStep records a step outcome.
func (m *Metrics) IncrementStep(outcome string) {
	if m != nil {
		m.StepOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementVerdict records a completed check.
func (m *Metrics) IncrementVerdict(corrupted bool) {
	if m == nil {
		return
	}
	result := "ok"
	if corrupted {
		result = "corrupted"
	}
	m.Verdicts.WithLabelValues(result).Inc()
}

// ObserveFetch records a fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m != nil {
		m.FetchLatency.Observe(d.Seconds())
	}
}

// ObserveCheck records a corruption check duration.
func (m *Metrics) ObserveCheck(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}

// IncrementSweepsCompleted counts a finished pass.
func (m *Metrics) IncrementSweepsCompleted() {
	if m != nil {
		m.SweepsCompleted.Inc()
	}
}

// SetState mirrors the controller state into gauges.
func (m *Metrics) SetState(active, running, waiting bool) {
	if m == nil {
		return
	}
	m.Active.Set(boolValue(active))
	m.Running.Set(boolValue(running))
	m.Waiting.Set(boolValue(waiting))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
