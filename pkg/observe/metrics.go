package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// MetricsConfig configures the Prometheus flush observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reflow").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus flush observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets for flush duration.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "reflow",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.FlushObserver that exports flush activity as
// Prometheus metrics.
//
// Metrics collected:
//   - reflow_flushes_total: Counter of completed flushes
//   - reflow_flush_duration_seconds: Histogram of flush wall time
//   - reflow_flush_iterations: Histogram of passes per flush
//   - reflow_views_refreshed_total: Counter of view refreshes
//   - reflow_effect_runs_total: Counter of effect executions by outcome
//   - reflow_effect_errors_total: Counter of recovered effect panics
//
// Register it on a graph:
//
//	m := observe.NewMetrics(observe.WithNamespace("myapp"))
//	g := reactive.New(reactive.WithObserver(m))
//
//	// Expose the endpoint
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	flushesTotal    prometheus.Counter
	flushDuration   prometheus.Histogram
	flushIterations prometheus.Histogram
	viewsRefreshed  prometheus.Counter
	effectRuns      *prometheus.CounterVec
	effectErrors    prometheus.Counter
}

// NewMetrics creates a Prometheus flush observer, registering its collectors
// with the configured registry. Creating two observers against the same
// registry with the same namespace panics on duplicate registration; use
// WithRegistry or WithSubsystem to keep graphs apart.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of completed flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush wall time in seconds, all iterations included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_iterations",
			Help:        "View and effect passes needed per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),

		viewsRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "views_refreshed_total",
			Help:        "Total number of view refreshes",
			ConstLabels: config.ConstLabels,
		}),

		effectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of scheduled effect executions by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		effectErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_errors_total",
			Help:        "Total number of recovered effect panics",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// FlushStart implements reactive.FlushObserver.
func (m *Metrics) FlushStart() {}

// FlushEnd implements reactive.FlushObserver.
func (m *Metrics) FlushEnd(stats reactive.FlushStats) {
	m.flushesTotal.Inc()
	m.flushDuration.Observe(stats.Duration.Seconds())
	m.flushIterations.Observe(float64(stats.Iterations))
	m.viewsRefreshed.Add(float64(stats.ViewsRefreshed))
	m.effectRuns.WithLabelValues("ran").Add(float64(stats.EffectsRun))
	m.effectRuns.WithLabelValues("skipped").Add(float64(stats.EffectsSkipped))
	m.effectErrors.Add(float64(stats.EffectErrors))
}
