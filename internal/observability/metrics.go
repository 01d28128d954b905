package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seedpool"

// Seed paths reported by ObserveSeed.
const (
	SeedPathPool     = "pool"
	SeedPathFast     = "fast"
	SeedPathDegraded = "degraded"
	SeedPathFallback = "fallback"
)

// Refresh outcomes reported by ObserveRefresh.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshTimeout = "timeout"
	RefreshSkipped = "skipped"
)

// Metrics groups the service collectors on a private registry. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	seeds             *prometheus.CounterVec
	refreshCycles     *prometheus.CounterVec
	refreshDuration   prometheus.Histogram
	collectorFailures *prometheus.CounterVec
	emergencyBytes    prometheus.Counter
	rateLimited       prometheus.Counter
	authFailures      prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		seeds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeds_served_total",
			Help:      "Seeds served, by extraction path.",
		}, []string{"path"}),
		refreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles, by outcome.",
		}, []string{"outcome"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall-clock duration of refresh cycles.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 90},
		}),
		collectorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_failures_total",
			Help:      "Entropy source runs replaced by fallback bytes.",
		}, []string{"source"}),
		emergencyBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_bytes_total",
			Help:      "Secure-random bytes appended after failed refresh cycles.",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected for a missing or unknown API key.",
		}),
	}
}

// RegisterPool exposes live pool gauges backed by the given readers.
func (m *Metrics) RegisterPool(size, capacity func() float64) {
	if m == nil {
		return
	}

	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_bytes",
		Help:      "Bytes currently held by the entropy pool.",
	}, size)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_capacity_bytes",
		Help:      "Configured capacity target of the entropy pool.",
	}, capacity)
}

func (m *Metrics) ObserveSeed(path string) {
	if m == nil {
		return
	}
	m.seeds.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshCycles.WithLabelValues(outcome).Inc()
	if outcome != RefreshSkipped {
		m.refreshDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveCollectorFailure(source string) {
	if m == nil {
		return
	}
	m.collectorFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveEmergencyBytes(n int) {
	if m == nil {
		return
	}
	m.emergencyBytes.Add(float64(n))
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) ObserveAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
