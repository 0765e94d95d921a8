package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide Prometheus collectors for the controller.
// It is a thin handle: callers hold one instance for the lifetime of the
// process and pass it to the middleware and core components that need it.
type Metrics struct {
	registry *prometheus.Registry

	apiInflight  prometheus.Gauge
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec
	queueWait    prometheus.Histogram
	workerScore  *prometheus.GaugeVec
	dispatchTry  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	leaderGauge  prometheus.Gauge
	validation   *prometheus.CounterVec
}

// NewMetrics builds and registers every collector on a fresh registry.
// Collectors are namespaced under "masterctl" so they do not collide with
// anything else exporting to the same scrape target.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiInflight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "masterctl",
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "Number of HTTP requests currently being handled.",
		}),
		apiRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterctl",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masterctl",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route, and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "masterctl",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of tasks currently queued, by priority.",
		}, []string{"priority"}),
		queueWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "masterctl",
			Subsystem: "queue",
			Name:      "wait_seconds",
			Help:      "Time a task spent queued before being dequeued.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		workerScore: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "masterctl",
			Subsystem: "worker",
			Name:      "score",
			Help:      "Current composite routing score (0-100) per worker.",
		}, []string{"worker", "worker_type"}),
		dispatchTry: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterctl",
			Subsystem: "dispatch",
			Name:      "attempts_total",
			Help:      "Dispatch attempts by worker and outcome.",
		}, []string{"worker", "outcome"}),
		cacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterctl",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by outcome (hit/miss).",
		}, []string{"outcome"}),
		leaderGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "masterctl",
			Subsystem: "leader",
			Name:      "is_leader",
			Help:      "1 if this replica currently holds leadership, else 0.",
		}),
		validation: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterctl",
			Subsystem: "validation",
			Name:      "outcomes_total",
			Help:      "Answer validation outcomes (accept/retry) by worker.",
		}, []string{"worker", "outcome"}),
	}
	return m
}

// Handler returns the HTTP handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ApiInflightInc() { m.apiInflight.Inc() }
func (m *Metrics) ApiInflightDec() { m.apiInflight.Dec() }

func (m *Metrics) ObserveAPI(method, route, status string, d time.Duration) {
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(priority string, depth int) {
	m.queueDepth.WithLabelValues(priority).Set(float64(depth))
}

func (m *Metrics) ObserveQueueWait(d time.Duration) {
	m.queueWait.Observe(d.Seconds())
}

func (m *Metrics) SetWorkerScore(worker, workerType string, score float64) {
	m.workerScore.WithLabelValues(worker, workerType).Set(score)
}

func (m *Metrics) IncDispatch(worker, outcome string) {
	m.dispatchTry.WithLabelValues(worker, outcome).Inc()
}

func (m *Metrics) IncCacheLookup(outcome string) {
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetLeader(isLeader bool) {
	if isLeader {
		m.leaderGauge.Set(1)
		return
	}
	m.leaderGauge.Set(0)
}

func (m *Metrics) IncValidation(worker, outcome string) {
	m.validation.WithLabelValues(worker, outcome).Inc()
}
