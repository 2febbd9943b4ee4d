package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	storeOps        *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoiceflow_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoiceflow_external_errors_total",
				Help: "Total errors from the remote data service.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoiceflow_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoiceflow_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		storeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoiceflow_store_operations_total",
				Help: "Total store operations by store and operation.",
			},
			[]string{"store", "op"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoiceflow_auth_events_total",
				Help: "Total auth-state change events observed.",
			},
			[]string{"event"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStoreOp increments the store operation counter.
func (m *Metrics) IncrStoreOp(store, op string) {
	m.storeOps.WithLabelValues(store, op).Inc()
}

// IncrAuthEvent increments the auth event counter.
func (m *Metrics) IncrAuthEvent(event string) {
	m.authEvents.WithLabelValues(event).Inc()
}

// OpsSnapshot is a point-in-time summary of store activity, suitable for
// the dashboard payload.
type OpsSnapshot struct {
	ClientOps    int64   `json:"clientOps"`
	InvoiceOps   int64   `json:"invoiceOps"`
	SignIns      int64   `json:"signIns"`
	SignOuts     int64   `json:"signOuts"`
	CacheHitRate float64 `json:"cacheHitRate"`
}

// GetOpsSnapshot gathers current counter values.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetOpsSnapshot() *OpsSnapshot {
	clientOps := getCounterValue(m.storeOps, "clients", "fetch") +
		getCounterValue(m.storeOps, "clients", "add") +
		getCounterValue(m.storeOps, "clients", "update") +
		getCounterValue(m.storeOps, "clients", "delete")
	invoiceOps := getCounterValue(m.storeOps, "invoices", "fetch") +
		getCounterValue(m.storeOps, "invoices", "create") +
		getCounterValue(m.storeOps, "invoices", "update_status") +
		getCounterValue(m.storeOps, "invoices", "delete")

	hits := getCounterValue(m.cacheHits, "invoice")
	misses := getCounterValue(m.cacheMisses, "invoice")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &OpsSnapshot{
		ClientOps:    int64(clientOps),
		InvoiceOps:   int64(invoiceOps),
		SignIns:      int64(getCounterValue(m.authEvents, "SIGNED_IN")),
		SignOuts:     int64(getCounterValue(m.authEvents, "SIGNED_OUT")),
		CacheHitRate: hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
