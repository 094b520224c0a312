package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// NOAA Metrics
	NOAARequestsTotal   *prometheus.CounterVec
	NOAARequestDuration *prometheus.HistogramVec
	NOAAFallbackTotal   *prometheus.CounterVec

	// Ledger Metrics
	LedgerCallsTotal   *prometheus.CounterVec
	LedgerCallDuration *prometheus.HistogramVec
	LedgerErrorsTotal  *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Sync Metrics
	SyncRunsTotal *prometheus.CounterVec
	SyncDuration  prometheus.Histogram

	// Flood state
	FloodRisk   *prometheus.GaugeVec
	ThreatLevel prometheus.Gauge
}

// NewCollector creates a new metrics collector on the default registry
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on reg
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		NOAARequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "noaa_requests_total",
				Help:      "Outbound NOAA data-provider requests by product and outcome",
			},
			[]string{"product", "status"},
		),

		NOAARequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "noaa_request_duration_seconds",
				Help:      "Outbound NOAA request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"product"},
		),

		NOAAFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "noaa_fallback_total",
				Help:      "Readings replaced with demo fallback values, by product and reason",
			},
			[]string{"product", "reason"},
		),

		LedgerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_calls_total",
				Help:      "Contract calls and transactions by method and outcome",
			},
			[]string{"method", "status"},
		),

		LedgerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_call_duration_seconds",
				Help:      "Contract call duration in seconds, including finalization for writes",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),

		LedgerErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_errors_total",
				Help:      "Classified ledger failures by kind",
			},
			[]string{"kind"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Oracle sync cycles by outcome",
			},
			[]string{"status"},
		),

		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of a full sync cycle in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		FloodRisk: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "flood_risk",
				Help:      "Latest off-chain flood risk evaluation per station (1 = at risk)",
			},
			[]string{"station_id"},
		),

		ThreatLevel: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_threat_level",
				Help:      "Latest threat level reported by the contract (0-3)",
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordNOAARequest counts an outbound NOAA request
func (c *Collector) RecordNOAARequest(product, status string) {
	c.NOAARequestsTotal.WithLabelValues(product, status).Inc()
}

// RecordFallback counts a reading substituted with its fallback value
func (c *Collector) RecordFallback(product, reason string) {
	c.NOAAFallbackTotal.WithLabelValues(product, reason).Inc()
}

// RecordLedgerCall counts a contract call by outcome
func (c *Collector) RecordLedgerCall(method, status string) {
	c.LedgerCallsTotal.WithLabelValues(method, status).Inc()
}

// RecordLedgerError counts a classified ledger failure
func (c *Collector) RecordLedgerError(kind string) {
	c.LedgerErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordSyncRun counts a finished sync cycle
func (c *Collector) RecordSyncRun(status string) {
	c.SyncRunsTotal.WithLabelValues(status).Inc()
}

// SetFloodRisk publishes the latest off-chain risk for a station
func (c *Collector) SetFloodRisk(stationID string, atRisk bool) {
	v := 0.0
	if atRisk {
		v = 1.0
	}
	c.FloodRisk.WithLabelValues(stationID).Set(v)
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
