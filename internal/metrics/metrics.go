package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Scan metrics
	scansTotal         *prometheus.CounterVec
	scanDuration       prometheus.Histogram
	symbolOutcomes     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	lastScanTimestamp  prometheus.Gauge
	positionsOpen      prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Scan metrics
	r.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocktrack_scans_total",
			Help: "Total number of scan passes",
		},
		[]string{"strategy", "status"},
	)
	r.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stocktrack_scan_duration_seconds",
			Help:    "Scan pass duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	r.symbolOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocktrack_symbols_scanned_total",
			Help: "Symbols processed by scan outcome",
		},
		[]string{"strategy", "outcome"},
	)
	r.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocktrack_notifications_total",
			Help: "Crossover notifications by delivery status",
		},
		[]string{"strategy", "direction", "status"},
	)
	r.lastScanTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocktrack_last_scan_timestamp_seconds",
			Help: "Unix time of the last completed scan pass",
		},
	)
	r.positionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocktrack_positions_open",
			Help: "Number of open stock positions in the ledger",
		},
	)

	reg.MustRegister(r.scansTotal)
	reg.MustRegister(r.scanDuration)
	reg.MustRegister(r.symbolOutcomes)
	reg.MustRegister(r.notificationsTotal)
	reg.MustRegister(r.lastScanTimestamp)
	reg.MustRegister(r.positionsOpen)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordScan records a completed scan pass.
func (r *Registry) RecordScan(strategy, status string, duration float64, finishedUnix int64) {
	r.scansTotal.WithLabelValues(strategy, status).Inc()
	r.scanDuration.Observe(duration)
	r.lastScanTimestamp.Set(float64(finishedUnix))
}

// RecordSymbol records the outcome of one symbol in a scan pass.
func (r *Registry) RecordSymbol(strategy, outcome string) {
	r.symbolOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// RecordNotification records a notification attempt.
func (r *Registry) RecordNotification(strategy, direction, status string) {
	r.notificationsTotal.WithLabelValues(strategy, direction, status).Inc()
}

// SetPositionsOpen sets the number of open ledger positions.
func (r *Registry) SetPositionsOpen(count int) {
	r.positionsOpen.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
