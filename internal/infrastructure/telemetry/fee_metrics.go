package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricNamespace = "schoolfees"

// FeeMetrics holds the Prometheus collectors of the fee service. Each
// instance owns its registry so tests can create as many as they need.
type FeeMetrics struct {
	registry *prometheus.Registry

	paymentsRecorded    *prometheus.CounterVec
	paymentsConfirmed   *prometheus.CounterVec
	signatureRejections *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	receiptCollisions   prometheus.Counter
	rosterLookups       *prometheus.CounterVec
	rosterLatency       *prometheus.HistogramVec
	httpRequests        *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
}

// NewFeeMetrics creates and registers the collectors. Go runtime and process
// collectors are included so /metrics is useful on its own.
func NewFeeMetrics() *FeeMetrics {
	m := &FeeMetrics{
		registry: prometheus.NewRegistry(),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "payments_recorded_total",
			Help:      "Journal rows written, by payment method and status",
		}, []string{"method", "status"}),
		paymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "payments_confirmed_total",
			Help:      "Gateway payment confirmations per fee line, by outcome (credited, replay)",
		}, []string{"outcome"}),
		signatureRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "signature_rejections_total",
			Help:      "Rejected gateway signatures, by kind (payment, webhook)",
		}, []string{"kind"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries, by event and outcome",
		}, []string{"event", "outcome"}),
		receiptCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "receipt_collisions_total",
			Help:      "Generated receipt numbers that were already taken",
		}),
		rosterLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "roster_lookups_total",
			Help:      "Roster service calls, by operation and outcome",
		}, []string{"operation", "outcome"}),
		rosterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "roster_lookup_duration_seconds",
			Help:      "Roster service call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.paymentsRecorded,
		m.paymentsConfirmed,
		m.signatureRejections,
		m.webhookEvents,
		m.receiptCollisions,
		m.rosterLookups,
		m.rosterLatency,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Registry exposes the underlying registry
func (m *FeeMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *FeeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PaymentRecorded counts a journal row
func (m *FeeMetrics) PaymentRecorded(method, status string) {
	m.paymentsRecorded.WithLabelValues(method, status).Inc()
}

// PaymentConfirmed counts a confirmed fee line
func (m *FeeMetrics) PaymentConfirmed(outcome string) {
	m.paymentsConfirmed.WithLabelValues(outcome).Inc()
}

// SignatureRejected counts a failed signature check
func (m *FeeMetrics) SignatureRejected(kind string) {
	m.signatureRejections.WithLabelValues(kind).Inc()
}

// WebhookEvent counts a webhook delivery
func (m *FeeMetrics) WebhookEvent(event, outcome string) {
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

// ReceiptCollision counts a receipt number regeneration
func (m *FeeMetrics) ReceiptCollision() {
	m.receiptCollisions.Inc()
}

// ObserveRosterLookup records one roster call
func (m *FeeMetrics) ObserveRosterLookup(operation, outcome string, elapsed time.Duration) {
	m.rosterLookups.WithLabelValues(operation, outcome).Inc()
	m.rosterLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// GinMiddleware records request count and latency per matched route
func (m *FeeMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
