package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API, worker, receipt, and
// renewal flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	dispatchesSentTotal   *prometheus.CounterVec
	dispatchesFailedTotal *prometheus.CounterVec
	dispatchSendDuration  *prometheus.HistogramVec
	workerInflight        *prometheus.GaugeVec
	retryScheduledTotal   *prometheus.CounterVec
	receiptsTotal         *prometheus.CounterVec
	renewalsTotal         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "dispatches_sent_total",
				Help:      "Total number of delivery records handed to the provider successfully.",
			},
			[]string{"channel"},
		),
		dispatchesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "dispatches_failed_total",
				Help:      "Total number of delivery records that ended in failed state.",
			},
			[]string{"channel", "reason"},
		),
		dispatchSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "dispatch_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notify_engine",
				Name:      "worker_inflight",
				Help:      "Number of delivery records currently being dispatched.",
			},
			[]string{"channel"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "retry_scheduled_total",
				Help:      "Total number of delivery retries scheduled.",
			},
			[]string{"channel"},
		),
		receiptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "receipts_total",
				Help:      "Total number of delivery receipts ingested by outcome.",
			},
			[]string{"outcome"},
		),
		renewalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "credential_renewals_total",
				Help:      "Total number of credential renewal attempts by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchesSentTotal,
		m.dispatchesFailedTotal,
		m.dispatchSendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.receiptsTotal,
		m.renewalsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatchSent(channel string) {
	if m == nil {
		return
	}
	m.dispatchesSentTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncDispatchFailed(channel string, reason string) {
	if m == nil {
		return
	}
	m.dispatchesFailedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveDispatchSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchSendDuration.WithLabelValues(normalizeLabel(channel)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(channel)).Dec()
}

func (m *Metrics) IncRetryScheduled(channel string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncReceipt counts an ingested receipt; outcome is applied, duplicate, or
// unknown.
func (m *Metrics) IncReceipt(outcome string) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRenewal counts a credential renewal attempt; result is success or
// failure.
func (m *Metrics) IncRenewal(result string) {
	if m == nil {
		return
	}
	m.renewalsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
