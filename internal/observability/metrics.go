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

const namespace = "notification_engine"

// Metrics stores Prometheus collectors used by API, worker and scheduler flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDuration        *prometheus.HistogramVec
	notificationsCreatedTotal  *prometheus.CounterVec
	notificationsSentTotal     *prometheus.CounterVec
	notificationsFailedTotal   *prometheus.CounterVec
	notificationsDeferredTotal *prometheus.CounterVec
	notificationSendDuration   *prometheus.HistogramVec
	workerInflight             *prometheus.GaugeVec
	retryScheduledTotal        *prometheus.CounterVec
	failoverTotal              *prometheus.CounterVec
	inboundEventsTotal         *prometheus.CounterVec
	schedulerDispatchedTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_created_total",
				Help:      "Total number of notifications accepted, by notification type.",
			},
			[]string{"type"},
		),
		notificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications accepted by a provider.",
			},
			[]string{"channel"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Total number of notifications that ended in failed state.",
			},
			[]string{"channel", "reason"},
		),
		notificationsDeferredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_deferred_total",
				Help:      "Total number of notifications held back by quiet hours.",
			},
			[]string{"channel"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Dispatch step duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Current number of in-flight dispatch steps grouped by priority.",
			},
			[]string{"priority"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_scheduled_total",
				Help:      "Total number of same-channel retries scheduled.",
			},
			[]string{"channel"},
		),
		failoverTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failover_total",
				Help:      "Total number of channel failovers after a spent retry budget.",
			},
			[]string{"from", "to"},
		),
		inboundEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_events_total",
				Help:      "Total number of inbound business events by queue and outcome.",
			},
			[]string{"queue", "outcome"},
		),
		schedulerDispatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_dispatched_total",
				Help:      "Total number of due notifications the scheduler put back on the dispatch queue.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsCreatedTotal,
		m.notificationsSentTotal,
		m.notificationsFailedTotal,
		m.notificationsDeferredTotal,
		m.notificationSendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.failoverTotal,
		m.inboundEventsTotal,
		m.schedulerDispatchedTotal,
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

func (m *Metrics) IncNotificationCreated(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsCreatedTotal.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) IncNotificationSent(channel string) {
	if m == nil {
		return
	}
	m.notificationsSentTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncNotificationFailed(channel string, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncNotificationDeferred(channel string) {
	if m == nil {
		return
	}
	m.notificationsDeferredTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) ObserveNotificationSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.notificationSendDuration.WithLabelValues(normalizeLabel(channel)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(priority string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(priority)).Inc()
}

func (m *Metrics) DecWorkerInFlight(priority string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(priority)).Dec()
}

func (m *Metrics) IncRetryScheduled(channel string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncFailover(from string, to string) {
	if m == nil {
		return
	}
	m.failoverTotal.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Metrics) IncInboundEvent(queue string, outcome string) {
	if m == nil {
		return
	}
	m.inboundEventsTotal.WithLabelValues(strings.TrimSpace(queue), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) AddSchedulerDispatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.schedulerDispatchedTotal.Add(float64(n))
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
