package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkerCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncNotificationCreated("PAYMENT_OVERDUE")
	metrics.IncNotificationSent("SMS")
	metrics.IncNotificationFailed("sms", "Permanent")
	metrics.IncNotificationFailed("email", "")
	metrics.IncNotificationDeferred("WHATSAPP")
	metrics.ObserveNotificationSendDuration("sms", 120*time.Millisecond)
	metrics.IncWorkerInFlight("URGENT")
	metrics.DecWorkerInFlight("URGENT")
	metrics.IncRetryScheduled("sms")
	metrics.IncFailover("SMS", "WHATSAPP")
	metrics.IncInboundEvent("user.created.queue", "accepted")
	metrics.AddSchedulerDispatched(3)
	metrics.AddSchedulerDispatched(0)

	if got := testutil.ToFloat64(metrics.notificationsCreatedTotal.WithLabelValues("payment_overdue")); got != 1 {
		t.Fatalf("notifications_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsSentTotal.WithLabelValues("sms")); got != 1 {
		t.Fatalf("notifications_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsFailedTotal.WithLabelValues("sms", "permanent")); got != 1 {
		t.Fatalf("notifications_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsFailedTotal.WithLabelValues("email", "unknown")); got != 1 {
		t.Fatalf("notifications_failed_total{reason=unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsDeferredTotal.WithLabelValues("whatsapp")); got != 1 {
		t.Fatalf("notifications_deferred_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal.WithLabelValues("sms")); got != 1 {
		t.Fatalf("retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.failoverTotal.WithLabelValues("sms", "whatsapp")); got != 1 {
		t.Fatalf("failover_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight.WithLabelValues("urgent")); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.inboundEventsTotal.WithLabelValues("user.created.queue", "accepted")); got != 1 {
		t.Fatalf("inbound_events_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.schedulerDispatchedTotal); got != 3 {
		t.Fatalf("scheduler_dispatched_total = %v, want 3", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncNotificationSent("sms")
	metrics.IncFailover("sms", "email")
	metrics.AddSchedulerDispatched(1)
	if metrics.Handler() == nil {
		t.Fatal("nil metrics should still expose a handler")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
