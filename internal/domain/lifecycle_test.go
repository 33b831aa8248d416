package domain

import (
	"errors"
	"testing"
	"time"
)

var lifecycleNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPendingNotification(t *testing.T) *Notification {
	t.Helper()

	n := &Notification{
		ID:        "n-1",
		UserID:    "user-1",
		Channel:   ChannelSMS,
		Recipient: "+51999000111",
		Type:      TypePaymentReceived,
		Message:   "hello",
		Priority:  PriorityNormal,
	}
	event := NewNotification(n, lifecycleNow)
	if event.Type != EventCreated {
		t.Fatalf("NewNotification() event = %s, want %s", event.Type, EventCreated)
	}
	return n
}

func TestLifecycleHappyPath(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)

	steps := []struct {
		name   string
		run    func() (Event, error)
		status Status
		event  EventType
	}{
		{name: "start", run: func() (Event, error) { return n.Start(lifecycleNow) }, status: StatusProcessing, event: EventProcessing},
		{name: "sent", run: func() (Event, error) { return n.MarkSent(lifecycleNow, "LOCAL_SMS_GATEWAY", "msg-1") }, status: StatusSent, event: EventSent},
		{name: "delivered", run: func() (Event, error) { return n.MarkDelivered(lifecycleNow) }, status: StatusDelivered, event: EventDelivered},
		{name: "read", run: func() (Event, error) { return n.MarkRead(lifecycleNow) }, status: StatusRead, event: EventRead},
	}

	for _, step := range steps {
		event, err := step.run()
		if err != nil {
			t.Fatalf("%s: unexpected error = %v", step.name, err)
		}
		if n.Status != step.status {
			t.Fatalf("%s: status = %s, want %s", step.name, n.Status, step.status)
		}
		if event.Type != step.event || event.NotificationID != n.ID || event.Status != step.status {
			t.Fatalf("%s: event = %+v", step.name, event)
		}
	}

	if n.SentAt == nil || n.DeliveredAt == nil || n.ReadAt == nil {
		t.Fatalf("expected sentAt, deliveredAt and readAt to be set")
	}
	if n.ProviderName == nil || *n.ProviderName != "LOCAL_SMS_GATEWAY" {
		t.Fatalf("ProviderName = %v, want LOCAL_SMS_GATEWAY", n.ProviderName)
	}
	if n.ProviderID == nil || *n.ProviderID != "msg-1" {
		t.Fatalf("ProviderID = %v, want msg-1", n.ProviderID)
	}
}

func TestLifecycleRejectsTransitionsFromFinalStates(t *testing.T) {
	t.Parallel()

	finals := []Status{StatusDelivered, StatusRead, StatusFailed, StatusCancelled}
	ops := map[string]func(n *Notification) error{
		"start": func(n *Notification) error { _, err := n.Start(lifecycleNow); return err },
		"sent":  func(n *Notification) error { _, err := n.MarkSent(lifecycleNow, "p", "id"); return err },
		"fail":  func(n *Notification) error { _, err := n.MarkFailed(lifecycleNow, "boom"); return err },
		"retry": func(n *Notification) error {
			_, err := n.ScheduleRetry(lifecycleNow, lifecycleNow.Add(time.Minute), "timeout")
			return err
		},
		"failover": func(n *Notification) error {
			_, err := n.FailOver(lifecycleNow, ChannelEmail, "a@b.c", lifecycleNow, "exhausted")
			return err
		},
		"delivered": func(n *Notification) error { _, err := n.MarkDelivered(lifecycleNow); return err },
		"read":      func(n *Notification) error { _, err := n.MarkRead(lifecycleNow); return err },
		"cancel":    func(n *Notification) error { _, err := n.Cancel(lifecycleNow); return err },
		"defer":     func(n *Notification) error { _, err := n.Defer(lifecycleNow, lifecycleNow.Add(time.Hour)); return err },
		"requeue":   func(n *Notification) error { return n.RequeueNow(lifecycleNow) },
	}

	for _, status := range finals {
		for name, op := range ops {
			n := &Notification{ID: "n-1", Status: status}
			err := op(n)
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("%s from %s: error = %v, want ErrInvalidStateTransition", name, status, err)
			}
			if n.Status != status {
				t.Fatalf("%s from %s: status mutated to %s", name, status, n.Status)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{from: StatusPending, to: StatusProcessing, want: true},
		{from: StatusPending, to: StatusCancelled, want: true},
		{from: StatusPending, to: StatusFailed, want: true},
		{from: StatusPending, to: StatusSent},
		{from: StatusProcessing, to: StatusCancelled},
		{from: StatusProcessing, to: StatusPending, want: true},
		{from: StatusSent, to: StatusRead},
		{from: StatusSent, to: StatusDelivered, want: true},
		{from: StatusDelivered, to: StatusRead, want: true},
		{from: StatusRead, to: StatusDelivered},
		{from: StatusFailed, to: StatusPending},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestScheduleRetry(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	if _, err := n.Start(lifecycleNow); err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}

	at := lifecycleNow.Add(15 * time.Minute)
	event, err := n.ScheduleRetry(lifecycleNow, at, "gateway timeout")
	if err != nil {
		t.Fatalf("ScheduleRetry() unexpected error = %v", err)
	}
	if n.Status != StatusPending || n.RetryCount != 1 {
		t.Fatalf("status/retryCount = %s/%d, want PENDING/1", n.Status, n.RetryCount)
	}
	if n.ScheduledAt == nil || !n.ScheduledAt.Equal(at) {
		t.Fatalf("ScheduledAt = %v, want %v", n.ScheduledAt, at)
	}
	if event.Type != EventRetryScheduled || event.ErrorMessage != "gateway timeout" {
		t.Fatalf("event = %+v", event)
	}
}

func TestScheduleRetryRejectsPastTime(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	if _, err := n.Start(lifecycleNow); err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}

	_, err := n.ScheduleRetry(lifecycleNow, lifecycleNow.Add(-time.Second), "timeout")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ScheduleRetry() error = %v, want ErrValidation", err)
	}
	if n.Status != StatusProcessing || n.RetryCount != 0 {
		t.Fatalf("notification mutated on rejected retry: %s/%d", n.Status, n.RetryCount)
	}
}

func TestFailOverResetsBudget(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	n.RetryCount = 1
	if _, err := n.Start(lifecycleNow); err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}

	event, err := n.FailOver(lifecycleNow, ChannelEmail, "user@example.com", lifecycleNow, "sms budget spent")
	if err != nil {
		t.Fatalf("FailOver() unexpected error = %v", err)
	}
	if n.Channel != ChannelEmail || n.Recipient != "user@example.com" {
		t.Fatalf("channel/recipient = %s/%s", n.Channel, n.Recipient)
	}
	if n.RetryCount != 0 || !n.HasExhausted(ChannelSMS) {
		t.Fatalf("retryCount = %d exhausted = %v", n.RetryCount, n.ExhaustedChannels)
	}
	if event.Type != EventFailedOver || event.Channel != ChannelEmail {
		t.Fatalf("event = %+v", event)
	}
}

func TestDeferKeepsPending(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	until := lifecycleNow.Add(8 * time.Hour)

	event, err := n.Defer(lifecycleNow, until)
	if err != nil {
		t.Fatalf("Defer() unexpected error = %v", err)
	}
	if n.Status != StatusPending || n.ScheduledAt == nil || !n.ScheduledAt.Equal(until) {
		t.Fatalf("status/scheduledAt = %s/%v", n.Status, n.ScheduledAt)
	}
	if event.Type != EventDeferred || event.ScheduledAt == nil {
		t.Fatalf("event = %+v", event)
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	if _, err := n.Start(lifecycleNow); err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}
	if _, err := n.Cancel(lifecycleNow); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("Cancel() from PROCESSING error = %v, want ErrInvalidStateTransition", err)
	}

	pending := newPendingNotification(t)
	if _, err := pending.Cancel(lifecycleNow); err != nil {
		t.Fatalf("Cancel() unexpected error = %v", err)
	}
	if pending.Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", pending.Status)
	}
}

func TestCloneForRetry(t *testing.T) {
	t.Parallel()

	n := newPendingNotification(t)
	n.TemplateParams = map[string]string{"amount": "25.00"}
	if _, err := n.MarkFailed(lifecycleNow, "no deliverable channel"); err != nil {
		t.Fatalf("MarkFailed() unexpected error = %v", err)
	}

	clone, event, err := n.CloneForRetry("n-2", "operator", lifecycleNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("CloneForRetry() unexpected error = %v", err)
	}
	if clone.ID != "n-2" || clone.Status != StatusPending || clone.RetryCount != 0 || clone.ErrorMessage != nil {
		t.Fatalf("clone = %+v", clone)
	}
	if event.Type != EventCreated || event.NotificationID != "n-2" {
		t.Fatalf("event = %+v", event)
	}

	clone.TemplateParams["amount"] = "0"
	if n.TemplateParams["amount"] != "25.00" {
		t.Fatalf("clone shares template params with the failed notification")
	}
	if n.Status != StatusFailed || n.ErrorMessage == nil {
		t.Fatalf("failed notification mutated: %+v", n)
	}

	if _, _, err := clone.CloneForRetry("n-3", "", lifecycleNow); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("CloneForRetry() on PENDING error = %v, want ErrInvalidStateTransition", err)
	}
}
