package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a notification lifecycle event; it doubles as the broker routing key.
type EventType string

const (
	EventCreated        EventType = "notification.created"
	EventProcessing     EventType = "notification.processing"
	EventSent           EventType = "notification.sent"
	EventRetryScheduled EventType = "notification.retry_scheduled"
	EventFailedOver     EventType = "notification.failed_over"
	EventDeferred       EventType = "notification.deferred"
	EventDelivered      EventType = "notification.delivered"
	EventRead           EventType = "notification.read"
	EventFailed         EventType = "notification.failed"
	EventCancelled      EventType = "notification.cancelled"
)

func (t EventType) String() string { return string(t) }

// Event is emitted by lifecycle operations and handed to an external publisher.
type Event struct {
	ID             string     `json:"eventId"`
	Type           EventType  `json:"eventType"`
	NotificationID string     `json:"notificationId"`
	CorrelationID  string     `json:"correlationId,omitempty"`
	UserID         string     `json:"userId"`
	Channel        Channel    `json:"channel,omitempty"`
	Status         Status     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	OccurredAt     time.Time  `json:"occurredOn"`
}

func newEvent(eventType EventType, n *Notification, now time.Time) Event {
	event := Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		NotificationID: n.ID,
		CorrelationID:  n.CorrelationID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Status:         n.Status,
		RetryCount:     n.RetryCount,
		OccurredAt:     now.UTC(),
	}
	if n.ErrorMessage != nil {
		event.ErrorMessage = *n.ErrorMessage
	}
	if n.ScheduledAt != nil {
		scheduledAt := *n.ScheduledAt
		event.ScheduledAt = &scheduledAt
	}
	return event
}
