package domain

import (
	"fmt"
	"strings"
	"time"
)

// allowedTransitions is the delivery state machine. Final states have no outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusSent, StatusFailed, StatusPending},
	StatusSent:       {StatusDelivered},
	StatusDelivered:  {StatusRead},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from Status, to Status) bool {
	if from.IsFinal() {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewNotification initializes n as a fresh PENDING notification and returns its creation event.
func NewNotification(n *Notification, now time.Time) Event {
	now = now.UTC()
	n.Status = StatusPending
	n.RetryCount = 0
	n.ExhaustedChannels = nil
	n.ProviderName = nil
	n.ProviderID = nil
	n.ErrorMessage = nil
	n.SentAt = nil
	n.DeliveredAt = nil
	n.ReadAt = nil
	n.CreatedAt = now
	n.UpdatedAt = now
	return newEvent(EventCreated, n, now)
}

// Start moves a PENDING notification into PROCESSING for one send attempt.
func (n *Notification) Start(now time.Time) (Event, error) {
	if err := n.transition(StatusProcessing, now); err != nil {
		return Event{}, err
	}
	n.ScheduledAt = nil
	return newEvent(EventProcessing, n, now), nil
}

// MarkSent records provider acceptance.
func (n *Notification) MarkSent(now time.Time, providerName string, providerID string) (Event, error) {
	if err := n.transition(StatusSent, now); err != nil {
		return Event{}, err
	}
	sentAt := now.UTC()
	n.SentAt = &sentAt
	n.ProviderName = optionalString(providerName)
	n.ProviderID = optionalString(providerID)
	n.ErrorMessage = nil
	return newEvent(EventSent, n, now), nil
}

// MarkFailed terminates the notification and keeps reason for operators.
func (n *Notification) MarkFailed(now time.Time, reason string) (Event, error) {
	if err := n.transition(StatusFailed, now); err != nil {
		return Event{}, err
	}
	n.ScheduledAt = nil
	n.ErrorMessage = optionalString(reason)
	return newEvent(EventFailed, n, now), nil
}

// ScheduleRetry returns a PROCESSING notification to PENDING for another attempt on the same channel.
func (n *Notification) ScheduleRetry(now time.Time, at time.Time, reason string) (Event, error) {
	if err := checkNotBefore(at, now); err != nil {
		return Event{}, err
	}
	if err := n.transition(StatusPending, now); err != nil {
		return Event{}, err
	}
	n.RetryCount++
	next := at.UTC()
	n.ScheduledAt = &next
	n.ErrorMessage = optionalString(reason)
	return newEvent(EventRetryScheduled, n, now), nil
}

// FailOver marks the current channel exhausted and moves the notification to next with a fresh budget.
func (n *Notification) FailOver(now time.Time, next Channel, recipient string, at time.Time, reason string) (Event, error) {
	if !next.IsValid() {
		return Event{}, fmt.Errorf("%w: invalid failover channel %q", ErrValidation, next)
	}
	if err := checkNotBefore(at, now); err != nil {
		return Event{}, err
	}
	if err := n.transition(StatusPending, now); err != nil {
		return Event{}, err
	}
	if n.Channel != "" && !n.HasExhausted(n.Channel) {
		n.ExhaustedChannels = append(n.ExhaustedChannels, n.Channel)
	}
	n.Channel = next
	if strings.TrimSpace(recipient) != "" {
		n.Recipient = recipient
	}
	n.RetryCount = 0
	scheduledAt := at.UTC()
	n.ScheduledAt = &scheduledAt
	n.ErrorMessage = optionalString(reason)
	return newEvent(EventFailedOver, n, now), nil
}

// Defer holds a PENDING notification until the given time without attempting delivery.
func (n *Notification) Defer(now time.Time, until time.Time) (Event, error) {
	if n.Status != StatusPending {
		return Event{}, fmt.Errorf("%w: cannot defer notification in status %s", ErrInvalidStateTransition, n.Status)
	}
	if err := checkNotBefore(until, now); err != nil {
		return Event{}, err
	}
	scheduledAt := until.UTC()
	n.ScheduledAt = &scheduledAt
	n.UpdatedAt = now.UTC()
	return newEvent(EventDeferred, n, now), nil
}

// MarkDelivered records a provider delivery receipt.
func (n *Notification) MarkDelivered(now time.Time) (Event, error) {
	if err := n.transition(StatusDelivered, now); err != nil {
		return Event{}, err
	}
	deliveredAt := now.UTC()
	n.DeliveredAt = &deliveredAt
	return newEvent(EventDelivered, n, now), nil
}

// MarkRead records the user's read acknowledgement.
func (n *Notification) MarkRead(now time.Time) (Event, error) {
	if err := n.transition(StatusRead, now); err != nil {
		return Event{}, err
	}
	readAt := now.UTC()
	n.ReadAt = &readAt
	return newEvent(EventRead, n, now), nil
}

// Cancel stops a notification before any send attempt starts.
func (n *Notification) Cancel(now time.Time) (Event, error) {
	if err := n.transition(StatusCancelled, now); err != nil {
		return Event{}, err
	}
	n.ScheduledAt = nil
	return newEvent(EventCancelled, n, now), nil
}

// RequeueNow makes a PENDING notification due immediately.
func (n *Notification) RequeueNow(now time.Time) error {
	if n.Status != StatusPending {
		return fmt.Errorf("%w: cannot requeue notification in status %s", ErrInvalidStateTransition, n.Status)
	}
	scheduledAt := now.UTC()
	n.ScheduledAt = &scheduledAt
	n.UpdatedAt = scheduledAt
	return nil
}

// CloneForRetry starts a new attempt-chain with the content of a FAILED notification.
// The failed notification itself stays immutable.
func (n *Notification) CloneForRetry(id string, createdBy string, now time.Time) (*Notification, Event, error) {
	if n.Status != StatusFailed {
		return nil, Event{}, fmt.Errorf("%w: only failed notifications can be cloned for retry, got %s",
			ErrInvalidStateTransition, n.Status)
	}

	params := make(map[string]string, len(n.TemplateParams))
	for key, value := range n.TemplateParams {
		params[key] = value
	}

	clone := &Notification{
		ID:             id,
		CorrelationID:  n.CorrelationID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Type:           n.Type,
		Subject:        n.Subject,
		Message:        n.Message,
		TemplateID:     n.TemplateID,
		TemplateParams: params,
		RenderedFor:    n.RenderedFor,
		Priority:       n.Priority,
		CreatedBy:      createdBy,
	}
	if clone.CreatedBy == "" {
		clone.CreatedBy = n.CreatedBy
	}

	event := NewNotification(clone, now)
	return clone, event, nil
}

func (n *Notification) transition(to Status, now time.Time) error {
	if !CanTransition(n.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, n.Status, to)
	}
	n.Status = to
	n.UpdatedAt = now.UTC()
	return nil
}

func checkNotBefore(at time.Time, now time.Time) error {
	if at.Before(now) {
		return fmt.Errorf("%w: scheduledAt %s is before now %s",
			ErrValidation, at.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return nil
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
