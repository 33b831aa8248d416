package queue

import (
	"fmt"
	"strings"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// NotificationMessage is the broker payload for notification processing. The channel is
// chosen by the worker at dispatch time, so only the id travels.
type NotificationMessage struct {
	NotificationID string          `json:"notificationId"`
	CorrelationID  string          `json:"correlationId,omitempty"`
	Priority       domain.Priority `json:"priority"`
}

func NewNotificationMessage(n *domain.Notification) NotificationMessage {
	return NotificationMessage{
		NotificationID: n.ID,
		CorrelationID:  n.CorrelationID,
		Priority:       n.Priority,
	}
}

func (m NotificationMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}
