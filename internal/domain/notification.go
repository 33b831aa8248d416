package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusDelivered  Status = "DELIVERED"
	StatusRead       Status = "READ"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusDelivered, StatusRead, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsCompleted reports whether a provider accepted the notification.
func (s Status) IsCompleted() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// IsFinal reports whether no further transition is allowed.
func (s Status) IsFinal() bool {
	switch s {
	case StatusDelivered, StatusRead, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanRetry reports whether an operator may trigger a manual retry.
func (s Status) CanRetry() bool {
	return s == StatusFailed || s == StatusPending
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// NotificationType is the business event a notification reports.
type NotificationType string

const (
	TypeUserCredentials      NotificationType = "USER_CREDENTIALS"
	TypePasswordReset        NotificationType = "PASSWORD_RESET"
	TypeTwoFactorAuth        NotificationType = "TWO_FACTOR_AUTH"
	TypeReceiptGenerated     NotificationType = "RECEIPT_GENERATED"
	TypeReceiptReminder      NotificationType = "RECEIPT_REMINDER"
	TypePaymentReceived      NotificationType = "PAYMENT_RECEIVED"
	TypePaymentOverdue       NotificationType = "PAYMENT_OVERDUE"
	TypeIncidentCreated      NotificationType = "INCIDENT_CREATED"
	TypeIncidentUpdated      NotificationType = "INCIDENT_UPDATED"
	TypeIncidentResolved     NotificationType = "INCIDENT_RESOLVED"
	TypeWaterQualityAlert    NotificationType = "WATER_QUALITY_ALERT"
	TypeWaterQualityReport   NotificationType = "WATER_QUALITY_REPORT"
	TypeServiceInterruption  NotificationType = "SERVICE_INTERRUPTION"
	TypeMaintenanceScheduled NotificationType = "MAINTENANCE_SCHEDULED"
	TypeSystemAnnouncement   NotificationType = "SYSTEM_ANNOUNCEMENT"
	TypeLowStockAlert        NotificationType = "LOW_STOCK_ALERT"
	TypeInventoryUpdate      NotificationType = "INVENTORY_UPDATE"
)

// notificationTypes maps each type to whether it is urgent regardless of the requested priority.
var notificationTypes = map[NotificationType]bool{
	TypeUserCredentials:      false,
	TypePasswordReset:        false,
	TypeTwoFactorAuth:        true,
	TypeReceiptGenerated:     false,
	TypeReceiptReminder:      false,
	TypePaymentReceived:      false,
	TypePaymentOverdue:       true,
	TypeIncidentCreated:      false,
	TypeIncidentUpdated:      false,
	TypeIncidentResolved:     false,
	TypeWaterQualityAlert:    true,
	TypeWaterQualityReport:   false,
	TypeServiceInterruption:  true,
	TypeMaintenanceScheduled: false,
	TypeSystemAnnouncement:   false,
	TypeLowStockAlert:        false,
	TypeInventoryUpdate:      false,
}

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	_, ok := notificationTypes[t]
	return ok
}

func (t NotificationType) IsUrgent() bool { return notificationTypes[t] }

func ParseNotificationTypeFromString(s string) (NotificationType, error) {
	nt := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	if !nt.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return nt, nil
}

// Content limits per channel (in characters).
const (
	MaxSMSContent      = 480
	MaxWhatsAppContent = 4096
	MaxEmailContent    = 10000
	MaxInAppContent    = 2000
)

var maxContentByChannel = map[Channel]int{
	ChannelSMS:      MaxSMSContent,
	ChannelWhatsApp: MaxWhatsAppContent,
	ChannelEmail:    MaxEmailContent,
	ChannelInApp:    MaxInAppContent,
}

// Notification is one delivery attempt-chain for a single business message.
type Notification struct {
	ID             string
	CorrelationID  string
	IdempotencyKey *string
	UserID         string
	Channel        Channel
	Recipient      string

	Type           NotificationType
	Subject        string
	Message        string
	TemplateID     string
	TemplateParams map[string]string
	// RenderedFor is the channel Message and Subject were rendered for. Empty for direct messages.
	RenderedFor Channel

	Priority          Priority
	Status            Status
	RetryCount        int
	ExhaustedChannels []Channel
	ProviderName      *string
	ProviderID        *string
	ErrorMessage      *string

	ScheduledAt *time.Time
	SentAt      *time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
}

// IsUrgent reports whether the notification must skip quiet hours.
func (n *Notification) IsUrgent() bool {
	return n.Priority == PriorityUrgent || n.Type.IsUrgent()
}

// IsDue reports whether a processing attempt may start at now.
func (n *Notification) IsDue(now time.Time) bool {
	return n.ScheduledAt == nil || !n.ScheduledAt.After(now)
}

// NeedsRendering reports whether the content must be (re)built from the template for the
// current channel.
func (n *Notification) NeedsRendering() bool {
	if strings.TrimSpace(n.Message) == "" {
		return true
	}
	return n.RenderedFor != "" && n.RenderedFor != n.Channel
}

// HasExhausted reports whether the retry budget of channel has been spent.
func (n *Notification) HasExhausted(channel Channel) bool {
	for _, exhausted := range n.ExhaustedChannels {
		if exhausted == channel {
			return true
		}
	}
	return false
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, n.Type)
	}
	if n.Channel != "" && !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if strings.TrimSpace(n.Message) == "" && strings.TrimSpace(n.TemplateID) == "" {
		return fmt.Errorf("%w: message or templateCode is required", ErrValidation)
	}
	return nil
}

// ValidateContent checks the rendered message against the channel limit.
func (n *Notification) ValidateContent() error {
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	limit, ok := maxContentByChannel[n.Channel]
	if !ok {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}

	contentLen := len([]rune(n.Message))
	if contentLen > limit {
		return fmt.Errorf("%w: %s content exceeds %d characters (got %d)",
			ErrValidation, strings.ToLower(n.Channel.String()), limit, contentLen)
	}
	return nil
}
