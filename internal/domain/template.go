package domain

import (
	"fmt"
	"strings"
	"time"
)

type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "DRAFT"
	TemplateActive   TemplateStatus = "ACTIVE"
	TemplateInactive TemplateStatus = "INACTIVE"
)

func (s TemplateStatus) String() string { return string(s) }

func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateDraft, TemplateActive, TemplateInactive:
		return true
	}
	return false
}

// NotificationTemplate is read-only at dispatch time.
type NotificationTemplate struct {
	ID        string
	Code      string
	Name      string
	Type      NotificationType
	Channel   Channel
	Subject   string
	Body      string
	Variables []string
	Status    TemplateStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanBeUsed reports whether the template may render a notification.
func (t *NotificationTemplate) CanBeUsed() bool {
	return t != nil && t.Status == TemplateActive
}

// Declares reports whether name is one of the template's declared variables.
func (t *NotificationTemplate) Declares(name string) bool {
	for _, v := range t.Variables {
		if v == name {
			return true
		}
	}
	return false
}

func (t *NotificationTemplate) Validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return fmt.Errorf("%w: template code is required", ErrValidation)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: template body is required", ErrValidation)
	}
	if t.Channel != "" && !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, t.Channel)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: invalid template status %q", ErrValidation, t.Status)
	}
	return nil
}
