package repository

import (
	"fmt"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID                string                  `gorm:"type:uuid;primaryKey"`
	CorrelationID     string                  `gorm:"type:varchar(36);not null"`
	IdempotencyKey    *string                 `gorm:"type:varchar(255)"`
	UserID            string                  `gorm:"type:varchar(64);not null"`
	Channel           domain.Channel          `gorm:"type:varchar(10)"`
	Recipient         string                  `gorm:"type:varchar(255);not null"`
	Type              domain.NotificationType `gorm:"type:varchar(32);not null"`
	Subject           string                  `gorm:"type:varchar(255)"`
	Message           string                  `gorm:"type:text"`
	TemplateID        string                  `gorm:"column:template_code;type:varchar(64)"`
	TemplateParams    map[string]string       `gorm:"type:jsonb;serializer:json"`
	RenderedFor       domain.Channel          `gorm:"type:varchar(10)"`
	Priority          domain.Priority         `gorm:"type:varchar(10);not null"`
	Status            domain.Status           `gorm:"type:varchar(20);not null"`
	RetryCount        int                     `gorm:"not null"`
	ExhaustedChannels []domain.Channel        `gorm:"type:jsonb;serializer:json"`
	ProviderName      *string                 `gorm:"type:varchar(64)"`
	ProviderID        *string                 `gorm:"type:varchar(255)"`
	ErrorMessage      *string                 `gorm:"type:text"`
	ScheduledAt       *time.Time              `gorm:"type:timestamptz"`
	SentAt            *time.Time              `gorm:"type:timestamptz"`
	DeliveredAt       *time.Time              `gorm:"type:timestamptz"`
	ReadAt            *time.Time              `gorm:"type:timestamptz"`
	CreatedBy         string                  `gorm:"type:varchar(64)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationAttemptModel is the persistence model for notification_attempts.
type NotificationAttemptModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	NotificationID string         `gorm:"type:uuid;not null"`
	AttemptNumber  int            `gorm:"not null"`
	Channel        domain.Channel `gorm:"type:varchar(10);not null"`
	ProviderName   string         `gorm:"type:varchar(64)"`
	StatusCode     *int           `gorm:"type:int"`
	ResponseBody   *string        `gorm:"type:text"`
	Error          *string        `gorm:"type:text"`
	CreatedAt      time.Time
}

func (NotificationAttemptModel) TableName() string {
	return "notification_attempts"
}

// PreferenceModel is the persistence model for notification_preferences.
type PreferenceModel struct {
	UserID          string                                               `gorm:"type:varchar(64);primaryKey"`
	Categories      map[domain.NotificationType]domain.ChannelPreference `gorm:"type:jsonb;serializer:json"`
	EnableSMS       bool                                                 `gorm:"column:enable_sms;not null"`
	EnableWhatsApp  bool                                                 `gorm:"column:enable_whatsapp;not null"`
	EnableEmail     bool                                                 `gorm:"column:enable_email;not null"`
	EnableInApp     bool                                                 `gorm:"column:enable_in_app;not null"`
	PhoneNumber     string                                               `gorm:"type:varchar(32)"`
	WhatsAppNumber  string                                               `gorm:"column:whatsapp_number;type:varchar(32)"`
	Email           string                                               `gorm:"type:varchar(255)"`
	QuietHoursStart *string                                              `gorm:"type:varchar(5)"`
	QuietHoursEnd   *string                                              `gorm:"type:varchar(5)"`
	Timezone        string                                               `gorm:"type:varchar(64)"`
	UpdatedAt       time.Time
}

func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

// TemplateModel is the persistence model for notification_templates.
type TemplateModel struct {
	ID        string                  `gorm:"type:uuid;primaryKey"`
	Code      string                  `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string                  `gorm:"type:varchar(128);not null"`
	Type      domain.NotificationType `gorm:"type:varchar(32)"`
	Channel   domain.Channel          `gorm:"type:varchar(10)"`
	Subject   string                  `gorm:"type:varchar(255)"`
	Body      string                  `gorm:"type:text;not null"`
	Variables []string                `gorm:"type:jsonb;serializer:json"`
	Status    domain.TemplateStatus   `gorm:"type:varchar(10);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateModel) TableName() string {
	return "notification_templates"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:                n.ID,
		CorrelationID:     n.CorrelationID,
		IdempotencyKey:    n.IdempotencyKey,
		UserID:            n.UserID,
		Channel:           n.Channel,
		Recipient:         n.Recipient,
		Type:              n.Type,
		Subject:           n.Subject,
		Message:           n.Message,
		TemplateID:        n.TemplateID,
		TemplateParams:    n.TemplateParams,
		RenderedFor:       n.RenderedFor,
		Priority:          n.Priority,
		Status:            n.Status,
		RetryCount:        n.RetryCount,
		ExhaustedChannels: n.ExhaustedChannels,
		ProviderName:      n.ProviderName,
		ProviderID:        n.ProviderID,
		ErrorMessage:      n.ErrorMessage,
		ScheduledAt:       n.ScheduledAt,
		SentAt:            n.SentAt,
		DeliveredAt:       n.DeliveredAt,
		ReadAt:            n.ReadAt,
		CreatedBy:         n.CreatedBy,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:                m.ID,
		CorrelationID:     m.CorrelationID,
		IdempotencyKey:    m.IdempotencyKey,
		UserID:            m.UserID,
		Channel:           m.Channel,
		Recipient:         m.Recipient,
		Type:              m.Type,
		Subject:           m.Subject,
		Message:           m.Message,
		TemplateID:        m.TemplateID,
		TemplateParams:    m.TemplateParams,
		RenderedFor:       m.RenderedFor,
		Priority:          m.Priority,
		Status:            m.Status,
		RetryCount:        m.RetryCount,
		ExhaustedChannels: m.ExhaustedChannels,
		ProviderName:      m.ProviderName,
		ProviderID:        m.ProviderID,
		ErrorMessage:      m.ErrorMessage,
		ScheduledAt:       m.ScheduledAt,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		ReadAt:            m.ReadAt,
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.NotificationAttempt) *NotificationAttemptModel {
	if a == nil {
		return nil
	}

	return &NotificationAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		AttemptNumber:  a.AttemptNumber,
		Channel:        a.Channel,
		ProviderName:   a.ProviderName,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *NotificationAttemptModel) *domain.NotificationAttempt {
	if m == nil {
		return nil
	}

	return &domain.NotificationAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		AttemptNumber:  m.AttemptNumber,
		Channel:        m.Channel,
		ProviderName:   m.ProviderName,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}

func preferenceModelFromDomain(p *domain.NotificationPreference) *PreferenceModel {
	if p == nil {
		return nil
	}

	return &PreferenceModel{
		UserID:          p.UserID,
		Categories:      p.Categories,
		EnableSMS:       p.EnableSMS,
		EnableWhatsApp:  p.EnableWhatsApp,
		EnableEmail:     p.EnableEmail,
		EnableInApp:     p.EnableInApp,
		PhoneNumber:     p.PhoneNumber,
		WhatsAppNumber:  p.WhatsAppNumber,
		Email:           p.Email,
		QuietHoursStart: timeOfDayString(p.QuietHoursStart),
		QuietHoursEnd:   timeOfDayString(p.QuietHoursEnd),
		Timezone:        p.Timezone,
		UpdatedAt:       p.UpdatedAt,
	}
}

func preferenceModelToDomain(m *PreferenceModel) (*domain.NotificationPreference, error) {
	if m == nil {
		return nil, nil
	}

	start, err := parseTimeOfDay(m.QuietHoursStart)
	if err != nil {
		return nil, fmt.Errorf("user %s quiet hours start: %w", m.UserID, err)
	}
	end, err := parseTimeOfDay(m.QuietHoursEnd)
	if err != nil {
		return nil, fmt.Errorf("user %s quiet hours end: %w", m.UserID, err)
	}

	categories := m.Categories
	if categories == nil {
		categories = map[domain.NotificationType]domain.ChannelPreference{}
	}

	return &domain.NotificationPreference{
		UserID:          m.UserID,
		Categories:      categories,
		EnableSMS:       m.EnableSMS,
		EnableWhatsApp:  m.EnableWhatsApp,
		EnableEmail:     m.EnableEmail,
		EnableInApp:     m.EnableInApp,
		PhoneNumber:     m.PhoneNumber,
		WhatsAppNumber:  m.WhatsAppNumber,
		Email:           m.Email,
		QuietHoursStart: start,
		QuietHoursEnd:   end,
		Timezone:        m.Timezone,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func templateModelToDomain(m *TemplateModel) *domain.NotificationTemplate {
	if m == nil {
		return nil
	}

	return &domain.NotificationTemplate{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Type:      m.Type,
		Channel:   m.Channel,
		Subject:   m.Subject,
		Body:      m.Body,
		Variables: m.Variables,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func timeOfDayString(t *domain.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func parseTimeOfDay(s *string) (*domain.TimeOfDay, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
