package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vallegrande/notification-engine/internal/domain"
)

type PreferenceService interface {
	Get(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Update(ctx context.Context, pref *domain.NotificationPreference) (*domain.NotificationPreference, error)
}

type PreferenceHandler struct {
	service PreferenceService
}

func NewPreferenceHandler(service PreferenceService) (*PreferenceHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("preference service is required")
	}
	return &PreferenceHandler{service: service}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, service PreferenceService) error {
	h, err := NewPreferenceHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/users/:userId/preferences", h.GetPreferences)
	v1.Put("/users/:userId/preferences", h.UpdatePreferences)

	return nil
}

type categoryPreferenceBody struct {
	EnabledChannels []string `json:"enabledChannels"`
	PrimaryChannel  string   `json:"primaryChannel,omitempty"`
}

// Omitted channel toggles default to enabled.
type preferenceRequest struct {
	Categories      map[string]categoryPreferenceBody `json:"categories"`
	EnableSMS       *bool                             `json:"enableSms"`
	EnableWhatsApp  *bool                             `json:"enableWhatsapp"`
	EnableEmail     *bool                             `json:"enableEmail"`
	EnableInApp     *bool                             `json:"enableInApp"`
	PhoneNumber     string                            `json:"phoneNumber"`
	WhatsAppNumber  string                            `json:"whatsappNumber"`
	Email           string                            `json:"email"`
	QuietHoursStart *string                           `json:"quietHoursStart"`
	QuietHoursEnd   *string                           `json:"quietHoursEnd"`
	Timezone        string                            `json:"timezone"`
}

type preferenceResponse struct {
	UserID          string                            `json:"userId"`
	Categories      map[string]categoryPreferenceBody `json:"categories"`
	EnableSMS       bool                              `json:"enableSms"`
	EnableWhatsApp  bool                              `json:"enableWhatsapp"`
	EnableEmail     bool                              `json:"enableEmail"`
	EnableInApp     bool                              `json:"enableInApp"`
	PhoneNumber     string                            `json:"phoneNumber,omitempty"`
	WhatsAppNumber  string                            `json:"whatsappNumber,omitempty"`
	Email           string                            `json:"email,omitempty"`
	QuietHoursStart *string                           `json:"quietHoursStart,omitempty"`
	QuietHoursEnd   *string                           `json:"quietHoursEnd,omitempty"`
	Timezone        string                            `json:"timezone,omitempty"`
	UpdatedAt       *time.Time                        `json:"updatedAt,omitempty"`
}

func (h *PreferenceHandler) GetPreferences(c *fiber.Ctx) error {
	pref, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("userId")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func (h *PreferenceHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req preferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pref, err := requestToDomainPreference(strings.TrimSpace(c.Params("userId")), req)
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.Update(c.Context(), pref)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(updated))
}

func requestToDomainPreference(userID string, req preferenceRequest) (*domain.NotificationPreference, error) {
	pref := domain.DefaultPreference(userID)
	pref.EnableSMS = boolOrDefault(req.EnableSMS, true)
	pref.EnableWhatsApp = boolOrDefault(req.EnableWhatsApp, true)
	pref.EnableEmail = boolOrDefault(req.EnableEmail, true)
	pref.EnableInApp = boolOrDefault(req.EnableInApp, true)
	pref.PhoneNumber = req.PhoneNumber
	pref.WhatsAppNumber = req.WhatsAppNumber
	pref.Email = req.Email
	pref.Timezone = strings.TrimSpace(req.Timezone)

	for rawCategory, body := range req.Categories {
		category, err := domain.ParseNotificationTypeFromString(rawCategory)
		if err != nil {
			return nil, err
		}
		channels := domain.ChannelPreference{}
		for _, rawChannel := range body.EnabledChannels {
			channel, err := domain.ParseChannelFromString(rawChannel)
			if err != nil {
				return nil, err
			}
			channels.EnabledChannels = append(channels.EnabledChannels, channel)
		}
		if strings.TrimSpace(body.PrimaryChannel) != "" {
			primary, err := domain.ParseChannelFromString(body.PrimaryChannel)
			if err != nil {
				return nil, err
			}
			channels.PrimaryChannel = primary
		}
		pref.Categories[category] = channels
	}

	var err error
	if pref.QuietHoursStart, err = parseOptionalTimeOfDay(req.QuietHoursStart); err != nil {
		return nil, err
	}
	if pref.QuietHoursEnd, err = parseOptionalTimeOfDay(req.QuietHoursEnd); err != nil {
		return nil, err
	}

	return &pref, nil
}

func parseOptionalTimeOfDay(value *string) (*domain.TimeOfDay, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func toPreferenceResponse(p *domain.NotificationPreference) preferenceResponse {
	if p == nil {
		return preferenceResponse{}
	}

	categories := make(map[string]categoryPreferenceBody, len(p.Categories))
	for category, channels := range p.Categories {
		body := categoryPreferenceBody{
			EnabledChannels: make([]string, 0, len(channels.EnabledChannels)),
			PrimaryChannel:  channels.PrimaryChannel.String(),
		}
		for _, channel := range channels.EnabledChannels {
			body.EnabledChannels = append(body.EnabledChannels, channel.String())
		}
		categories[category.String()] = body
	}

	resp := preferenceResponse{
		UserID:         p.UserID,
		Categories:     categories,
		EnableSMS:      p.EnableSMS,
		EnableWhatsApp: p.EnableWhatsApp,
		EnableEmail:    p.EnableEmail,
		EnableInApp:    p.EnableInApp,
		PhoneNumber:    p.PhoneNumber,
		WhatsAppNumber: p.WhatsAppNumber,
		Email:          p.Email,
		Timezone:       p.Timezone,
	}
	if p.QuietHoursStart != nil {
		start := p.QuietHoursStart.String()
		resp.QuietHoursStart = &start
	}
	if p.QuietHoursEnd != nil {
		end := p.QuietHoursEnd.String()
		resp.QuietHoursEnd = &end
	}
	if !p.UpdatedAt.IsZero() {
		updatedAt := p.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
