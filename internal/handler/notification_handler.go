package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetAttempts(ctx context.Context, id string) ([]domain.NotificationAttempt, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	Cancel(ctx context.Context, id string) (*domain.Notification, error)
	Retry(ctx context.Context, id string, requestedBy string) (*domain.Notification, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications/:id/attempts", h.GetAttempts)
	v1.Post("/notifications/:id/cancel", h.CancelNotification)
	v1.Post("/notifications/:id/retry", h.RetryNotification)
	v1.Post("/notifications/:id/delivered", h.MarkDelivered)
	v1.Post("/notifications/:id/read", h.MarkRead)

	return nil
}

type createNotificationRequest struct {
	CorrelationID  string            `json:"correlationId"`
	IdempotencyKey *string           `json:"idempotencyKey"`
	UserID         string            `json:"userId"`
	Channel        string            `json:"channel"`
	Recipient      string            `json:"recipient"`
	Type           string            `json:"type"`
	Subject        string            `json:"subject"`
	Message        string            `json:"message"`
	TemplateCode   string            `json:"templateCode"`
	TemplateParams map[string]string `json:"templateParams"`
	Priority       string            `json:"priority"`
	ScheduledAt    *time.Time        `json:"scheduledAt"`
	CreatedBy      string            `json:"createdBy"`
}

type retryNotificationRequest struct {
	RequestedBy string `json:"requestedBy"`
}

type notificationResponse struct {
	ID                string            `json:"id"`
	CorrelationID     string            `json:"correlationId"`
	IdempotencyKey    *string           `json:"idempotencyKey,omitempty"`
	UserID            string            `json:"userId"`
	Channel           string            `json:"channel,omitempty"`
	Recipient         string            `json:"recipient"`
	Type              string            `json:"type"`
	Subject           string            `json:"subject,omitempty"`
	Message           string            `json:"message,omitempty"`
	TemplateCode      string            `json:"templateCode,omitempty"`
	TemplateParams    map[string]string `json:"templateParams,omitempty"`
	Priority          string            `json:"priority"`
	Status            string            `json:"status"`
	RetryCount        int               `json:"retryCount"`
	ExhaustedChannels []string          `json:"exhaustedChannels,omitempty"`
	ProviderName      *string           `json:"providerName,omitempty"`
	ProviderID        *string           `json:"providerId,omitempty"`
	ErrorMessage      *string           `json:"errorMessage,omitempty"`
	ScheduledAt       *time.Time        `json:"scheduledAt,omitempty"`
	SentAt            *time.Time        `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time        `json:"deliveredAt,omitempty"`
	ReadAt            *time.Time        `json:"readAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CreatedBy         string            `json:"createdBy"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	AttemptNumber int       `json:"attemptNumber"`
	Channel       string    `json:"channel"`
	ProviderName  string    `json:"providerName"`
	StatusCode    *int      `json:"statusCode,omitempty"`
	ResponseBody  *string   `json:"responseBody,omitempty"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	notification, err := requestToDomainNotification(req, requestCorrelationID(c))
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), &notification)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	notification, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) GetAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.GetAttempts(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		responses = append(responses, attemptResponse{
			ID:            a.ID,
			AttemptNumber: a.AttemptNumber,
			Channel:       a.Channel.String(),
			ProviderName:  a.ProviderName,
			StatusCode:    a.StatusCode,
			ResponseBody:  a.ResponseBody,
			Error:         a.Error,
			CreatedAt:     a.CreatedAt,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *NotificationHandler) CancelNotification(c *fiber.Ctx) error {
	return h.respondTransition(c, h.service.Cancel)
}

func (h *NotificationHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.respondTransition(c, h.service.MarkDelivered)
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	return h.respondTransition(c, h.service.MarkRead)
}

func (h *NotificationHandler) RetryNotification(c *fiber.Ctx) error {
	var req retryNotificationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	retried, err := h.service.Retry(c.Context(), strings.TrimSpace(c.Params("id")), strings.TrimSpace(req.RequestedBy))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toNotificationResponse(retried))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) respondTransition(
	c *fiber.Ctx,
	apply func(ctx context.Context, id string) (*domain.Notification, error),
) error {
	notification, err := apply(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
		UserID:   strings.TrimSpace(c.Query("userId")),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return repository.ListParams{}, fmt.Errorf("%w: to must not be before from", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestToDomainNotification(req createNotificationRequest, fallbackCorrelationID string) (domain.Notification, error) {
	notificationType, err := domain.ParseNotificationTypeFromString(req.Type)
	if err != nil {
		return domain.Notification{}, err
	}

	n := domain.Notification{
		CorrelationID:  strings.TrimSpace(req.CorrelationID),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         strings.TrimSpace(req.UserID),
		Recipient:      strings.TrimSpace(req.Recipient),
		Type:           notificationType,
		Subject:        strings.TrimSpace(req.Subject),
		Message:        strings.TrimSpace(req.Message),
		TemplateID:     strings.TrimSpace(req.TemplateCode),
		TemplateParams: req.TemplateParams,
		ScheduledAt:    req.ScheduledAt,
		CreatedBy:      strings.TrimSpace(req.CreatedBy),
	}

	// Channel and priority are optional; the service and the resolver fill them in.
	if strings.TrimSpace(req.Channel) != "" {
		if n.Channel, err = domain.ParseChannelFromString(req.Channel); err != nil {
			return domain.Notification{}, err
		}
	}
	if strings.TrimSpace(req.Priority) != "" {
		if n.Priority, err = domain.ParsePriorityFromString(req.Priority); err != nil {
			return domain.Notification{}, err
		}
	}

	if n.CorrelationID == "" {
		n.CorrelationID = strings.TrimSpace(fallbackCorrelationID)
	}

	return n, nil
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	var exhausted []string
	for _, channel := range n.ExhaustedChannels {
		exhausted = append(exhausted, channel.String())
	}

	return notificationResponse{
		ID:                n.ID,
		CorrelationID:     n.CorrelationID,
		IdempotencyKey:    n.IdempotencyKey,
		UserID:            n.UserID,
		Channel:           n.Channel.String(),
		Recipient:         n.Recipient,
		Type:              n.Type.String(),
		Subject:           n.Subject,
		Message:           n.Message,
		TemplateCode:      n.TemplateID,
		TemplateParams:    n.TemplateParams,
		Priority:          n.Priority.String(),
		Status:            n.Status.String(),
		RetryCount:        n.RetryCount,
		ExhaustedChannels: exhausted,
		ProviderName:      n.ProviderName,
		ProviderID:        n.ProviderID,
		ErrorMessage:      n.ErrorMessage,
		ScheduledAt:       n.ScheduledAt,
		SentAt:            n.SentAt,
		DeliveredAt:       n.DeliveredAt,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
		CreatedBy:         n.CreatedBy,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidStateTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
