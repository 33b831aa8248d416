package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Channel  *domain.Channel
	UserID   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	Save(ctx context.Context, n *domain.Notification, expected domain.Status) error
	Checkpoint(ctx context.Context, n *domain.Notification, from domain.Status) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	MarkDispatched(ctx context.Context, id string, scheduledAt time.Time) (bool, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", idempotencyKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.UserID != "" {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return toDomainNotifications(models), total, nil
}

// Save writes every mutable field of n, provided the stored status is still expected.
func (r *GormNotificationRepo) Save(ctx context.Context, n *domain.Notification, expected domain.Status) error {
	if n == nil {
		return domain.ErrValidation
	}
	model := notificationModelFromDomain(n)

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", n.ID, expected).
		Updates(map[string]any{
			"channel":            model.Channel,
			"recipient":          model.Recipient,
			"subject":            model.Subject,
			"message":            model.Message,
			"rendered_for":       model.RenderedFor,
			"status":             model.Status,
			"retry_count":        model.RetryCount,
			"exhausted_channels": exhaustedChannelsValue(model.ExhaustedChannels),
			"provider_name":      model.ProviderName,
			"provider_id":        model.ProviderID,
			"error_message":      model.ErrorMessage,
			"scheduled_at":       model.ScheduledAt,
			"sent_at":            model.SentAt,
			"delivered_at":       model.DeliveredAt,
			"read_at":            model.ReadAt,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Checkpoint persists the PROCESSING transition with a compare-and-set on the previous status.
func (r *GormNotificationRepo) Checkpoint(ctx context.Context, n *domain.Notification, from domain.Status) error {
	return r.Save(ctx, n, from)
}

// GetDue returns PENDING notifications whose scheduledAt has passed, oldest first.
func (r *GormNotificationRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 100
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", domain.StatusPending, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return toDomainNotifications(models), nil
}

// MarkDispatched clears scheduledAt once the notification is on the dispatch queue. It reports
// false when the row moved on or was rescheduled in the meantime.
func (r *GormNotificationRepo) MarkDispatched(ctx context.Context, id string, scheduledAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ? AND scheduled_at = ?", id, domain.StatusPending, scheduledAt).
		Updates(map[string]any{
			"scheduled_at": nil,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func toDomainNotifications(models []NotificationModel) []domain.Notification {
	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications
}

// exhaustedChannelsValue encodes the jsonb column by hand; map updates bypass the field serializer.
func exhaustedChannelsValue(channels []domain.Channel) string {
	if len(channels) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(channels)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
