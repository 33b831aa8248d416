package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the append-only audit log of provider calls.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.NotificationAttempt) error
	GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	if a == nil || strings.TrimSpace(a.NotificationID) == "" || strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: attempt id and notification id are required", domain.ErrValidation)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("insert attempt %d of %s: %w", a.AttemptNumber, a.NotificationID, err)
	}
	*a = *attemptModelToDomain(model)
	return nil
}

// GetByNotificationID returns attempts in the order they were made. Attempt numbers restart
// on failover, so creation time orders first.
func (r *GormAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error) {
	var models []NotificationAttemptModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("created_at ASC").
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.NotificationAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
