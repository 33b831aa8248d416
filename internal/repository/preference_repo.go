package repository

import (
	"context"
	"errors"

	"github.com/vallegrande/notification-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Upsert(ctx context.Context, p *domain.NotificationPreference) error
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return preferenceModelToDomain(&model)
}

// Upsert replaces the stored preference of p.UserID.
func (r *GormPreferenceRepo) Upsert(ctx context.Context, p *domain.NotificationPreference) error {
	model := preferenceModelFromDomain(p)
	if model == nil {
		return domain.ErrValidation
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
