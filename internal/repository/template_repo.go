package repository

import (
	"context"
	"errors"

	"github.com/vallegrande/notification-engine/internal/domain"
	"gorm.io/gorm"
)

type TemplateRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.NotificationTemplate, error)
	GetStatus(ctx context.Context, code string) (domain.TemplateStatus, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) GetByCode(ctx context.Context, code string) (*domain.NotificationTemplate, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

// GetStatus reads only the lifecycle status of a template.
func (r *GormTemplateRepo) GetStatus(ctx context.Context, code string) (domain.TemplateStatus, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).Select("status").First(&model, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return model.Status, nil
}
