package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/repository"
	"go.uber.org/zap"
)

type PreferenceService struct {
	preferences repository.PreferenceRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewPreferenceService(preferences repository.PreferenceRepository, logger *zap.Logger) (*PreferenceService, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{preferences: preferences, logger: logger, now: time.Now}, nil
}

// Get returns the stored preference, or the defaults for a user who never saved one.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}

	pref, err := s.preferences.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && pref == nil) {
		defaults := domain.DefaultPreference(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return pref, nil
}

func (s *PreferenceService) Update(ctx context.Context, pref *domain.NotificationPreference) (*domain.NotificationPreference, error) {
	if pref == nil {
		return nil, fmt.Errorf("%w: preference is required", domain.ErrValidation)
	}

	pref.UserID = strings.TrimSpace(pref.UserID)
	pref.Email = strings.TrimSpace(pref.Email)
	pref.PhoneNumber = strings.TrimSpace(pref.PhoneNumber)
	pref.WhatsAppNumber = strings.TrimSpace(pref.WhatsAppNumber)
	pref.Timezone = strings.TrimSpace(pref.Timezone)
	if pref.Categories == nil {
		pref.Categories = map[domain.NotificationType]domain.ChannelPreference{}
	}
	if err := pref.Validate(); err != nil {
		return nil, err
	}

	pref.UpdatedAt = s.now().UTC()
	if err := s.preferences.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	s.logger.Info("notification preferences updated", zap.String("userId", pref.UserID))
	return pref, nil
}
