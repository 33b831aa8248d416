package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vallegrande/notification-engine/internal/domain"
	"go.uber.org/zap"
)

const defaultTemplateTTL = 5 * time.Minute

// TemplateSource is the backing store consulted on a cache miss. GetStatus is consulted on
// every hit.
type TemplateSource interface {
	GetByCode(ctx context.Context, code string) (*domain.NotificationTemplate, error)
	GetStatus(ctx context.Context, code string) (domain.TemplateStatus, error)
}

// CachedTemplateStore keeps recently used template content in Redis. The status always comes
// from the source, so a deactivated template stops rendering immediately. Missing templates
// are not cached.
type CachedTemplateStore struct {
	next   TemplateSource
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedTemplateStore(next TemplateSource, client *goredis.Client, ttl time.Duration, logger *zap.Logger) (*CachedTemplateStore, error) {
	if next == nil {
		return nil, fmt.Errorf("template source is required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultTemplateTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTemplateStore{next: next, client: client, ttl: ttl, logger: logger}, nil
}

func (s *CachedTemplateStore) GetByCode(ctx context.Context, code string) (*domain.NotificationTemplate, error) {
	key := templateKey(code)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tpl domain.NotificationTemplate
		if jsonErr := json.Unmarshal(raw, &tpl); jsonErr == nil {
			return s.withCurrentStatus(ctx, code, &tpl)
		}
		s.logger.Warn("discarding unreadable cached template", zap.String("code", code))
	case !errors.Is(err, goredis.Nil):
		// Cache outages degrade to the backing store.
		s.logger.Warn("template cache read failed", zap.String("code", code), zap.Error(err))
	}

	tpl, err := s.next.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, domain.ErrNotFound
	}

	if encoded, err := json.Marshal(tpl); err == nil {
		if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
			s.logger.Warn("template cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return tpl, nil
}

// withCurrentStatus overlays the stored status on a cached template. A template that was
// removed or changed status is dropped from the cache.
func (s *CachedTemplateStore) withCurrentStatus(
	ctx context.Context,
	code string,
	tpl *domain.NotificationTemplate,
) (*domain.NotificationTemplate, error) {
	status, err := s.next.GetStatus(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.invalidateQuietly(ctx, code)
		}
		return nil, err
	}
	if status != tpl.Status {
		s.logger.Info("cached template status changed",
			zap.String("code", code),
			zap.String("cached", tpl.Status.String()),
			zap.String("current", status.String()),
		)
		s.invalidateQuietly(ctx, code)
		tpl.Status = status
	}
	return tpl, nil
}

func (s *CachedTemplateStore) invalidateQuietly(ctx context.Context, code string) {
	if err := s.Invalidate(ctx, code); err != nil {
		s.logger.Warn("template cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

// Invalidate drops a cached template after it changes.
func (s *CachedTemplateStore) Invalidate(ctx context.Context, code string) error {
	return s.client.Del(ctx, templateKey(code)).Err()
}

func templateKey(code string) string {
	return "notify:template:" + code
}
