package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSchedulerSpec       = "@every 5s"
	defaultSchedulerBatchLimit = 100
)

// Scheduler re-invokes notifications whose scheduledAt has passed: deferred by quiet hours,
// waiting for a retry, failed over, or created for later delivery.
type Scheduler struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	spec          string
	limit         int
	now           func() time.Time
}

func NewScheduler(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	spec string,
	limit int,
	logger *zap.Logger,
) (*Scheduler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultSchedulerSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}
	if limit <= 0 {
		limit = defaultSchedulerBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		spec:          spec,
		limit:         limit,
		now:           time.Now,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start scans once immediately and then on every cron tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler initial scan failed", zap.Error(err))
	}

	cronLogger := zapCronLogger{logger: s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler scan failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to register scheduler scan: %w", err)
	}

	c.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec), zap.Int("limit", s.limit))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) scanDue(ctx context.Context) error {
	dueNotifications, err := s.notifications.GetDue(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due notifications: %w", err)
	}

	dispatched := 0
	for i := range dueNotifications {
		notification := dueNotifications[i]
		if notification.ScheduledAt == nil {
			continue
		}

		msg := queue.NewNotificationMessage(&notification)
		if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
			s.logger.Error("failed to enqueue due notification",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}

		updated, err := s.notifications.MarkDispatched(ctx, notification.ID, *notification.ScheduledAt)
		if err != nil {
			s.logger.Error("failed to clear schedule of dispatched notification",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}
		if !updated {
			s.logger.Info("due notification changed before schedule was cleared",
				zap.String("notificationId", notification.ID),
			)
		}
		dispatched++
	}

	s.metrics.AddSchedulerDispatched(dispatched)
	return nil
}

// zapCronLogger adapts zap to the cron.Logger interface.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
