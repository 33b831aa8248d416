package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vallegrande/notification-engine/internal/dispatch"
	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Dispatcher runs one dispatch step for a notification.
type Dispatcher interface {
	Process(ctx context.Context, n *domain.Notification) (*dispatch.Result, error)
}

// Locker grants single ownership of a notification id for one processing invocation.
type Locker interface {
	TryLock(ctx context.Context, notificationID string) (func(context.Context) error, bool, error)
}

type WorkerService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	consumer      queue.Consumer
	publisher     queue.Publisher
	events        queue.EventPublisher
	dispatcher    Dispatcher
	locker        Locker
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	publisher queue.Publisher,
	events queue.EventPublisher,
	dispatcher Dispatcher,
	locker Locker,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		notifications: notifications,
		attempts:      attempts,
		consumer:      consumer,
		publisher:     publisher,
		events:        events,
		dispatcher:    dispatcher,
		locker:        locker,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the dispatch queue with the configured number of consumers until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DispatchQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.DispatchQueue, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queue.DispatchQueue),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.NotificationMessage) error {
	ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	logger := observability.WithContextLogger(s.logger, ctx).With(observability.NotificationFields(msg.NotificationID, "", "")...)

	release, acquired, err := s.locker.TryLock(ctx, msg.NotificationID)
	if err != nil {
		return fmt.Errorf("failed to lock notification: %w", err)
	}
	if !acquired {
		logger.Info("notification is owned by another worker, skipping")
		return nil
	}
	released := false
	unlock := func() {
		if released {
			return
		}
		released = true
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release notification lock", zap.Error(err))
		}
	}
	defer unlock()

	notification, err := s.notifications.GetByID(ctx, msg.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("notification not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to load notification: %w", err)
	}

	logger = logger.With(zap.String("userId", notification.UserID))
	priority := strings.ToLower(notification.Priority.String())
	s.metrics.IncWorkerInFlight(priority)
	defer s.metrics.DecWorkerInFlight(priority)

	result, err := s.dispatcher.Process(ctx, notification)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Info("notification changed status before processing, skipping")
			return nil
		}
		return fmt.Errorf("failed to process notification: %w", err)
	}
	if result.Outcome == dispatch.OutcomeSkipped {
		return nil
	}

	if err := s.notifications.Save(ctx, result.Notification, expectedStoredStatus(result)); err != nil {
		return fmt.Errorf("failed to save notification after %s: %w", result.Outcome, err)
	}
	s.recordAttempt(ctx, logger, result.Attempt)
	publishEvents(ctx, s.events, logger, result.Events)
	s.recordOutcome(result)

	logger.Info("notification processed",
		zap.String("outcome", result.Outcome.String()),
		zap.String("channel", result.Notification.Channel.String()),
		zap.String("status", result.Notification.Status.String()),
	)

	if result.Outcome == dispatch.OutcomeFailedOver {
		// The consumer of the fallback message must be able to take the lock.
		unlock()
		s.redispatch(ctx, logger, result)
	}
	return nil
}

// expectedStoredStatus is the status the repository holds before the result is saved.
func expectedStoredStatus(result *dispatch.Result) domain.Status {
	for _, event := range result.Events {
		if event.Type == domain.EventProcessing {
			return domain.StatusProcessing
		}
	}
	return domain.StatusPending
}

// redispatch publishes a fallback channel attempt that is already due. The schedule stays set,
// so the scheduler republishes it if this message is lost or skipped.
func (s *WorkerService) redispatch(ctx context.Context, logger *zap.Logger, result *dispatch.Result) {
	if s.publisher == nil || result.NextAttemptAt == nil || result.NextAttemptAt.After(s.now()) {
		return
	}
	msg := queue.NewNotificationMessage(result.Notification)
	if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
		logger.Warn("failed to publish failover attempt, leaving it to the scheduler", zap.Error(err))
	}
}

func (s *WorkerService) recordAttempt(ctx context.Context, logger *zap.Logger, attempt *domain.NotificationAttempt) {
	if attempt == nil || s.attempts == nil {
		return
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		logger.Error("failed to record attempt",
			zap.Int("attemptNumber", attempt.AttemptNumber),
			zap.Error(err),
		)
	}
}

func (s *WorkerService) recordOutcome(result *dispatch.Result) {
	channel := strings.ToLower(result.Notification.Channel.String())
	attemptChannel := channel
	if result.Attempt != nil {
		attemptChannel = strings.ToLower(result.Attempt.Channel.String())
		if !result.Attempt.CreatedAt.IsZero() {
			// The attempt is stamped after the provider returns; processing started at the checkpoint.
			s.metrics.ObserveNotificationSendDuration(attemptChannel, result.Attempt.CreatedAt.Sub(processingStartedAt(result)))
		}
	}

	switch result.Outcome {
	case dispatch.OutcomeSent:
		s.metrics.IncNotificationSent(channel)
	case dispatch.OutcomeDeferred:
		s.metrics.IncNotificationDeferred(channel)
	case dispatch.OutcomeRetryScheduled:
		s.metrics.IncRetryScheduled(channel)
	case dispatch.OutcomeFailedOver:
		s.metrics.IncFailover(attemptChannel, channel)
	case dispatch.OutcomeFailed:
		s.metrics.IncNotificationFailed(channel, failureReason(result))
	}
}

func processingStartedAt(result *dispatch.Result) time.Time {
	for _, event := range result.Events {
		if event.Type == domain.EventProcessing {
			return event.OccurredAt
		}
	}
	return result.Attempt.CreatedAt
}

func failureReason(result *dispatch.Result) string {
	switch {
	case result.Attempt == nil:
		return "configuration"
	case strings.HasPrefix(result.Reason, "retries exhausted"):
		return "retry_exhausted"
	default:
		return "permanent_error"
	}
}
