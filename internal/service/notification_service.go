package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCreatedBy = "SYSTEM"

type NotificationService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	publisher     queue.Publisher
	events        queue.EventPublisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	publisher queue.Publisher,
	events queue.EventPublisher,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		attempts:      attempts,
		publisher:     publisher,
		events:        events,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Create stores a new PENDING notification and enqueues it unless it is scheduled for later.
// A repeated idempotency key returns the notification created first.
func (s *NotificationService) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	if err := prepareNotificationForCreate(notification, now); err != nil {
		return nil, err
	}
	created := domain.NewNotification(notification, now)

	if err := s.notifications.Create(ctx, notification); err != nil {
		existing, resolved, resolveErr := s.resolveIdempotencyConflict(ctx, err, notification.IdempotencyKey)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if resolved {
			s.ensureScheduled(ctx, existing)
			return existing, nil
		}
		return nil, err
	}

	s.metrics.IncNotificationCreated(notification.Type.String())
	s.publishEvents(ctx, created)

	if !shouldEnqueueImmediately(notification.ScheduledAt, now) {
		return notification, nil
	}
	if err := s.enqueue(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) GetAttempts(ctx context.Context, id string) ([]domain.NotificationAttempt, error) {
	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.attempts == nil {
		return []domain.NotificationAttempt{}, nil
	}
	return s.attempts.GetByNotificationID(ctx, notification.ID)
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}

// Cancel stops a PENDING notification. Any other status is an invalid transition.
func (s *NotificationService) Cancel(ctx context.Context, id string) (*domain.Notification, error) {
	return s.transition(ctx, id, func(n *domain.Notification, now time.Time) (domain.Event, error) {
		return n.Cancel(now)
	})
}

// MarkDelivered records a delivery receipt for a SENT notification.
func (s *NotificationService) MarkDelivered(ctx context.Context, id string) (*domain.Notification, error) {
	return s.transition(ctx, id, func(n *domain.Notification, now time.Time) (domain.Event, error) {
		return n.MarkDelivered(now)
	})
}

// MarkRead records the user's read acknowledgement for a DELIVERED notification.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	return s.transition(ctx, id, func(n *domain.Notification, now time.Time) (domain.Event, error) {
		return n.MarkRead(now)
	})
}

// Retry is the operator-triggered retry. A FAILED notification is left untouched and a new
// PENDING copy is created; a PENDING notification is made due immediately.
func (s *NotificationService) Retry(ctx context.Context, id string, requestedBy string) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !notification.Status.CanRetry() {
		return nil, fmt.Errorf("%w: cannot retry notification in status %s",
			domain.ErrInvalidStateTransition, notification.Status)
	}

	now := s.now().UTC()
	if notification.Status == domain.StatusFailed {
		clone, created, err := notification.CloneForRetry(uuid.NewString(), strings.TrimSpace(requestedBy), now)
		if err != nil {
			return nil, err
		}
		if err := s.notifications.Create(ctx, clone); err != nil {
			return nil, err
		}
		s.metrics.IncNotificationCreated(clone.Type.String())
		s.publishEvents(ctx, created)
		s.logger.Info("failed notification cloned for manual retry",
			zap.String("notificationId", notification.ID),
			zap.String("retryNotificationId", clone.ID),
		)
		if err := s.enqueue(ctx, clone); err != nil {
			return nil, err
		}
		return clone, nil
	}

	if err := notification.RequeueNow(now); err != nil {
		return nil, err
	}
	if err := s.notifications.Save(ctx, notification, domain.StatusPending); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *NotificationService) transition(
	ctx context.Context,
	id string,
	apply func(n *domain.Notification, now time.Time) (domain.Event, error),
) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := notification.Status
	event, err := apply(notification, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.notifications.Save(ctx, notification, from); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: notification %s changed status concurrently", domain.ErrConflict, notification.ID)
		}
		return nil, err
	}

	s.publishEvents(ctx, event)
	return notification, nil
}

// enqueue publishes n to the dispatch queue. When the broker is unavailable a notification
// without a schedule is made due now, so the scheduler publishes it on its next scan.
func (s *NotificationService) enqueue(ctx context.Context, n *domain.Notification) error {
	err := s.publisher.Publish(ctx, queue.DispatchQueue, queue.NewNotificationMessage(n))
	if err == nil {
		if n.ScheduledAt != nil {
			if _, markErr := s.notifications.MarkDispatched(ctx, n.ID, *n.ScheduledAt); markErr != nil {
				s.logger.Warn("failed to clear schedule after publish",
					zap.String("notificationId", n.ID),
					zap.Error(markErr),
				)
			} else {
				n.ScheduledAt = nil
			}
		}
		return nil
	}

	s.logger.Error("failed to publish notification, leaving it to the scheduler",
		zap.String("notificationId", n.ID),
		zap.Error(err),
	)
	if n.ScheduledAt != nil {
		return nil
	}
	if requeueErr := n.RequeueNow(s.now()); requeueErr != nil {
		return fmt.Errorf("failed to publish notification: %w (requeue: %v)", err, requeueErr)
	}
	if saveErr := s.notifications.Save(ctx, n, domain.StatusPending); saveErr != nil {
		return fmt.Errorf("failed to publish notification: %w (failed to schedule: %v)", err, saveErr)
	}
	return nil
}

// ensureScheduled makes a PENDING notification without a schedule due now. A first create
// whose publish and fallback save both failed would otherwise never be picked up.
func (s *NotificationService) ensureScheduled(ctx context.Context, n *domain.Notification) {
	if n == nil || n.Status != domain.StatusPending || n.ScheduledAt != nil {
		return
	}
	if err := n.RequeueNow(s.now()); err != nil {
		return
	}
	if err := s.notifications.Save(ctx, n, domain.StatusPending); err != nil && !errors.Is(err, domain.ErrConflict) {
		s.logger.Warn("failed to schedule notification on idempotent replay",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) publishEvents(ctx context.Context, events ...domain.Event) {
	publishEvents(ctx, s.events, s.logger, events)
}

// publishEvents is best-effort: a lost event never rolls back a stored transition.
func publishEvents(ctx context.Context, publisher queue.EventPublisher, logger *zap.Logger, events []domain.Event) {
	if publisher == nil {
		return
	}
	for _, event := range events {
		if err := publisher.PublishEvent(ctx, event); err != nil {
			logger.Warn("failed to publish notification event",
				zap.String("notificationId", event.NotificationID),
				zap.String("eventType", event.Type.String()),
				zap.Error(err),
			)
		}
	}
}

func prepareNotificationForCreate(n *domain.Notification, now time.Time) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	n.UserID = strings.TrimSpace(n.UserID)
	n.Recipient = strings.TrimSpace(n.Recipient)
	n.Message = strings.TrimSpace(n.Message)
	n.Subject = strings.TrimSpace(n.Subject)
	n.TemplateID = strings.TrimSpace(n.TemplateID)
	n.CorrelationID = strings.TrimSpace(n.CorrelationID)
	if n.CorrelationID == "" {
		n.CorrelationID = uuid.NewString()
	}

	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	n.CreatedBy = strings.TrimSpace(n.CreatedBy)
	if n.CreatedBy == "" {
		n.CreatedBy = defaultCreatedBy
	}
	if n.Priority == "" {
		n.Priority = domain.PriorityNormal
	}
	n.IdempotencyKey = normalizeOptionalString(n.IdempotencyKey)

	if n.ScheduledAt != nil {
		if !n.ScheduledAt.After(now) {
			n.ScheduledAt = nil
		} else {
			scheduledAt := n.ScheduledAt.UTC()
			n.ScheduledAt = &scheduledAt
		}
	}

	return n.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func shouldEnqueueImmediately(scheduledAt *time.Time, now time.Time) bool {
	if scheduledAt == nil {
		return true
	}
	return !scheduledAt.After(now)
}

func (s *NotificationService) resolveIdempotencyConflict(
	ctx context.Context,
	createErr error,
	idempotencyKey *string,
) (*domain.Notification, bool, error) {
	if idempotencyKey == nil || strings.TrimSpace(*idempotencyKey) == "" {
		return nil, false, nil
	}
	if !isUniqueViolationError(createErr) {
		return nil, false, nil
	}

	existing, err := s.notifications.GetByIdempotencyKey(ctx, strings.TrimSpace(*idempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing notification after idempotency conflict: %w", err)
	}
	s.logger.Info("idempotency conflict resolved",
		zap.String("existingId", existing.ID),
		zap.String("idempotencyKey", *idempotencyKey),
	)
	return existing, true, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
