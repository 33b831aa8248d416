package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

func newTestNotificationService(t *testing.T, repo *fakeNotificationRepo, publisher *fakePublisher, events queue.EventPublisher) *NotificationService {
	t.Helper()

	svc, err := NewNotificationService(repo, &fakeAttemptRepo{}, publisher, events, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}
	svc.now = func() time.Time { return testNow }
	return svc
}

func smsRequest() *domain.Notification {
	return &domain.Notification{
		UserID:    "user-1",
		Channel:   domain.ChannelSMS,
		Recipient: " +51999000111 ",
		Type:      domain.TypePaymentReceived,
		Message:   " Pago recibido ",
	}
}

func storedNotification(status domain.Status) *domain.Notification {
	n := &domain.Notification{
		ID:            "n1",
		CorrelationID: "c1",
		UserID:        "user-1",
		Channel:       domain.ChannelSMS,
		Recipient:     "+51999000111",
		Type:          domain.TypePaymentReceived,
		Message:       "Pago recibido",
		Priority:      domain.PriorityHigh,
		CreatedBy:     "SYSTEM",
	}
	domain.NewNotification(n, testNow.Add(-time.Hour))
	n.Status = status
	return n
}

func TestNotificationServiceCreateHappyPath(t *testing.T) {
	t.Parallel()

	var stored *domain.Notification
	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			if n.Status != domain.StatusPending {
				t.Fatalf("status = %s, want PENDING", n.Status)
			}
			if strings.TrimSpace(n.CorrelationID) == "" {
				t.Fatal("correlation id should be generated")
			}
			stored = n
			return nil
		},
	}

	var publishedQueue string
	var publishedMsg queue.NotificationMessage
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			publishedQueue = queueName
			publishedMsg = msg
			return nil
		},
	}
	events := &fakeEventPublisher{}

	svc := newTestNotificationService(t, repo, publisher, events)
	result, err := svc.Create(context.Background(), smsRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if stored == nil {
		t.Fatal("notification should be stored")
	}
	if result.Recipient != "+51999000111" || result.Message != "Pago recibido" {
		t.Fatalf("fields not trimmed: recipient=%q message=%q", result.Recipient, result.Message)
	}
	if result.Priority != domain.PriorityNormal {
		t.Fatalf("priority = %s, want NORMAL default", result.Priority)
	}
	if result.CreatedBy != defaultCreatedBy {
		t.Fatalf("createdBy = %q, want %q", result.CreatedBy, defaultCreatedBy)
	}
	if !result.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt = %s, want %s", result.CreatedAt, testNow)
	}
	if publishedQueue != queue.DispatchQueue {
		t.Fatalf("queue = %q, want %q", publishedQueue, queue.DispatchQueue)
	}
	if publishedMsg.NotificationID != result.ID || publishedMsg.Priority != domain.PriorityNormal {
		t.Fatalf("published message = %+v", publishedMsg)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventCreated {
		t.Fatalf("events = %v, want [notification.created]", got)
	}
}

func TestNotificationServiceCreateScheduledIsNotPublished(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			t.Fatal("scheduled notification should not be published")
			return nil
		},
	}
	svc := newTestNotificationService(t, &fakeNotificationRepo{}, publisher, nil)

	later := testNow.Add(2 * time.Hour)
	request := smsRequest()
	request.ScheduledAt = &later

	result, err := svc.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.ScheduledAt == nil || !result.ScheduledAt.Equal(later) {
		t.Fatalf("scheduledAt = %v, want %s", result.ScheduledAt, later)
	}
	if result.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", result.Status)
	}
}

func TestNotificationServiceCreatePastScheduleIsImmediate(t *testing.T) {
	t.Parallel()

	published := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			published = true
			return nil
		},
	}
	svc := newTestNotificationService(t, &fakeNotificationRepo{}, publisher, nil)

	earlier := testNow.Add(-time.Minute)
	request := smsRequest()
	request.ScheduledAt = &earlier

	result, err := svc.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.ScheduledAt != nil {
		t.Fatalf("scheduledAt = %v, want nil", result.ScheduledAt)
	}
	if !published {
		t.Fatal("expected publish to be called")
	}
}

func TestNotificationServiceCreatePublishFailureLeavesItToScheduler(t *testing.T) {
	t.Parallel()

	var savedScheduledAt *time.Time
	repo := &fakeNotificationRepo{
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			if expected != domain.StatusPending {
				t.Fatalf("expected status = %s, want PENDING", expected)
			}
			savedScheduledAt = n.ScheduledAt
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			return errors.New("broker down")
		},
	}
	svc := newTestNotificationService(t, repo, publisher, nil)

	result, err := svc.Create(context.Background(), smsRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", result.Status)
	}
	if savedScheduledAt == nil || !savedScheduledAt.Equal(testNow) {
		t.Fatalf("saved scheduledAt = %v, want %s", savedScheduledAt, testNow)
	}
}

func TestNotificationServiceCreatePublishAndSaveFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			return errors.New("db down")
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			return errors.New("broker down")
		},
	}
	svc := newTestNotificationService(t, repo, publisher, nil)

	_, err := svc.Create(context.Background(), smsRequest())
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("Create() error = %v, want publish error", err)
	}
}

func TestNotificationServiceCreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(n *domain.Notification)
	}{
		{name: "missing recipient", mutate: func(n *domain.Notification) { n.Recipient = "  " }},
		{name: "missing user", mutate: func(n *domain.Notification) { n.UserID = "" }},
		{name: "invalid type", mutate: func(n *domain.Notification) { n.Type = "NEWSLETTER" }},
		{name: "invalid priority", mutate: func(n *domain.Notification) { n.Priority = "CRITICAL" }},
		{name: "no content", mutate: func(n *domain.Notification) { n.Message = ""; n.TemplateID = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &fakeNotificationRepo{
				createFn: func(ctx context.Context, n *domain.Notification) error {
					t.Fatal("invalid notification should not be stored")
					return nil
				},
			}
			svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

			request := smsRequest()
			tt.mutate(request)
			if _, err := svc.Create(context.Background(), request); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestNotificationServiceCreateIdempotencyConflictReturnsExisting(t *testing.T) {
	t.Parallel()

	existing := storedNotification(domain.StatusSent)
	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			return gorm.ErrDuplicatedKey
		},
		getByIdempotencyKeyFn: func(ctx context.Context, key string) (*domain.Notification, error) {
			if key != "payment-123" {
				t.Fatalf("idempotency key = %q, want trimmed payment-123", key)
			}
			return existing, nil
		},
	}
	repo.saveFn = func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
		t.Fatal("completed duplicate should not be rescheduled")
		return nil
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			t.Fatal("duplicate request should not be published")
			return nil
		},
	}
	svc := newTestNotificationService(t, repo, publisher, nil)

	key := " payment-123 "
	request := smsRequest()
	request.IdempotencyKey = &key

	result, err := svc.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result != existing {
		t.Fatalf("Create() = %+v, want existing notification", result)
	}
}

func TestNotificationServiceCreateIdempotencyReplaySchedulesStrandedNotification(t *testing.T) {
	t.Parallel()

	existing := storedNotification(domain.StatusPending)
	existing.ScheduledAt = nil

	var (
		saves         int
		savedExpected domain.Status
	)
	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			return gorm.ErrDuplicatedKey
		},
		getByIdempotencyKeyFn: func(ctx context.Context, key string) (*domain.Notification, error) {
			return existing, nil
		},
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			saves++
			savedExpected = expected
			return nil
		},
	}
	svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

	key := "evt-9:sms"
	request := smsRequest()
	request.IdempotencyKey = &key

	result, err := svc.Create(context.Background(), request)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.ID != existing.ID || result.Status != domain.StatusPending {
		t.Fatalf("Create() = %+v, want existing pending notification", result)
	}
	if saves != 1 || savedExpected != domain.StatusPending {
		t.Fatalf("saves = %d expected = %s, want 1 from PENDING", saves, savedExpected)
	}
	if result.ScheduledAt == nil || !result.ScheduledAt.Equal(testNow) {
		t.Fatalf("scheduledAt = %v, want due now", result.ScheduledAt)
	}
}

func TestNotificationServiceCreateNonUniqueErrorIsReturned(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

	key := "k1"
	request := smsRequest()
	request.IdempotencyKey = &key
	if _, err := svc.Create(context.Background(), request); err == nil {
		t.Fatal("Create() expected error")
	}
}

func TestNotificationServiceCancel(t *testing.T) {
	t.Parallel()

	later := testNow.Add(time.Hour)
	pending := storedNotification(domain.StatusPending)
	pending.ScheduledAt = &later

	var savedExpected domain.Status
	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return pending, nil
		},
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			savedExpected = expected
			return nil
		},
	}
	events := &fakeEventPublisher{}
	svc := newTestNotificationService(t, repo, &fakePublisher{}, events)

	result, err := svc.Cancel(context.Background(), " n1 ")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if result.Status != domain.StatusCancelled || result.ScheduledAt != nil {
		t.Fatalf("result = status %s scheduledAt %v", result.Status, result.ScheduledAt)
	}
	if savedExpected != domain.StatusPending {
		t.Fatalf("expected status = %s, want PENDING", savedExpected)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventCancelled {
		t.Fatalf("events = %v", got)
	}
}

func TestNotificationServiceCancelRejectsStartedNotification(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{domain.StatusProcessing, domain.StatusSent, domain.StatusFailed, domain.StatusCancelled} {
		status := status
		repo := &fakeNotificationRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
				return storedNotification(status), nil
			},
			saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
				t.Fatalf("Save should not be called for %s", status)
				return nil
			},
		}
		svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

		if _, err := svc.Cancel(context.Background(), "n1"); !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("Cancel() from %s error = %v, want ErrInvalidStateTransition", status, err)
		}
	}
}

func TestNotificationServiceCancelConcurrentChange(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return storedNotification(domain.StatusPending), nil
		},
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			return domain.ErrConflict
		},
	}
	svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

	if _, err := svc.Cancel(context.Background(), "n1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Cancel() error = %v, want ErrConflict", err)
	}
}

func TestNotificationServiceDeliveryReceipts(t *testing.T) {
	t.Parallel()

	current := storedNotification(domain.StatusSent)
	expectations := make([]domain.Status, 0, 2)
	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return current, nil
		},
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			expectations = append(expectations, expected)
			return nil
		},
	}
	events := &fakeEventPublisher{}
	svc := newTestNotificationService(t, repo, &fakePublisher{}, events)

	delivered, err := svc.MarkDelivered(context.Background(), "n1")
	if err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	if delivered.Status != domain.StatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("MarkDelivered() = %+v", delivered)
	}

	read, err := svc.MarkRead(context.Background(), "n1")
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if read.Status != domain.StatusRead || read.ReadAt == nil {
		t.Fatalf("MarkRead() = %+v", read)
	}

	if len(expectations) != 2 || expectations[0] != domain.StatusSent || expectations[1] != domain.StatusDelivered {
		t.Fatalf("expected statuses = %v", expectations)
	}
	if got := events.types(); len(got) != 2 || got[0] != domain.EventDelivered || got[1] != domain.EventRead {
		t.Fatalf("events = %v", got)
	}

	if _, err := svc.MarkRead(context.Background(), "n1"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("MarkRead() on READ error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestNotificationServiceRetryFailedClones(t *testing.T) {
	t.Parallel()

	failed := storedNotification(domain.StatusFailed)
	reason := "gateway rejected"
	failed.ErrorMessage = &reason

	var created *domain.Notification
	var published queue.NotificationMessage
	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return failed, nil
		},
		createFn: func(ctx context.Context, n *domain.Notification) error {
			created = n
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			published = msg
			return nil
		},
	}
	events := &fakeEventPublisher{}
	svc := newTestNotificationService(t, repo, publisher, events)

	result, err := svc.Retry(context.Background(), "n1", "operator-7")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if created == nil || result != created {
		t.Fatal("clone should be stored and returned")
	}
	if result.ID == failed.ID || result.Status != domain.StatusPending || result.RetryCount != 0 {
		t.Fatalf("clone = id %s status %s retryCount %d", result.ID, result.Status, result.RetryCount)
	}
	if result.CreatedBy != "operator-7" || result.Message != failed.Message {
		t.Fatalf("clone content = %+v", result)
	}
	if failed.Status != domain.StatusFailed || failed.ErrorMessage == nil {
		t.Fatal("failed notification must stay untouched")
	}
	if published.NotificationID != result.ID {
		t.Fatalf("published id = %q, want clone id", published.NotificationID)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestNotificationServiceRetryPendingRequeues(t *testing.T) {
	t.Parallel()

	later := testNow.Add(6 * time.Hour)
	pending := storedNotification(domain.StatusPending)
	pending.ScheduledAt = &later

	var savedScheduledAt time.Time
	var markedAt time.Time
	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return pending, nil
		},
		saveFn: func(ctx context.Context, n *domain.Notification, expected domain.Status) error {
			if expected != domain.StatusPending {
				t.Fatalf("expected status = %s, want PENDING", expected)
			}
			savedScheduledAt = *n.ScheduledAt
			return nil
		},
		markDispatchedFn: func(ctx context.Context, id string, scheduledAt time.Time) (bool, error) {
			markedAt = scheduledAt
			return true, nil
		},
	}
	published := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
			published = true
			return nil
		},
	}
	svc := newTestNotificationService(t, repo, publisher, nil)

	result, err := svc.Retry(context.Background(), "n1", "")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result.ID != "n1" {
		t.Fatalf("Retry() id = %q, want n1", result.ID)
	}
	if !savedScheduledAt.Equal(testNow) || !markedAt.Equal(testNow) {
		t.Fatalf("saved=%s marked=%s, want %s", savedScheduledAt, markedAt, testNow)
	}
	if !published {
		t.Fatal("expected publish to be called")
	}
	if result.ScheduledAt != nil {
		t.Fatalf("scheduledAt = %v, want cleared after dispatch", result.ScheduledAt)
	}
}

func TestNotificationServiceRetryRejectsOtherStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{domain.StatusProcessing, domain.StatusSent, domain.StatusDelivered, domain.StatusCancelled} {
		status := status
		repo := &fakeNotificationRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
				return storedNotification(status), nil
			},
		}
		svc := newTestNotificationService(t, repo, &fakePublisher{}, nil)

		if _, err := svc.Retry(context.Background(), "n1", ""); !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("Retry() from %s error = %v, want ErrInvalidStateTransition", status, err)
		}
	}
}

func TestNotificationServiceGetByIDRequiresID(t *testing.T) {
	t.Parallel()

	svc := newTestNotificationService(t, &fakeNotificationRepo{}, &fakePublisher{}, nil)
	if _, err := svc.GetByID(context.Background(), "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetByID() error = %v, want ErrValidation", err)
	}
	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestNotificationServiceGetAttempts(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return storedNotification(domain.StatusSent), nil
		},
	}
	attempts := &fakeAttemptRepo{
		getByNotificationIDFn: func(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error) {
			return []domain.NotificationAttempt{{ID: "a1", NotificationID: notificationID, AttemptNumber: 1}}, nil
		},
	}
	svc, err := NewNotificationService(repo, attempts, &fakePublisher{}, nil, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	got, err := svc.GetAttempts(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetAttempts() error = %v", err)
	}
	if len(got) != 1 || got[0].NotificationID != "n1" {
		t.Fatalf("GetAttempts() = %+v", got)
	}
}

func TestNewNotificationServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewNotificationService(nil, nil, &fakePublisher{}, nil, nil); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewNotificationService(&fakeNotificationRepo{}, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error without publisher")
	}
}

func TestIsUniqueViolationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: gorm.ErrDuplicatedKey, want: true},
		{err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_notifications_idempotency_key"`), want: true},
		{err: errors.New("connection reset"), want: false},
	}
	for _, tt := range tests {
		if got := isUniqueViolationError(tt.err); got != tt.want {
			t.Fatalf("isUniqueViolationError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

type fakeNotificationRepo struct {
	createFn              func(ctx context.Context, n *domain.Notification) error
	getByIDFn             func(ctx context.Context, id string) (*domain.Notification, error)
	getByIdempotencyKeyFn func(ctx context.Context, idempotencyKey string) (*domain.Notification, error)
	listFn                func(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	saveFn                func(ctx context.Context, n *domain.Notification, expected domain.Status) error
	checkpointFn          func(ctx context.Context, n *domain.Notification, from domain.Status) error
	getDueFn              func(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	markDispatchedFn      func(ctx context.Context, id string, scheduledAt time.Time) (bool, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error) {
	if f.getByIdempotencyKeyFn != nil {
		return f.getByIdempotencyKeyFn(ctx, idempotencyKey)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeNotificationRepo) Save(ctx context.Context, n *domain.Notification, expected domain.Status) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, n, expected)
	}
	return nil
}

func (f *fakeNotificationRepo) Checkpoint(ctx context.Context, n *domain.Notification, from domain.Status) error {
	if f.checkpointFn != nil {
		return f.checkpointFn(ctx, n, from)
	}
	return nil
}

func (f *fakeNotificationRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if f.getDueFn != nil {
		return f.getDueFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkDispatched(ctx context.Context, id string, scheduledAt time.Time) (bool, error) {
	if f.markDispatchedFn != nil {
		return f.markDispatchedFn(ctx, id, scheduledAt)
	}
	return true, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.NotificationMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (f *fakeEventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeEventPublisher) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]domain.EventType, 0, len(f.events))
	for _, event := range f.events {
		types = append(types, event.Type)
	}
	return types
}

type fakeAttemptRepo struct {
	createFn              func(ctx context.Context, a *domain.NotificationAttempt) error
	getByNotificationIDFn func(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error) {
	if f.getByNotificationIDFn != nil {
		return f.getByNotificationIDFn(ctx, notificationID)
	}
	return nil, nil
}
