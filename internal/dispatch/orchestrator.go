package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/provider"
	"github.com/vallegrande/notification-engine/internal/ratelimit"
	"go.uber.org/zap"
)

// PreferenceStore loads user preferences. A missing record is reported as domain.ErrNotFound.
type PreferenceStore interface {
	GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreference, error)
}

// TemplateStore loads templates by code. A missing template is reported as domain.ErrNotFound.
type TemplateStore interface {
	GetByCode(ctx context.Context, code string) (*domain.NotificationTemplate, error)
}

// StateStore persists the PROCESSING checkpoint before a provider is called. It must fail with
// domain.ErrConflict when the stored status is no longer from.
type StateStore interface {
	Checkpoint(ctx context.Context, n *domain.Notification, from domain.Status) error
}

type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"
	OutcomeDeferred       Outcome = "deferred"
	OutcomeSent           Outcome = "sent"
	OutcomeRetryScheduled Outcome = "retry_scheduled"
	OutcomeFailedOver     Outcome = "failed_over"
	OutcomeFailed         Outcome = "failed"
)

func (o Outcome) String() string { return string(o) }

// Result is what one Process invocation did to a notification.
type Result struct {
	Outcome       Outcome
	Notification  *domain.Notification
	Events        []domain.Event
	Attempt       *domain.NotificationAttempt
	NextAttemptAt *time.Time
	Reason        string
}

// Orchestrator sequences resolution, quiet hours, rendering, sending and the resulting
// state transition for one notification.
type Orchestrator struct {
	preferences PreferenceStore
	templates   TemplateStore
	providers   map[domain.Channel]provider.Provider
	state       StateStore
	limiter     ratelimit.RateLimiter
	renderer    *Renderer
	quietHours  *QuietHoursGate
	retry       *RetryPolicy
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Orchestrator)

func WithStateStore(state StateStore) Option {
	return func(o *Orchestrator) { o.state = state }
}

// WithRateLimiter throttles sends per channel. The wait happens before the PROCESSING
// checkpoint, so a limiter failure leaves the notification PENDING and is returned as an
// infrastructure error.
func WithRateLimiter(limiter ratelimit.RateLimiter) Option {
	return func(o *Orchestrator) { o.limiter = limiter }
}

func WithRenderer(renderer *Renderer) Option {
	return func(o *Orchestrator) {
		if renderer != nil {
			o.renderer = renderer
		}
	}
}

func WithQuietHoursGate(gate *QuietHoursGate) Option {
	return func(o *Orchestrator) {
		if gate != nil {
			o.quietHours = gate
		}
	}
}

func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(o *Orchestrator) {
		if policy != nil {
			o.retry = policy
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOrchestrator(
	preferences PreferenceStore,
	templates TemplateStore,
	providers map[domain.Channel]provider.Provider,
	opts ...Option,
) (*Orchestrator, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	o := &Orchestrator{
		preferences: preferences,
		templates:   templates,
		providers:   providers,
		renderer:    NewRenderer(false),
		quietHours:  NewQuietHoursGate(time.UTC),
		retry:       DefaultRetryPolicy(),
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process runs one dispatch step. Infrastructure errors from the stores are returned; every
// delivery outcome, including terminal failure, is reported through Result.
func (o *Orchestrator) Process(ctx context.Context, n *domain.Notification) (*Result, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	now := o.now().UTC()
	result := &Result{Outcome: OutcomeSkipped, Notification: n}
	if n.Status != domain.StatusPending || !n.IsDue(now) {
		return result, nil
	}

	pref, err := o.loadPreference(ctx, n.UserID)
	if err != nil {
		return nil, err
	}

	candidates, err := ResolveCandidates(pref, ResolveRequest{
		UserID:    n.UserID,
		Category:  n.Type,
		Hint:      n.Channel,
		Recipient: n.Recipient,
	})
	if err == nil {
		candidates = withoutExhausted(candidates, n)
		if len(candidates) == 0 {
			err = fmt.Errorf("%w: every candidate channel exhausted its retry budget", domain.ErrNoDeliverableChannel)
		}
	}
	if err != nil {
		return o.fail(result, now, err.Error())
	}

	selected, index := selectCandidate(candidates, n.Channel)
	n.Channel = selected.Channel
	n.Recipient = selected.Address

	if until, deferred := o.quietHours.DeferUntil(now, pref, n.IsUrgent()); deferred {
		event, err := n.Defer(now, until)
		if err != nil {
			return nil, err
		}
		next := until.UTC()
		result.Outcome = OutcomeDeferred
		result.Events = append(result.Events, event)
		result.NextAttemptAt = &next
		return result, nil
	}

	if err := o.render(ctx, n); err != nil {
		if domain.IsConfigurationError(err) || errors.Is(err, domain.ErrValidation) {
			return o.fail(result, now, err.Error())
		}
		return nil, err
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, n.Channel); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s: %w", n.Channel, err)
		}
		now = o.now().UTC()
	}

	event, err := n.Start(now)
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, event)
	if o.state != nil {
		if err := o.state.Checkpoint(ctx, n, domain.StatusPending); err != nil {
			return nil, fmt.Errorf("checkpoint processing: %w", err)
		}
	}

	return o.send(ctx, result, candidates, index)
}

func (o *Orchestrator) send(ctx context.Context, result *Result, candidates []Candidate, index int) (*Result, error) {
	n := result.Notification
	attempt := &domain.NotificationAttempt{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		AttemptNumber:  n.RetryCount + 1,
		Channel:        n.Channel,
		ProviderName:   n.Channel.ProviderName(),
	}
	result.Attempt = attempt

	var (
		response *provider.ProviderResponse
		sendErr  error
	)
	sender, ok := o.providers[n.Channel]
	if !ok {
		sendErr = &provider.ProviderError{Message: fmt.Sprintf("no provider configured for %s", n.Channel)}
	} else {
		response, sendErr = sender.Send(ctx, *n)
	}

	done := o.now().UTC()
	attempt.CreatedAt = done
	if response != nil {
		attempt.StatusCode = &response.StatusCode
		attempt.ResponseBody = &response.Body
		if response.ProviderName != "" {
			attempt.ProviderName = response.ProviderName
		}
	}

	if sendErr == nil {
		providerID := ""
		if response != nil {
			providerID = response.MessageID
		}
		event, err := n.MarkSent(done, attempt.ProviderName, providerID)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeSent
		result.Events = append(result.Events, event)
		return result, nil
	}

	reason := strings.TrimSpace(sendErr.Error())
	attempt.Error = &reason
	var providerErr *provider.ProviderError
	if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && attempt.StatusCode == nil {
		code := providerErr.StatusCode
		attempt.StatusCode = &code
	}

	if !provider.IsTransient(sendErr) && ctx.Err() == nil {
		return o.fail(result, done, reason)
	}

	if decision := o.retry.Next(n.Priority, n.RetryCount, done); decision.Retry {
		event, err := n.ScheduleRetry(done, decision.At, reason)
		if err != nil {
			return nil, err
		}
		next := decision.At.UTC()
		result.Outcome = OutcomeRetryScheduled
		result.Events = append(result.Events, event)
		result.NextAttemptAt = &next
		return result, nil
	}

	if index+1 < len(candidates) {
		fallback := candidates[index+1]
		event, err := n.FailOver(done, fallback.Channel, fallback.Address, done, reason)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeFailedOver
		result.Events = append(result.Events, event)
		result.NextAttemptAt = &done
		o.logger.Info("channel retry budget exhausted, failing over",
			zap.String("notificationId", n.ID),
			zap.String("fallbackChannel", fallback.Channel.String()),
		)
		return result, nil
	}

	return o.fail(result, done, "retries exhausted: "+reason)
}

func (o *Orchestrator) fail(result *Result, now time.Time, reason string) (*Result, error) {
	event, err := result.Notification.MarkFailed(now, reason)
	if err != nil {
		return nil, err
	}
	result.Outcome = OutcomeFailed
	result.Reason = reason
	result.Events = append(result.Events, event)
	return result, nil
}

func (o *Orchestrator) loadPreference(ctx context.Context, userID string) (domain.NotificationPreference, error) {
	pref, err := o.preferences.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && pref == nil) {
		return domain.DefaultPreference(userID), nil
	}
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("load preferences: %w", err)
	}
	return *pref, nil
}

// render builds the content from the template unless a direct message was supplied. Content
// rendered for another channel, as left behind by a failover, is rendered again.
func (o *Orchestrator) render(ctx context.Context, n *domain.Notification) error {
	if n.NeedsRendering() {
		code := strings.TrimSpace(n.TemplateID)
		if code == "" {
			return fmt.Errorf("%w: message or templateCode is required", domain.ErrValidation)
		}
		tpl, err := o.templates.GetByCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && tpl == nil) {
			return fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, code)
		}
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}

		content, err := o.renderer.Render(tpl, n.TemplateParams, n.Channel)
		if err != nil {
			return err
		}
		if n.RenderedFor != "" || content.Subject != "" {
			n.Subject = content.Subject
		}
		n.Message = content.Message
		n.RenderedFor = n.Channel
	}

	return n.ValidateContent()
}
