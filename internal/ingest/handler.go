package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Creator accepts a dispatch request.
type Creator interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
}

// Listener consumes business events from other services and turns them into notifications.
type Listener struct {
	creator Creator
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewListener(creator Creator, logger *zap.Logger) (*Listener, error) {
	if creator == nil {
		return nil, fmt.Errorf("creator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{creator: creator, logger: logger}, nil
}

func (l *Listener) SetMetrics(metrics *observability.Metrics) {
	if l == nil {
		return
	}
	l.metrics = metrics
}

// Start consumes every inbound queue until ctx is cancelled.
func (l *Listener) Start(ctx context.Context, consumer queue.Consumer) error {
	if consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, binding := range queue.InboundBindings() {
		queueName := binding.Queue
		handler, err := l.Handler(queueName)
		if err != nil {
			return err
		}

		g.Go(func() error {
			l.logger.Info("inbound listener started",
				zap.String("queue", queueName),
				zap.String("exchange", binding.Exchange),
				zap.String("routingKey", binding.RoutingKey),
			)
			return consumer.ConsumeRaw(groupCtx, queueName, handler)
		})
	}
	return g.Wait()
}

// Handler returns the raw delivery handler for an inbound queue.
func (l *Listener) Handler(queueName string) (queue.RawHandler, error) {
	translate, ok := translators[queueName]
	if !ok {
		return nil, fmt.Errorf("no translator for queue %q", queueName)
	}

	return func(ctx context.Context, routingKey string, body []byte) error {
		err := l.handle(ctx, translate, body)
		outcome := "accepted"
		switch {
		case errors.Is(err, queue.ErrMalformedMessage):
			outcome = "rejected"
			l.logger.Warn("inbound event rejected",
				zap.String("queue", queueName),
				zap.String("routingKey", routingKey),
				zap.Error(err),
			)
		case err != nil:
			outcome = "error"
			l.logger.Error("inbound event failed",
				zap.String("queue", queueName),
				zap.String("routingKey", routingKey),
				zap.Error(err),
			)
		}
		l.metrics.IncInboundEvent(queueName, outcome)
		return err
	}, nil
}

func (l *Listener) handle(ctx context.Context, translate translator, body []byte) error {
	notifications, err := translate(body)
	if err != nil {
		return err
	}

	for _, n := range notifications {
		created, err := l.creator.Create(ctx, n)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return fmt.Errorf("%w: %v", queue.ErrMalformedMessage, err)
			}
			return fmt.Errorf("create %s notification: %w", n.Type, err)
		}
		l.logger.Info("notification requested from inbound event",
			append(observability.NotificationFields(created.ID, created.UserID, created.Channel.String()),
				zap.String("type", created.Type.String()))...,
		)
	}
	return nil
}
