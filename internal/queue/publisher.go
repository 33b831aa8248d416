package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vallegrande/notification-engine/internal/domain"
)

var (
	_ Publisher      = (*RabbitMQPublisher)(nil)
	_ EventPublisher = (*RabbitMQPublisher)(nil)
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg NotificationMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid notification message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     msg.NotificationID,
		CorrelationId: msg.CorrelationID,
		Priority:      PriorityValue(msg.Priority),
		Body:          payload,
	}

	if err := p.publish(ctx, "", queue, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}
	return nil
}

// PublishEvent sends a lifecycle event to the events exchange using the event type as routing key.
func (p *RabbitMQPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	publishing, err := eventPublishing(event)
	if err != nil {
		return err
	}

	if err := p.publish(ctx, EventsExchange, event.Type.String(), publishing); err != nil {
		return fmt.Errorf("failed to publish event %q: %w", event.Type, err)
	}
	return nil
}

func (p *RabbitMQPublisher) publish(ctx context.Context, exchange string, key string, publishing amqp.Publishing) error {
	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, exchange, key, false, false, publishing)
}

func eventPublishing(event domain.Event) (amqp.Publishing, error) {
	if event.Type == "" || event.NotificationID == "" {
		return amqp.Publishing{}, fmt.Errorf("event type and notification id are required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     event.OccurredAt,
		MessageId:     event.ID,
		CorrelationId: event.CorrelationID,
		Type:          event.Type.String(),
		Body:          payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
