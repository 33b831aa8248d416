package queue

import (
	"context"
	"errors"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// Publisher publishes notification messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg NotificationMessage) error
	Close() error
}

// EventPublisher publishes lifecycle events to the notification events exchange.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg NotificationMessage) error

// RawHandler handles an inbound business event body. Returning an error wrapping
// ErrMalformedMessage dead-letters the delivery instead of requeueing it.
type RawHandler func(ctx context.Context, routingKey string, body []byte) error

// Consumer consumes notification messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	ConsumeRaw(ctx context.Context, queue string, handler RawHandler) error
	Close() error
}

var ErrMalformedMessage = errors.New("malformed message")

const (
	// DispatchQueue carries notification ids ready for a dispatch attempt.
	DispatchQueue = "notifications.dispatch"
	// EventsExchange is the topic exchange lifecycle events are published to.
	EventsExchange = "notifications.exchange"

	dlxExchangeName = "notifications.dlx"
	ingestDLQ       = "dlq.ingest"
	ingestDLQKey    = "ingest"

	// queueMaxPriority is the RabbitMQ x-max-priority value for the dispatch queue.
	queueMaxPriority int32 = 4
)

// Inbound business event queues translated into dispatch requests.
const (
	UserCreatedQueue      = "user.created.queue"
	PaymentCompletedQueue = "payment.completed.queue"
	PaymentOverdueQueue   = "payment.overdue.queue"
)

// Binding ties an inbound queue to the exchange of the service that owns the event.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

var inboundBindings = []Binding{
	{Queue: UserCreatedQueue, Exchange: "users.exchange", RoutingKey: "user.created"},
	{Queue: PaymentCompletedQueue, Exchange: "payments.exchange", RoutingKey: "payment.completed"},
	{Queue: PaymentOverdueQueue, Exchange: "payments.exchange", RoutingKey: "payment.overdue"},
}

// InboundBindings returns the inbound queue bindings declared with the topology.
func InboundBindings() []Binding {
	out := make([]Binding, len(inboundBindings))
	copy(out, inboundBindings)
	return out
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.notifications.dispatch.
func DLQName(queue string) string {
	return "dlq." + queue
}

// PriorityValue maps domain priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	return priority.Rank()
}
