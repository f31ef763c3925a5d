package eventbus

import (
	"context"

	"github.com/google/uuid"
)

// Publisher is the port the deployment and drift services publish
// domain events through.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
	PublishBatch(ctx context.Context, events []PublishedEvent) error
}

// PublishedEvent pairs an event type with its payload for PublishBatch.
type PublishedEvent struct {
	EventType string
	Payload   map[string]interface{}
}

// InMemoryPublisher is the default Publisher: it wraps a Broker and
// stamps every event with a fresh correlation id drawn from the
// payload's deployment_id (or task_id) when present, falling back to a
// random one.
type InMemoryPublisher struct {
	broker *Broker
}

// NewInMemoryPublisher wraps an already-started Broker.
func NewInMemoryPublisher(broker *Broker) *InMemoryPublisher {
	return &InMemoryPublisher{broker: broker}
}

// Publish implements Publisher.
func (p *InMemoryPublisher) Publish(_ context.Context, eventType string, payload map[string]interface{}) error {
	p.broker.Publish(&Event{
		EventType:     eventType,
		CorrelationID: correlationIDFor(payload),
		Payload:       payload,
	})
	return nil
}

// PublishBatch implements Publisher.
func (p *InMemoryPublisher) PublishBatch(ctx context.Context, events []PublishedEvent) error {
	for _, e := range events {
		if err := p.Publish(ctx, e.EventType, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

func correlationIDFor(payload map[string]interface{}) string {
	for _, key := range []string{"deployment_id", "task_id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return uuid.New().String()
}
