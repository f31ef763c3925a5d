// Package eventbus fans domain events out to in-process subscribers and
// exposes the Publisher port the deployment and drift services
// publish through.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is the wire shape of a published domain event: the bit-exact
// envelope fields plus a free-form payload matching the event type.
type Event struct {
	EventID       string
	EventType     string
	OccurredAt    time.Time
	CorrelationID string
	Payload       map[string]interface{}
}

// Subscriber is a channel that receives published events.
type Subscriber chan *Event

// Broker manages event subscriptions and non-blocking fan-out
// distribution, buffering events internally so a slow publisher never
// blocks on a slow subscriber.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker constructs a broker with a 100-event internal buffer.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop in a goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts the distribution loop. Publish after Stop is a no-op.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription with a 50-event buffer.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands an event to the distribution loop. EventID and
// OccurredAt are filled in if the caller left them zero.
func (b *Broker) Publish(event *Event) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full, drop rather than block the broker
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
