// Package domain holds the deployment-orchestrator aggregates: the
// deployment and task state machines, cloud-resource value objects, and
// drift-report model. Nothing in this package performs I/O.
package domain

import (
	"time"

	"github.com/google/uuid"
)

func generateID() string {
	return uuid.New().String()
}

// Entity carries the fields common to every persisted aggregate:
// identity, audit timestamps, and an optimistic-concurrency version.
type Entity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

func newEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		ID:        generateID(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch bumps the updated timestamp and increments the version. Mutating
// aggregate methods call it once per state change, so a method that makes
// more than one transition (Task.Retry, for one) calls it more than once.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
	e.Version++
}

// DomainEvent is the envelope every published event carries, regardless
// of its payload shape.
type DomainEvent struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	OccurredAt    time.Time              `json:"occurred_at"`
	CorrelationID string                 `json:"correlation_id"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

func newEvent(eventType, correlationID string, payload map[string]interface{}) DomainEvent {
	return DomainEvent{
		EventID:       generateID(),
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// AggregateRoot buffers domain events raised by aggregate methods. The
// service layer collects and publishes them only after the corresponding
// persistence write has committed, so a rolled-back write never produces
// a ghost event.
type AggregateRoot struct {
	Entity
	events []DomainEvent
}

// AddEvent registers a pending domain event.
func (a *AggregateRoot) AddEvent(e DomainEvent) {
	a.events = append(a.events, e)
}

// CollectEvents returns the pending events and clears the buffer.
func (a *AggregateRoot) CollectEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// PendingEvents returns the buffered events without clearing them.
func (a *AggregateRoot) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(a.events))
	copy(out, a.events)
	return out
}
