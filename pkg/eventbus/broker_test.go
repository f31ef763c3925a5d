package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{EventType: "deployment.created", Payload: map[string]interface{}{"deployment_id": "d-1"}})

	select {
	case event := <-sub:
		assert.Equal(t, "deployment.created", event.EventType)
		assert.NotEmpty(t, event.EventID)
		assert.False(t, event.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	subA := broker.Subscribe()
	subB := broker.Subscribe()
	defer broker.Unsubscribe(subA)
	defer broker.Unsubscribe(subB)

	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{EventType: "drift.detected"})

	for _, sub := range []Subscriber{subA, subB} {
		select {
		case event := <-sub:
			assert.Equal(t, "drift.detected", event.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open, "unsubscribed channel should be closed")
}

func TestInMemoryPublisher_CorrelationIDFromPayload(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	publisher := NewInMemoryPublisher(broker)
	err := publisher.Publish(context.Background(), "task.completed", map[string]interface{}{"task_id": "t-42"})
	assert.NoError(t, err)

	select {
	case event := <-sub:
		assert.Equal(t, "t-42", event.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestInMemoryPublisher_PublishBatch(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	publisher := NewInMemoryPublisher(broker)
	err := publisher.PublishBatch(context.Background(), []PublishedEvent{
		{EventType: "task.queued", Payload: map[string]interface{}{"task_id": "t-1"}},
		{EventType: "task.queued", Payload: map[string]interface{}{"task_id": "t-2"}},
	})
	assert.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case event := <-sub:
			seen[event.CorrelationID] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.True(t, seen["t-1"])
	assert.True(t, seen["t-2"])
}
