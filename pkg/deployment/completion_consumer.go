package deployment

import (
	"context"

	"github.com/forgeops/orchestrator/pkg/eventbus"
	"github.com/forgeops/orchestrator/pkg/log"
)

// CompletionConsumer subscribes to the worker agent's task.<status>
// events and drives them into Service.HandleTaskCompletion, closing the
// loop between task execution (which the worker agent owns) and
// deployment orchestration (which decides what a task's outcome means
// for the deployment it belongs to).
type CompletionConsumer struct {
	svc    *Service
	broker *eventbus.Broker
	sub    eventbus.Subscriber
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCompletionConsumer builds a consumer for svc against broker. Call
// Start to subscribe and begin processing.
func NewCompletionConsumer(svc *Service, broker *eventbus.Broker) *CompletionConsumer {
	return &CompletionConsumer{
		svc:    svc,
		broker: broker,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start subscribes to the broker and begins processing task completion
// events in a background goroutine.
func (c *CompletionConsumer) Start() {
	c.sub = c.broker.Subscribe()
	go c.run()
}

// Stop signals the processing goroutine to exit, blocks until it has
// returned, then unsubscribes from the broker. Events still buffered in
// the subscription at that point are not processed.
func (c *CompletionConsumer) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.broker.Unsubscribe(c.sub)
}

func (c *CompletionConsumer) run() {
	defer close(c.doneCh)
	for {
		select {
		case event, ok := <-c.sub:
			if !ok {
				return
			}
			c.handle(event)
		case <-c.stopCh:
			return
		}
	}
}

func (c *CompletionConsumer) handle(event *eventbus.Event) {
	switch event.EventType {
	case "task.succeeded", "task.failed", "task.timed_out", "task.cancelled":
	default:
		return
	}

	taskID, _ := event.Payload["task_id"].(string)
	if taskID == "" {
		return
	}
	status, _ := event.Payload["status"].(string)
	success := status == "succeeded"

	if err := c.svc.HandleTaskCompletion(context.Background(), taskID, success, nil, status); err != nil {
		log.WithComponent("deployment").Error().
			Str("task_id", taskID).
			Str("status", status).
			Err(err).
			Msg("failed to handle task completion event")
	}
}
