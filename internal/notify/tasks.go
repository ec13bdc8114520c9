package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/store"
)

// TypeOrderEmail is the asynq task type for transactional order emails.
const TypeOrderEmail = "notify:order_email"

// OrderEmailPayload is the task body carried from the API process to the worker.
type OrderEmailPayload struct {
	Topic   string          `json:"topic"`
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Event   json.RawMessage `json:"event,omitempty"`
}

// NewOrderEmailTask packs a domain event into an asynq task.
func NewOrderEmailTask(ev events.Event) (*asynq.Task, error) {
	body, err := json.Marshal(OrderEmailPayload{
		Topic:   ev.Topic,
		OrderID: store.UUIDString(ev.OrderID),
		UserID:  store.UUIDString(ev.UserID),
		Event:   ev.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: marshal task: %w", err)
	}
	return asynq.NewTask(TypeOrderEmail, body), nil
}

// Enqueuer publishes email tasks for emitted events. It implements the
// events notifier interface so the bus can fan out to it after commit.
type Enqueuer struct {
	Client *asynq.Client
	Topics map[string]bool
}

// Notify enqueues an email task for the event. Unknown or disabled topics
// are skipped without error.
func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e.Topics != nil && !e.Topics[ev.Topic] {
		return nil
	}
	if e.Client == nil {
		return nil
	}
	task, err := NewOrderEmailTask(ev)
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Queue("notify"))
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", ev.Topic, err)
	}
	return nil
}

// EmailTopics lists the topics that produce customer emails.
func EmailTopics() map[string]bool {
	return map[string]bool{
		events.TopicOrderCreated:   true,
		events.TopicOrderPaid:      true,
		events.TopicOrderCancelled: true,
	}
}
