package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/store"
)

// EventStore defines the persistence operations required by the event bus.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) error
}

// Notifier reacts to emitted events (e.g. enqueue an email task).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Event is one emitted domain event.
type Event struct {
	Topic   string
	OrderID pgtype.UUID
	UserID  pgtype.UUID
	Payload json.RawMessage
}

// Bus persists domain events and fans them out to downstream handlers. The
// write goes through whatever EventStore it is handed, so a caller inside a
// transaction passes its tx-scoped store and the event commits atomically
// with the state change.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit records the event and dispatches it to all configured notifiers.
// Notifier failures do not roll back the persisted event.
func (b *Bus) Emit(ctx context.Context, es EventStore, topic string, orderID, userID pgtype.UUID, payload any) error {
	if b == nil {
		return errors.New("events: bus not configured")
	}
	if es == nil {
		es = b.Store
	}
	if es == nil {
		return errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	if err := es.InsertDomainEvent(ctx, store.InsertDomainEventParams{
		Topic:   topic,
		OrderID: orderID,
		UserID:  userID,
		Payload: encoded,
	}); err != nil {
		return fmt.Errorf("events: persist event: %w", err)
	}
	return b.Dispatch(ctx, Event{Topic: topic, OrderID: orderID, UserID: userID, Payload: encoded})
}

// Dispatch fans an already-persisted event out to the notifiers. Callers that
// write the event row inside a transaction dispatch after commit.
func (b *Bus) Dispatch(ctx context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return joined
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	default:
		return json.Marshal(v)
	}
}
