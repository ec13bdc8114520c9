package events

import (
	"context"
	"errors"
	"testing"

	"github.com/campuskart/backend-store/internal/store"
)

type captureStore struct {
	inserted []store.InsertDomainEventParams
	err      error
}

func (c *captureStore) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) error {
	if c.err != nil {
		return c.err
	}
	c.inserted = append(c.inserted, arg)
	return nil
}

type captureNotifier struct {
	events []Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	es := &captureStore{}
	n := &captureNotifier{}
	bus := &Bus{Store: es, Notifiers: []Notifier{n}}

	orderID := store.NewUUID()
	userID := store.NewUUID()
	err := bus.Emit(context.Background(), nil, TopicOrderCreated, orderID, userID, map[string]any{"total": 1200})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(es.inserted) != 1 || es.inserted[0].Topic != TopicOrderCreated {
		t.Fatalf("unexpected persisted events: %+v", es.inserted)
	}
	if len(n.events) != 1 || string(n.events[0].Payload) != `{"total":1200}` {
		t.Fatalf("unexpected notified events: %+v", n.events)
	}
}

func TestEmitNotifierFailureKeepsEvent(t *testing.T) {
	es := &captureStore{}
	n := &captureNotifier{err: errors.New("queue down")}
	bus := &Bus{Store: es, Notifiers: []Notifier{n}}

	err := bus.Emit(context.Background(), nil, TopicOrderPaid, store.NewUUID(), store.NewUUID(), nil)
	if err == nil {
		t.Fatal("expected joined notifier error")
	}
	if len(es.inserted) != 1 {
		t.Fatalf("event must persist despite notifier failure, got %d", len(es.inserted))
	}
}

func TestEmitUsesProvidedStore(t *testing.T) {
	base := &captureStore{}
	txScoped := &captureStore{}
	bus := &Bus{Store: base}

	if err := bus.Emit(context.Background(), txScoped, TopicOrderCancelled, store.NewUUID(), store.NewUUID(), nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(base.inserted) != 0 || len(txScoped.inserted) != 1 {
		t.Fatalf("expected the provided store to receive the write: base=%d tx=%d", len(base.inserted), len(txScoped.inserted))
	}
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := &Bus{Store: &captureStore{}}
	err := bus.Emit(context.Background(), nil, TopicOrderCreated, store.NewUUID(), store.NewUUID(), []byte("not json"))
	if err == nil {
		t.Fatal("expected payload validation error")
	}
}
