package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// InsertDomainEventParams are the inputs for InsertDomainEvent.
type InsertDomainEventParams struct {
	Topic   string
	OrderID pgtype.UUID
	UserID  pgtype.UUID
	Payload []byte
}

// InsertDomainEvent appends one event to the audit log. Events are written in
// the same transaction as the state change they describe.
func (s *Store) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO domain_events (topic, order_id, user_id, payload)
		VALUES ($1, $2, $3, $4)`,
		arg.Topic, arg.OrderID, arg.UserID, arg.Payload)
	return err
}

// ListDomainEventsByOrder returns the event trail for one order, oldest first.
func (s *Store) ListDomainEventsByOrder(ctx context.Context, orderID pgtype.UUID) ([]DomainEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, topic, order_id, user_id, payload, created_at
		FROM domain_events WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DomainEvent
	for rows.Next() {
		var ev DomainEvent
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.OrderID, &ev.UserID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
