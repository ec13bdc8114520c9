package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/store"
)

// EmailSender delivers a single message. Implementations decide transport.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes mail to the log instead of an SMTP relay. Used in
// development and as the fallback when no relay is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (log transport)")
	return nil
}

// UserGetter resolves the recipient address for a task.
type UserGetter interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
}

// EmailWorker handles order email tasks on the worker process.
type EmailWorker struct {
	Users UserGetter
	Mail  EmailSender
	From  string
}

// Register wires the worker's handlers into the asynq mux.
func (w EmailWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderEmail, w.HandleOrderEmail)
}

// HandleOrderEmail sends the email for one task. A missing user drops the
// task instead of retrying; transient sender failures bubble up so asynq
// retries with backoff.
func (w EmailWorker) HandleOrderEmail(ctx context.Context, t *asynq.Task) error {
	if w.Mail == nil {
		return nil
	}
	var p OrderEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode task: %w: %w", err, asynq.SkipRetry)
	}
	id := store.ToUUID(p.UserID)
	if !id.Valid {
		return fmt.Errorf("notify: task without user: %w", asynq.SkipRetry)
	}
	u, err := w.Users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("notify: user %s not found: %w", p.UserID, asynq.SkipRetry)
		}
		return err
	}
	subject, body := renderEmail(p)
	return w.Mail.Send(ctx, u.Email, subject, body)
}

func renderEmail(p OrderEmailPayload) (subject, body string) {
	switch p.Topic {
	case events.TopicOrderCreated:
		subject = "Order placed"
		body = fmt.Sprintf("Your order %s has been placed.", p.OrderID)
	case events.TopicOrderPaid:
		subject = "Payment received"
		body = fmt.Sprintf("Payment for order %s was received. We are getting it ready.", p.OrderID)
	case events.TopicOrderCancelled:
		subject = "Order cancelled"
		body = fmt.Sprintf("Your order %s has been cancelled.", p.OrderID)
	default:
		subject = "Order update"
		body = fmt.Sprintf("There is an update on your order %s.", p.OrderID)
	}
	var extra struct {
		Total int64  `json:"total"`
		To    string `json:"to"`
	}
	if len(p.Event) > 0 {
		_ = json.Unmarshal(p.Event, &extra)
	}
	if extra.Total > 0 {
		body += fmt.Sprintf("\nOrder total: %.2f", float64(extra.Total)/100)
	}
	return subject, body
}
