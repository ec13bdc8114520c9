package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/obs"
	"github.com/campuskart/backend-store/internal/order"
	"github.com/campuskart/backend-store/internal/store"
)

// Querier captures the database methods the payment service needs.
type Querier interface {
	GetOrderForUser(ctx context.Context, arg store.GetOrderForUserParams) (store.Order, error)
	GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (store.Order, error)
	SetOrderGateway(ctx context.Context, arg store.SetOrderGatewayParams) error
	SetOrderPaid(ctx context.Context, arg store.SetOrderPaidParams) (store.Order, error)
	InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) error
}

// Intent is what the storefront needs to open the gateway's checkout.
type Intent struct {
	Provider       string `json:"provider"`
	KeyID          string `json:"keyId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// Service drives the payment boundary: intents for online orders, signature
// verification on the way back, and manual COD reconciliation stays with the
// order admin endpoints.
type Service struct {
	Q        Querier
	Provider Provider
	Events   *events.Bus
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) currency() string {
	if s == nil || s.Currency == "" {
		return "INR"
	}
	return s.Currency
}

// CreateIntent opens a gateway order for a pending, unpaid online order.
// Calling it again reuses the gateway order already attached.
func (s *Service) CreateIntent(ctx context.Context, userID pgtype.UUID, orderID string) (Intent, error) {
	if s == nil || s.Q == nil || s.Provider == nil {
		return Intent{}, errors.New("payment service not configured")
	}
	o, err := s.loadForUser(ctx, userID, orderID)
	if err != nil {
		return Intent{}, err
	}
	if o.PaymentMethod != MethodRazorpay {
		return Intent{}, common.BadRequest("NOT_PAYABLE", "order is not an online payment order")
	}
	if o.IsPaid {
		return Intent{}, common.Conflict("ALREADY_PAID", "order is already paid")
	}
	if o.Status != order.StatusPending {
		return Intent{}, common.Conflict("NOT_PAYABLE", "order is no longer payable")
	}

	keyID := s.keyID()
	if o.GatewayOrderID.Valid && o.GatewayOrderID.String != "" {
		return Intent{
			Provider:       s.Provider.Name(),
			KeyID:          keyID,
			GatewayOrderID: o.GatewayOrderID.String,
			Amount:         o.TotalPrice,
			Currency:       s.currency(),
		}, nil
	}

	gw, err := s.Provider.CreateOrder(ctx, o.TotalPrice, s.currency(), store.UUIDString(o.ID))
	if err != nil {
		s.countIntent("error")
		return Intent{}, err
	}
	if err := s.Q.SetOrderGateway(ctx, store.SetOrderGatewayParams{
		ID:             o.ID,
		GatewayOrderID: pgtype.Text{String: gw.ID, Valid: true},
		GatewayStatus:  pgtype.Text{String: gw.Status, Valid: gw.Status != ""},
	}); err != nil {
		return Intent{}, err
	}
	s.countIntent("ok")
	return Intent{
		Provider:       s.Provider.Name(),
		KeyID:          keyID,
		GatewayOrderID: gw.ID,
		Amount:         o.TotalPrice,
		Currency:       s.currency(),
	}, nil
}

// Confirm settles an order from the browser callback after signature
// verification. Already-paid orders succeed without a second settlement.
func (s *Service) Confirm(ctx context.Context, userID pgtype.UUID, orderID, gatewayPaymentID, signature string) (store.Order, error) {
	if s == nil || s.Q == nil || s.Provider == nil {
		return store.Order{}, errors.New("payment service not configured")
	}
	o, err := s.loadForUser(ctx, userID, orderID)
	if err != nil {
		return store.Order{}, err
	}
	if !o.GatewayOrderID.Valid || o.GatewayOrderID.String == "" {
		return store.Order{}, common.BadRequest("NOT_PAYABLE", "no payment intent exists for this order")
	}
	if err := s.Provider.VerifyCallback(o.GatewayOrderID.String, gatewayPaymentID, signature); err != nil {
		s.countIntent("bad_signature")
		return store.Order{}, common.NewAppError("BAD_SIGNATURE", "payment signature verification failed", 400, err)
	}
	if o.IsPaid {
		return o, nil
	}
	return s.settle(ctx, o, gatewayPaymentID, "captured", "callback")
}

// HandleWebhook settles orders from gateway webhooks. The raw body must
// already carry a valid signature; replays of settled orders are no-ops.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s == nil || s.Q == nil || s.Provider == nil {
		return errors.New("payment service not configured")
	}
	if err := s.Provider.VerifyWebhook(body, signature); err != nil {
		s.countWebhook("bad_signature")
		return common.NewAppError("BAD_SIGNATURE", "webhook signature verification failed", 400, err)
	}
	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.countWebhook("bad_payload")
		return common.BadRequest("BAD_REQUEST", "malformed webhook payload")
	}
	if payload.Event != "payment.captured" {
		s.countWebhook("ignored")
		return nil
	}
	entity := payload.Payload.Payment.Entity
	o, err := s.Q.GetOrderByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.countWebhook("unknown_order")
			return common.NotFound("no order for gateway reference")
		}
		return err
	}
	if o.IsPaid {
		s.countWebhook("replay")
		return nil
	}
	if _, err := s.settle(ctx, o, entity.ID, entity.Status, "webhook"); err != nil {
		return err
	}
	s.countWebhook("ok")
	return nil
}

func (s *Service) settle(ctx context.Context, o store.Order, gatewayPaymentID, gatewayStatus, source string) (store.Order, error) {
	if err := s.Q.SetOrderGateway(ctx, store.SetOrderGatewayParams{
		ID:               o.ID,
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: pgtype.Text{String: gatewayPaymentID, Valid: gatewayPaymentID != ""},
		GatewayStatus:    pgtype.Text{String: gatewayStatus, Valid: gatewayStatus != ""},
	}); err != nil {
		return store.Order{}, err
	}
	updated, err := s.Q.SetOrderPaid(ctx, store.SetOrderPaidParams{
		ID:     o.ID,
		IsPaid: true,
		PaidAt: pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if err != nil {
		return store.Order{}, err
	}
	if s.Events != nil {
		_ = s.Events.Emit(ctx, eventStore{s.Q}, events.TopicOrderPaid, updated.ID, updated.UserID, map[string]any{
			"orderId": store.UUIDString(updated.ID),
			"source":  source,
		})
	}
	return updated, nil
}

func (s *Service) loadForUser(ctx context.Context, userID pgtype.UUID, orderID string) (store.Order, error) {
	id := store.ToUUID(orderID)
	if !id.Valid || !userID.Valid {
		return store.Order{}, common.BadRequest("BAD_REQUEST", "invalid order id")
	}
	o, err := s.Q.GetOrderForUser(ctx, store.GetOrderForUserParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, common.NotFound("order not found")
		}
		return store.Order{}, err
	}
	return o, nil
}

func (s *Service) keyID() string {
	if rz, ok := s.Provider.(Razorpay); ok {
		return rz.KeyID
	}
	return ""
}

func (s *Service) countIntent(result string) {
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(s.Provider.Name(), result).Inc()
	}
}

func (s *Service) countWebhook(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(s.Provider.Name(), result).Inc()
	}
}

// eventStore adapts the payment querier to the event bus store interface.
type eventStore struct {
	q Querier
}

func (e eventStore) InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) error {
	return e.q.InsertDomainEvent(ctx, arg)
}
