package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/order"
	"github.com/campuskart/backend-store/internal/store"
)

type stubQuerier struct {
	orders       map[[16]byte]store.Order
	byGatewayID  map[string][16]byte
	paidCalls    int
	gatewayCalls int
	events       []store.InsertDomainEventParams
}

func newStubQuerier(orders ...store.Order) *stubQuerier {
	q := &stubQuerier{orders: map[[16]byte]store.Order{}, byGatewayID: map[string][16]byte{}}
	for _, o := range orders {
		q.orders[o.ID.Bytes] = o
		if o.GatewayOrderID.Valid {
			q.byGatewayID[o.GatewayOrderID.String] = o.ID.Bytes
		}
	}
	return q
}

func (q *stubQuerier) GetOrderForUser(_ context.Context, arg store.GetOrderForUserParams) (store.Order, error) {
	o, ok := q.orders[arg.ID.Bytes]
	if !ok || !store.UUIDEqual(o.UserID, arg.UserID) {
		return store.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (q *stubQuerier) GetOrderByGatewayOrderID(_ context.Context, gatewayOrderID string) (store.Order, error) {
	id, ok := q.byGatewayID[gatewayOrderID]
	if !ok {
		return store.Order{}, pgx.ErrNoRows
	}
	return q.orders[id], nil
}

func (q *stubQuerier) SetOrderGateway(_ context.Context, arg store.SetOrderGatewayParams) error {
	q.gatewayCalls++
	o := q.orders[arg.ID.Bytes]
	o.GatewayOrderID = arg.GatewayOrderID
	o.GatewayPaymentID = arg.GatewayPaymentID
	o.GatewayStatus = arg.GatewayStatus
	q.orders[arg.ID.Bytes] = o
	if arg.GatewayOrderID.Valid {
		q.byGatewayID[arg.GatewayOrderID.String] = arg.ID.Bytes
	}
	return nil
}

func (q *stubQuerier) SetOrderPaid(_ context.Context, arg store.SetOrderPaidParams) (store.Order, error) {
	q.paidCalls++
	o := q.orders[arg.ID.Bytes]
	o.IsPaid = arg.IsPaid
	o.PaidAt = arg.PaidAt
	q.orders[arg.ID.Bytes] = o
	return o, nil
}

func (q *stubQuerier) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) error {
	q.events = append(q.events, arg)
	return nil
}

type stubProvider struct {
	created   int
	orderID   string
	createErr error
}

func (p *stubProvider) Name() string { return "razorpay" }

func (p *stubProvider) CreateOrder(_ context.Context, amount int64, currency, _ string) (GatewayOrder, error) {
	if p.createErr != nil {
		return GatewayOrder{}, p.createErr
	}
	p.created++
	return GatewayOrder{ID: p.orderID, Amount: amount, Currency: currency, Status: "created"}, nil
}

func (p *stubProvider) VerifyCallback(_, _, signature string) error {
	if signature != "good" {
		return ErrBadSignature
	}
	return nil
}

func (p *stubProvider) VerifyWebhook(_ []byte, signature string) error {
	if signature != "good" {
		return ErrBadSignature
	}
	return nil
}

func pendingOrder(userID pgtype.UUID, method string) store.Order {
	return store.Order{
		ID:            store.NewUUID(),
		UserID:        userID,
		Status:        order.StatusPending,
		PaymentMethod: method,
		TotalPrice:    189000,
	}
}

func TestCreateIntentOpensGatewayOrder(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{orderID: "order_gw1"}}

	in, err := svc.CreateIntent(context.Background(), user, store.UUIDString(o.ID))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if in.GatewayOrderID != "order_gw1" || in.Amount != 189000 || in.Currency != "INR" {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if q.gatewayCalls != 1 {
		t.Fatalf("gateway reference not stored, calls=%d", q.gatewayCalls)
	}
}

func TestCreateIntentReusesExistingGatewayOrder(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	q := newStubQuerier(o)
	p := &stubProvider{orderID: "order_gw2"}
	svc := &Service{Q: q, Provider: p}

	in, err := svc.CreateIntent(context.Background(), user, store.UUIDString(o.ID))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if in.GatewayOrderID != "order_gw1" {
		t.Fatalf("expected reuse of order_gw1, got %s", in.GatewayOrderID)
	}
	if p.created != 0 {
		t.Fatal("gateway order created again on retry")
	}
}

func TestCreateIntentRejectsCOD(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodCOD)
	svc := &Service{Q: newStubQuerier(o), Provider: &stubProvider{}}

	_, err := svc.CreateIntent(context.Background(), user, store.UUIDString(o.ID))
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_PAYABLE" {
		t.Fatalf("expected NOT_PAYABLE, got %v", err)
	}
}

func TestCreateIntentRejectsPaidOrder(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.IsPaid = true
	svc := &Service{Q: newStubQuerier(o), Provider: &stubProvider{}}

	_, err := svc.CreateIntent(context.Background(), user, store.UUIDString(o.ID))
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "ALREADY_PAID" {
		t.Fatalf("expected ALREADY_PAID, got %v", err)
	}
}

func TestConfirmSettlesOnValidSignature(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{}, Now: func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}}

	updated, err := svc.Confirm(context.Background(), user, store.UUIDString(o.ID), "pay_1", "good")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !updated.IsPaid {
		t.Fatal("order not marked paid")
	}
	if q.paidCalls != 1 {
		t.Fatalf("paidCalls = %d", q.paidCalls)
	}
}

func TestConfirmRejectsBadSignature(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{}}

	_, err := svc.Confirm(context.Background(), user, store.UUIDString(o.ID), "pay_1", "forged")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "BAD_SIGNATURE" {
		t.Fatalf("expected BAD_SIGNATURE, got %v", err)
	}
	if q.paidCalls != 0 {
		t.Fatal("order settled despite bad signature")
	}
}

func webhookBody(event, gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentID, gatewayOrderID,
	))
}

func TestHandleWebhookSettlesCapturedPayment(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{}}

	if err := svc.HandleWebhook(context.Background(), webhookBody("payment.captured", "order_gw1", "pay_1"), "good"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if q.paidCalls != 1 {
		t.Fatalf("paidCalls = %d", q.paidCalls)
	}
}

func TestHandleWebhookReplayIsNoOp(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	o.IsPaid = true
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{}}

	if err := svc.HandleWebhook(context.Background(), webhookBody("payment.captured", "order_gw1", "pay_1"), "good"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if q.paidCalls != 0 {
		t.Fatal("replay settled the order again")
	}
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	user := store.NewUUID()
	o := pendingOrder(user, MethodRazorpay)
	o.GatewayOrderID = pgtype.Text{String: "order_gw1", Valid: true}
	q := newStubQuerier(o)
	svc := &Service{Q: q, Provider: &stubProvider{}}

	if err := svc.HandleWebhook(context.Background(), webhookBody("payment.failed", "order_gw1", "pay_1"), "good"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if q.paidCalls != 0 {
		t.Fatal("non-captured event settled the order")
	}
}
