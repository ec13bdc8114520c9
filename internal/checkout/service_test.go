package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/store"
)

type fakeQueries struct {
	cart    store.Cart
	cartErr error
	items   []store.CartItem
	stock   map[[16]byte]int32
	coupon  *store.Coupon

	orders      []store.Order
	orderItems  []store.CreateOrderItemParams
	redemptions int
	usageBumps  int
	closedCarts int
	events      []store.InsertDomainEventParams
}

func (f *fakeQueries) GetActiveCartByUser(context.Context, pgtype.UUID) (store.Cart, error) {
	if f.cartErr != nil {
		return store.Cart{}, f.cartErr
	}
	return f.cart, nil
}

func (f *fakeQueries) ListCartItems(context.Context, pgtype.UUID) ([]store.CartItem, error) {
	return f.items, nil
}

func (f *fakeQueries) AdjustProductStock(_ context.Context, id pgtype.UUID, delta int32) error {
	have := f.stock[id.Bytes]
	if have+delta < 0 {
		return store.ErrInsufficientStock
	}
	f.stock[id.Bytes] = have + delta
	return nil
}

func (f *fakeQueries) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	o := store.Order{
		ID:              store.NewUUID(),
		UserID:          arg.UserID,
		Status:          arg.Status,
		PaymentMethod:   arg.PaymentMethod,
		ItemsPrice:      arg.ItemsPrice,
		DiscountPrice:   arg.DiscountPrice,
		TaxPrice:        arg.TaxPrice,
		ShippingPrice:   arg.ShippingPrice,
		TotalPrice:      arg.TotalPrice,
		CouponCode:      arg.CouponCode,
		ShippingAddress: arg.ShippingAddress,
	}
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeQueries) CreateOrderItem(_ context.Context, arg store.CreateOrderItemParams) error {
	f.orderItems = append(f.orderItems, arg)
	return nil
}

func (f *fakeQueries) CloseCart(context.Context, pgtype.UUID) error {
	f.closedCarts++
	return nil
}

func (f *fakeQueries) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) error {
	f.events = append(f.events, arg)
	return nil
}

func (f *fakeQueries) GetCouponByCode(context.Context, string) (store.Coupon, error) {
	if f.coupon == nil {
		return store.Coupon{}, pgx.ErrNoRows
	}
	return *f.coupon, nil
}

func (f *fakeQueries) CountRedemptionsByUser(context.Context, store.CountRedemptionsByUserParams) (int64, error) {
	return 0, nil
}

func (f *fakeQueries) CountDeliveredOrdersByUser(context.Context, pgtype.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeQueries) InsertRedemption(context.Context, store.InsertRedemptionParams) (bool, error) {
	f.redemptions++
	return true, nil
}

func (f *fakeQueries) IncrementCouponUsage(context.Context, pgtype.UUID) error {
	f.usageBumps++
	return nil
}

type fakeRunner struct {
	q         *fakeQueries
	began     bool
	committed bool
}

func (r *fakeRunner) InTx(_ context.Context, fn func(q Queries) error) error {
	r.began = true
	if err := fn(r.q); err != nil {
		return err
	}
	r.committed = true
	return nil
}

func validAddress() Address {
	return Address{
		FullName:   "Priya Sharma",
		Phone:      "9876543210",
		Line1:      "Hostel B, Room 214",
		City:       "Pilani",
		PostalCode: "333031",
	}
}

func cartWith(items ...store.CartItem) (store.Cart, []store.CartItem, map[[16]byte]int32) {
	c := store.Cart{ID: store.NewUUID(), Status: "ACTIVE"}
	stock := map[[16]byte]int32{}
	for i := range items {
		items[i].CartID = c.ID
		if !items[i].ProductID.Valid {
			items[i].ProductID = store.NewUUID()
		}
		stock[items[i].ProductID.Bytes] = 100
	}
	return c, items, stock
}

func TestCreateFailsOnEmptyCart(t *testing.T) {
	q := &fakeQueries{cartErr: pgx.ErrNoRows, stock: map[[16]byte]int32{}}
	runner := &fakeRunner{q: q}
	svc := &Service{Tx: runner, Events: &events.Bus{}}

	_, err := svc.Create(context.Background(), store.NewUUID(), coupon.Buyer{}, Input{
		PaymentMethod: "COD",
		Address:       validAddress(),
	})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
	if runner.committed {
		t.Fatal("transaction must not commit for an empty cart")
	}
	if len(q.orders) != 0 || len(q.events) != 0 {
		t.Fatal("nothing may be persisted for an empty cart")
	}
}

func TestCreateFailsOnIncompleteAddress(t *testing.T) {
	runner := &fakeRunner{q: &fakeQueries{}}
	svc := &Service{Tx: runner}

	_, err := svc.Create(context.Background(), store.NewUUID(), coupon.Buyer{}, Input{
		PaymentMethod: "COD",
		Address:       Address{FullName: "No Address"},
	})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
	if runner.began {
		t.Fatal("address validation must happen before the transaction starts")
	}
}

func TestCreateComposesTotalsAndRedeems(t *testing.T) {
	cart, items, stock := cartWith(store.CartItem{
		ID:             store.NewUUID(),
		Title:          "CS50 Hoodie",
		Qty:            2,
		UnitPrice:      1000,
		ReferencePrice: 1500,
		Subtotal:       2000,
	})
	cart.AppliedCouponCode = pgtype.Text{String: "WELCOME10", Valid: true}
	q := &fakeQueries{
		cart:  cart,
		items: items,
		stock: stock,
		coupon: &store.Coupon{
			ID:     store.NewUUID(),
			Code:   "WELCOME10",
			Kind:   store.CouponKindPercentage,
			Value:  10,
			Active: true,
		},
	}
	runner := &fakeRunner{q: q}
	svc := &Service{
		Tx:                runner,
		Coupons:           &coupon.Service{Q: q},
		Events:            &events.Bus{},
		TaxBps:            500,
		ShippingFee:       4900,
		FreeShippingAbove: 1500,
	}

	userID := store.NewUUID()
	out, err := svc.Create(context.Background(), userID, coupon.Buyer{}, Input{
		PaymentMethod: "razorpay",
		Address:       validAddress(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !runner.committed {
		t.Fatal("expected commit")
	}
	// subtotal 2000, 10% coupon 200, 5% tax on 1800 = 90, free shipping over 1500
	if out.ItemsPrice != 2000 || out.DiscountPrice != 200 || out.TaxPrice != 90 || out.ShippingPrice != 0 || out.TotalPrice != 1890 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if out.Status != "PENDING" || out.PaymentMethod != "RAZORPAY" {
		t.Fatalf("unexpected order state: %+v", out)
	}
	if len(q.orderItems) != 1 || q.orderItems[0].Name != "CS50 Hoodie" || q.orderItems[0].Qty != 2 {
		t.Fatalf("unexpected item snapshots: %+v", q.orderItems)
	}
	if q.redemptions != 1 || q.usageBumps != 1 {
		t.Fatalf("expected one redemption, got insert=%d bump=%d", q.redemptions, q.usageBumps)
	}
	if q.closedCarts != 1 {
		t.Fatal("cart must be closed")
	}
	if len(q.events) != 1 || q.events[0].Topic != events.TopicOrderCreated {
		t.Fatalf("expected order.created event, got %+v", q.events)
	}
	for _, it := range items {
		if q.stock[it.ProductID.Bytes] != 98 {
			t.Fatalf("stock not decremented, have %d", q.stock[it.ProductID.Bytes])
		}
	}
}

func TestCreateRejectsStockShortage(t *testing.T) {
	cart, items, stock := cartWith(store.CartItem{
		ID: store.NewUUID(), Title: "Lab Kit", Qty: 2, UnitPrice: 500, ReferencePrice: 500, Subtotal: 1000,
	})
	stock[items[0].ProductID.Bytes] = 1
	q := &fakeQueries{cart: cart, items: items, stock: stock}
	runner := &fakeRunner{q: q}
	svc := &Service{Tx: runner, Events: &events.Bus{}}

	_, err := svc.Create(context.Background(), store.NewUUID(), coupon.Buyer{}, Input{
		PaymentMethod: "COD",
		Address:       validAddress(),
	})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "OUT_OF_STOCK" {
		t.Fatalf("want OUT_OF_STOCK, got %v", err)
	}
	if runner.committed {
		t.Fatal("transaction must roll back on stock shortage")
	}
}

func TestCreatePropagatesCouponFailure(t *testing.T) {
	cart, items, stock := cartWith(store.CartItem{
		ID: store.NewUUID(), Title: "Mug", Qty: 1, UnitPrice: 300, ReferencePrice: 300, Subtotal: 300,
	})
	cart.AppliedCouponCode = pgtype.Text{String: "BYGONE", Valid: true}
	past := time.Now().Add(-24 * time.Hour)
	q := &fakeQueries{
		cart:  cart,
		items: items,
		stock: stock,
		coupon: &store.Coupon{
			ID:      store.NewUUID(),
			Code:    "BYGONE",
			Kind:    store.CouponKindFixed,
			Value:   100,
			Active:  true,
			ValidTo: pgtype.Timestamptz{Time: past, Valid: true},
		},
	}
	runner := &fakeRunner{q: q}
	svc := &Service{Tx: runner, Coupons: &coupon.Service{Q: q}, Events: &events.Bus{}}

	_, err := svc.Create(context.Background(), store.NewUUID(), coupon.Buyer{}, Input{
		PaymentMethod: "COD",
		Address:       validAddress(),
	})
	if !errors.Is(err, coupon.ErrExpired) {
		t.Fatalf("want coupon.ErrExpired, got %v", err)
	}
	if runner.committed {
		t.Fatal("transaction must roll back when the coupon fails validation")
	}
}
