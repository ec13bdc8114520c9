package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

type stubQuerier struct {
	carts    map[[16]byte]store.Cart
	items    map[[16]byte]store.CartItem
	products map[[16]byte]store.Product
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		carts:    map[[16]byte]store.Cart{},
		items:    map[[16]byte]store.CartItem{},
		products: map[[16]byte]store.Product{},
	}
}

func (s *stubQuerier) GetActiveCartByUser(_ context.Context, userID pgtype.UUID) (store.Cart, error) {
	for _, c := range s.carts {
		if c.UserID.Bytes == userID.Bytes && c.Status == "ACTIVE" {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (s *stubQuerier) CreateCart(_ context.Context, arg store.CreateCartParams) (store.Cart, error) {
	c := store.Cart{ID: store.NewUUID(), UserID: arg.UserID, Status: "ACTIVE", ExpiresAt: arg.ExpiresAt}
	s.carts[c.ID.Bytes] = c
	return c, nil
}

func (s *stubQuerier) TouchCart(_ context.Context, arg store.TouchCartParams) error {
	c, ok := s.carts[arg.ID.Bytes]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = arg.ExpiresAt
	s.carts[arg.ID.Bytes] = c
	return nil
}

func (s *stubQuerier) UpdateCartCoupon(_ context.Context, arg store.UpdateCartCouponParams) error {
	c, ok := s.carts[arg.ID.Bytes]
	if !ok {
		return pgx.ErrNoRows
	}
	c.AppliedCouponCode = arg.AppliedCouponCode
	s.carts[arg.ID.Bytes] = c
	return nil
}

func (s *stubQuerier) ListCartItems(_ context.Context, cartID pgtype.UUID) ([]store.CartItem, error) {
	var out []store.CartItem
	for _, it := range s.items {
		if it.CartID.Bytes == cartID.Bytes {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *stubQuerier) FindCartItemByProduct(_ context.Context, arg store.FindCartItemParams) (store.CartItem, error) {
	for _, it := range s.items {
		if it.CartID.Bytes == arg.CartID.Bytes && it.ProductID.Bytes == arg.ProductID.Bytes {
			return it, nil
		}
	}
	return store.CartItem{}, pgx.ErrNoRows
}

func (s *stubQuerier) GetCartItemByID(_ context.Context, id pgtype.UUID) (store.CartItem, error) {
	it, ok := s.items[id.Bytes]
	if !ok {
		return store.CartItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (s *stubQuerier) CreateCartItem(_ context.Context, arg store.CreateCartItemParams) (store.CartItem, error) {
	it := store.CartItem{
		ID:             store.NewUUID(),
		CartID:         arg.CartID,
		ProductID:      arg.ProductID,
		Title:          arg.Title,
		Image:          arg.Image,
		Qty:            arg.Qty,
		UnitPrice:      arg.UnitPrice,
		ReferencePrice: arg.ReferencePrice,
		Subtotal:       arg.Subtotal,
	}
	s.items[it.ID.Bytes] = it
	return it, nil
}

func (s *stubQuerier) UpdateCartItemQty(_ context.Context, arg store.UpdateCartItemQtyParams) (store.CartItem, error) {
	it, ok := s.items[arg.ID.Bytes]
	if !ok {
		return store.CartItem{}, pgx.ErrNoRows
	}
	it.Qty = arg.Qty
	it.Subtotal = arg.Subtotal
	s.items[arg.ID.Bytes] = it
	return it, nil
}

func (s *stubQuerier) DeleteCartItem(_ context.Context, arg store.DeleteCartItemParams) error {
	delete(s.items, arg.ID.Bytes)
	return nil
}

func (s *stubQuerier) GetProductByID(_ context.Context, id pgtype.UUID) (store.Product, error) {
	p, ok := s.products[id.Bytes]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubQuerier) addProduct(p store.Product) store.Product {
	if !p.ID.Valid {
		p.ID = store.NewUUID()
	}
	s.products[p.ID.Bytes] = p
	return p
}

func int4(v int32) pgtype.Int4 { return pgtype.Int4{Int32: v, Valid: true} }

func TestAddItemFreezesTierPrice(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{
		Name:               "CS50 Hoodie",
		BasePrice:          1000,
		OriginalPrice:      1500,
		StudentDiscountPct: int4(25),
		Stock:              10,
		Active:             true,
	})
	svc := &Service{Q: q, Now: func() time.Time { return time.Unix(1700000000, 0) }}
	userID := store.NewUUID()

	item, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierStudent)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.UnitPrice != 750 || item.ReferencePrice != 1500 || item.Subtotal != 1500 {
		t.Fatalf("unexpected frozen prices: unit=%d ref=%d subtotal=%d", item.UnitPrice, item.ReferencePrice, item.Subtotal)
	}
}

func TestAddItemMergeKeepsFrozenPrice(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "Lab Notebook", BasePrice: 400, StudentDiscountPct: int4(50), Stock: 10, Active: true})
	svc := &Service{Q: q}
	userID := store.NewUUID()

	first, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 1, pricing.TierStudent)
	if err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	// The second add happens without a tier; the line keeps the price frozen
	// at first add.
	merged, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierNone)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if merged.ID.Bytes != first.ID.Bytes {
		t.Fatal("expected the existing line to be merged, got a new line")
	}
	if merged.Qty != 3 || merged.UnitPrice != 200 || merged.Subtotal != 600 {
		t.Fatalf("unexpected merged line: qty=%d unit=%d subtotal=%d", merged.Qty, merged.UnitPrice, merged.Subtotal)
	}
}

func TestAddItemRejectsBeyondStock(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "Ethernet Cable", BasePrice: 200, Stock: 3, Active: true})
	svc := &Service{Q: q}
	userID := store.NewUUID()

	if _, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 4, pricing.TierNone); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierNone); err != nil {
		t.Fatalf("AddItem within stock: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierNone); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock on merge beyond stock, got %v", err)
	}
}

func TestUpdateQtyBelowOneRemovesLine(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "USB Drive", BasePrice: 600, Stock: 5, Active: true})
	svc := &Service{Q: q}
	userID := store.NewUUID()

	item, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierNone)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.UpdateQty(context.Background(), userID, store.UUIDString(item.ID), 0); err != nil {
		t.Fatalf("UpdateQty: %v", err)
	}
	if len(q.items) != 0 {
		t.Fatalf("expected line removed, %d remain", len(q.items))
	}
}

func TestUpdateQtyRejectsForeignLine(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "Sticker Pack", BasePrice: 100, Stock: 5, Active: true})
	svc := &Service{Q: q}

	owner := store.NewUUID()
	item, err := svc.AddItem(context.Background(), owner, store.UUIDString(p.ID), 1, pricing.TierNone)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	other := store.NewUUID()
	if err := svc.UpdateQty(context.Background(), other, store.UUIDString(item.ID), 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for another user's line, got %v", err)
	}
}

type stubCouponQuerier struct {
	coupon store.Coupon
	err    error
}

func (s *stubCouponQuerier) GetCouponByCode(context.Context, string) (store.Coupon, error) {
	if s.err != nil {
		return store.Coupon{}, s.err
	}
	return s.coupon, nil
}

func (s *stubCouponQuerier) CountRedemptionsByUser(context.Context, store.CountRedemptionsByUserParams) (int64, error) {
	return 0, nil
}

func (s *stubCouponQuerier) CountDeliveredOrdersByUser(context.Context, pgtype.UUID) (int64, error) {
	return 0, nil
}

func (s *stubCouponQuerier) InsertRedemption(context.Context, store.InsertRedemptionParams) (bool, error) {
	return false, nil
}

func (s *stubCouponQuerier) IncrementCouponUsage(context.Context, pgtype.UUID) error {
	return nil
}

func TestApplyCouponPinsCodeWithoutRedeeming(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "Hoodie", BasePrice: 1000, Stock: 5, Active: true})
	coupons := &coupon.Service{Q: &stubCouponQuerier{coupon: store.Coupon{
		ID:     store.NewUUID(),
		Code:   "WELCOME10",
		Kind:   store.CouponKindPercentage,
		Value:  10,
		Active: true,
	}}}
	svc := &Service{Q: q, Coupons: coupons}
	userID := store.NewUUID()

	if _, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 2, pricing.TierNone); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	result, err := svc.ApplyCoupon(context.Background(), userID, "WELCOME10", coupon.Buyer{})
	if err != nil {
		t.Fatalf("ApplyCoupon: %v", err)
	}
	if result.DiscountAmount != 200 {
		t.Fatalf("want discount 200, got %d", result.DiscountAmount)
	}

	view, err := svc.Summary(context.Background(), userID, coupon.Buyer{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if view.CouponCode != "WELCOME10" || view.Discount != 200 {
		t.Fatalf("unexpected summary coupon: code=%q discount=%d", view.CouponCode, view.Discount)
	}
	if view.Subtotal != 2000 || view.TotalItems != 2 {
		t.Fatalf("unexpected summary totals: subtotal=%d items=%d", view.Subtotal, view.TotalItems)
	}
}

func TestApplyCouponOnEmptyCart(t *testing.T) {
	q := newStubQuerier()
	coupons := &coupon.Service{Q: &stubCouponQuerier{err: pgx.ErrNoRows}}
	svc := &Service{Q: q, Coupons: coupons}

	_, err := svc.ApplyCoupon(context.Background(), store.NewUUID(), "ANY", coupon.Buyer{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for empty cart, got %v", err)
	}
}

func TestSummaryShowsZeroDiscountWhenCouponStopsValidating(t *testing.T) {
	q := newStubQuerier()
	p := q.addProduct(store.Product{Name: "Mug", BasePrice: 300, Stock: 5, Active: true})
	coupons := &coupon.Service{Q: &stubCouponQuerier{err: pgx.ErrNoRows}}
	svc := &Service{Q: q, Coupons: coupons}
	userID := store.NewUUID()

	if _, err := svc.AddItem(context.Background(), userID, store.UUIDString(p.ID), 1, pricing.TierNone); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cart, err := svc.EnsureCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("EnsureCart: %v", err)
	}
	if err := q.UpdateCartCoupon(context.Background(), store.UpdateCartCouponParams{
		ID:                cart.ID,
		AppliedCouponCode: pgtype.Text{String: "GONE", Valid: true},
	}); err != nil {
		t.Fatalf("UpdateCartCoupon: %v", err)
	}

	view, err := svc.Summary(context.Background(), userID, coupon.Buyer{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if view.CouponCode != "GONE" || view.Discount != 0 {
		t.Fatalf("unexpected coupon rendering: code=%q discount=%d", view.CouponCode, view.Discount)
	}
}
