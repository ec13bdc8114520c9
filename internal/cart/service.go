package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock is returned when the catalog cannot cover the requested qty.
var ErrOutOfStock = errors.New("out of stock")

// Querier captures the database methods the cart service needs.
type Querier interface {
	GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	CreateCart(ctx context.Context, arg store.CreateCartParams) (store.Cart, error)
	TouchCart(ctx context.Context, arg store.TouchCartParams) error
	UpdateCartCoupon(ctx context.Context, arg store.UpdateCartCouponParams) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	FindCartItemByProduct(ctx context.Context, arg store.FindCartItemParams) (store.CartItem, error)
	GetCartItemByID(ctx context.Context, id pgtype.UUID) (store.CartItem, error)
	CreateCartItem(ctx context.Context, arg store.CreateCartItemParams) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, arg store.UpdateCartItemQtyParams) (store.CartItem, error)
	DeleteCartItem(ctx context.Context, arg store.DeleteCartItemParams) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error)
}

// Service owns cart mutations. Line prices are frozen from the catalog at
// add time for the buyer's tier and never re-derived afterwards.
type Service struct {
	Q       Querier
	Coupons *coupon.Service
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads the user's open cart, creating one when none exists. The
// expiry window slides on every touch.
func (s *Service) EnsureCart(ctx context.Context, userID pgtype.UUID) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if !userID.Valid {
		return store.Cart{}, fmt.Errorf("user id required: %w", ErrInvalidInput)
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	cart, err := s.Q.GetActiveCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.Q.CreateCart(ctx, store.CreateCartParams{UserID: userID, ExpiresAt: expires})
		}
		return store.Cart{}, err
	}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
	return cart, nil
}

// AddItem inserts a line or increments an existing one. For a new line the
// unit and reference price come from the tier resolver; for an existing line
// the frozen unit price is reused regardless of the caller's current tier.
func (s *Service) AddItem(ctx context.Context, userID pgtype.UUID, productID string, qty int32, tier pricing.Tier) (store.CartItem, error) {
	if s == nil || s.Q == nil {
		return store.CartItem{}, errors.New("cart service not configured")
	}
	if qty < 1 {
		return store.CartItem{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	pID := store.ToUUID(productID)
	if !pID.Valid {
		return store.CartItem{}, fmt.Errorf("invalid product id: %w", ErrInvalidInput)
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return store.CartItem{}, err
	}
	product, err := s.Q.GetProductByID(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.CartItem{}, fmt.Errorf("product: %w", ErrNotFound)
		}
		return store.CartItem{}, err
	}
	if !product.Active {
		return store.CartItem{}, fmt.Errorf("product: %w", ErrNotFound)
	}

	existing, err := s.Q.FindCartItemByProduct(ctx, store.FindCartItemParams{CartID: cart.ID, ProductID: pID})
	if err == nil {
		newQty := existing.Qty + qty
		if product.Stock < newQty {
			return store.CartItem{}, ErrOutOfStock
		}
		return s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
			ID:       existing.ID,
			Qty:      newQty,
			Subtotal: int64(newQty) * existing.UnitPrice,
		})
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.CartItem{}, err
	}

	if product.Stock < qty {
		return store.CartItem{}, ErrOutOfStock
	}
	quote := pricing.Resolve(priceOf(product), tier)
	var image pgtype.Text
	if product.ImageURL != "" {
		image = pgtype.Text{String: product.ImageURL, Valid: true}
	}
	return s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
		CartID:         cart.ID,
		ProductID:      pID,
		Title:          product.Name,
		Image:          image,
		Qty:            qty,
		UnitPrice:      int64(quote.FinalPrice),
		ReferencePrice: int64(quote.ReferencePrice),
		Subtotal:       int64(qty) * int64(quote.FinalPrice),
	})
}

// UpdateQty sets a line's quantity. A target below one removes the line.
func (s *Service) UpdateQty(ctx context.Context, userID pgtype.UUID, itemID string, qty int32) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if qty < 1 {
		return s.Q.DeleteCartItem(ctx, store.DeleteCartItemParams{ID: item.ID, CartID: cart.ID})
	}
	product, err := s.Q.GetProductByID(ctx, item.ProductID)
	if err == nil && product.Stock < qty {
		return ErrOutOfStock
	}
	_, err = s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
		ID:       item.ID,
		Qty:      qty,
		Subtotal: int64(qty) * item.UnitPrice,
	})
	return err
}

// RemoveItem deletes a line from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID pgtype.UUID, itemID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.Q.DeleteCartItem(ctx, store.DeleteCartItemParams{ID: item.ID, CartID: cart.ID})
}

// ApplyCoupon dry-runs the code against the current subtotal and pins it to
// the cart. Usage counters only move at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID pgtype.UUID, code string, buyer coupon.Buyer) (coupon.PreviewResult, error) {
	if s == nil || s.Q == nil || s.Coupons == nil {
		return coupon.PreviewResult{}, errors.New("cart service not configured")
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	summary, _, err := s.aggregate(ctx, cart.ID)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	if summary.TotalItems == 0 {
		return coupon.PreviewResult{}, fmt.Errorf("cart is empty: %w", ErrInvalidInput)
	}
	result, err := s.Coupons.Preview(ctx, code, buyer, userID, summary.Subtotal)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	if err := s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{
		ID:                cart.ID,
		AppliedCouponCode: pgtype.Text{String: result.Code, Valid: true},
	}); err != nil {
		return coupon.PreviewResult{}, err
	}
	return result, nil
}

// RemoveCoupon clears the pinned code.
func (s *Service) RemoveCoupon(ctx context.Context, userID pgtype.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.Q.UpdateCartCoupon(ctx, store.UpdateCartCouponParams{ID: cart.ID})
}

// ItemView is a cart line rendered for the API.
type ItemView struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	Title          string `json:"title"`
	Image          string `json:"image,omitempty"`
	Qty            int32  `json:"qty"`
	UnitPrice      int64  `json:"unitPrice"`
	ReferencePrice int64  `json:"referencePrice"`
	Subtotal       int64  `json:"subtotal"`
}

// View is the cart with aggregated totals and the coupon preview applied.
type View struct {
	CartID       string     `json:"cartId"`
	Items        []ItemView `json:"items"`
	TotalItems   int        `json:"totalItems"`
	Subtotal     int64      `json:"subtotal"`
	TotalSavings int64      `json:"totalSavings"`
	CouponCode   string     `json:"couponCode,omitempty"`
	Discount     int64      `json:"discount"`
}

// Summary renders the user's cart. A coupon that no longer validates shows a
// zero discount rather than failing the whole view.
func (s *Service) Summary(ctx context.Context, userID pgtype.UUID, buyer coupon.Buyer) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	summary, items, err := s.aggregate(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	view := View{
		CartID:       store.UUIDString(cart.ID),
		Items:        make([]ItemView, 0, len(items)),
		TotalItems:   summary.TotalItems,
		Subtotal:     int64(summary.Subtotal),
		TotalSavings: int64(summary.TotalSavings),
	}
	for _, it := range items {
		view.Items = append(view.Items, ItemView{
			ID:             store.UUIDString(it.ID),
			ProductID:      store.UUIDString(it.ProductID),
			Title:          it.Title,
			Image:          it.Image.String,
			Qty:            it.Qty,
			UnitPrice:      it.UnitPrice,
			ReferencePrice: it.ReferencePrice,
			Subtotal:       it.Subtotal,
		})
	}
	if cart.AppliedCouponCode.Valid && cart.AppliedCouponCode.String != "" && s.Coupons != nil {
		view.CouponCode = cart.AppliedCouponCode.String
		if res, err := s.Coupons.Preview(ctx, view.CouponCode, buyer, userID, summary.Subtotal); err == nil {
			view.Discount = int64(res.DiscountAmount)
		}
	}
	return view, nil
}

func (s *Service) ownedItem(ctx context.Context, userID pgtype.UUID, itemID string) (store.Cart, store.CartItem, error) {
	id := store.ToUUID(itemID)
	if !id.Valid {
		return store.Cart{}, store.CartItem{}, fmt.Errorf("invalid item id: %w", ErrInvalidInput)
	}
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return store.Cart{}, store.CartItem{}, err
	}
	item, err := s.Q.GetCartItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, store.CartItem{}, ErrNotFound
		}
		return store.Cart{}, store.CartItem{}, err
	}
	if !store.UUIDEqual(item.CartID, cart.ID) {
		return store.Cart{}, store.CartItem{}, ErrNotFound
	}
	return cart, item, nil
}

func (s *Service) aggregate(ctx context.Context, cartID pgtype.UUID) (pricing.Summary, []store.CartItem, error) {
	items, err := s.Q.ListCartItems(ctx, cartID)
	if err != nil {
		return pricing.Summary{}, nil, err
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{
			Qty:            int(it.Qty),
			UnitPrice:      pricing.Money(it.UnitPrice),
			ReferencePrice: pricing.Money(it.ReferencePrice),
		})
	}
	return pricing.Aggregate(lines), items, nil
}

func priceOf(p store.Product) pricing.ProductPrice {
	price := pricing.ProductPrice{
		BasePrice:     pricing.Money(p.BasePrice),
		OriginalPrice: pricing.Money(p.OriginalPrice),
	}
	if p.StudentDiscountPct.Valid {
		v := p.StudentDiscountPct.Int32
		price.StudentDiscount = &v
	}
	if p.FacultyDiscountPct.Valid {
		v := p.FacultyDiscountPct.Int32
		price.FacultyDiscount = &v
	}
	return price
}
