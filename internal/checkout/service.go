package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/obs"
	"github.com/campuskart/backend-store/internal/order"
	"github.com/campuskart/backend-store/internal/payment"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// Address is the shipping destination captured at checkout.
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
}

func (a Address) missingFields() []string {
	var missing []string
	if strings.TrimSpace(a.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(a.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	return missing
}

// Input is the checkout request body.
type Input struct {
	PaymentMethod string  `json:"paymentMethod"`
	Address       Address `json:"address"`
}

// Output describes the created order.
type Output struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod"`
	ItemsPrice    int64  `json:"itemsPrice"`
	DiscountPrice int64  `json:"discountPrice"`
	TaxPrice      int64  `json:"taxPrice"`
	ShippingPrice int64  `json:"shippingPrice"`
	TotalPrice    int64  `json:"totalPrice"`
}

// Queries is the transactional surface checkout needs. *store.Store
// satisfies it, so the tx-scoped store doubles as the coupon redemption
// querier.
type Queries interface {
	coupon.Querier
	GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]store.CartItem, error)
	AdjustProductStock(ctx context.Context, id pgtype.UUID, delta int32) error
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) error
	CloseCart(ctx context.Context, id pgtype.UUID) error
	InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) error
}

// TxRunner runs fn inside one database transaction. fn returning an error
// rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// PoolRunner is the production TxRunner backed by a pgx pool.
type PoolRunner struct {
	Pool *pgxpool.Pool
}

// InTx implements TxRunner.
func (r PoolRunner) InTx(ctx context.Context, fn func(q Queries) error) error {
	if r.Pool == nil {
		return errors.New("checkout: pool not configured")
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(store.New(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Service turns a cart into an order atomically: order row, frozen item
// snapshots, stock decrements and the coupon redemption commit together or
// not at all.
type Service struct {
	Tx      TxRunner
	Coupons *coupon.Service
	Events  *events.Bus

	TaxBps            int
	ShippingFee       int64
	FreeShippingAbove int64
}

// Create places an order from the user's active cart.
func (s *Service) Create(ctx context.Context, userID pgtype.UUID, buyer coupon.Buyer, in Input) (Output, error) {
	if s == nil || s.Tx == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if !userID.Valid {
		return Output{}, common.BadRequest("VALIDATION_ERROR", "user is required for checkout")
	}
	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if !payment.KnownMethod(method) {
		return Output{}, common.BadRequest("VALIDATION_ERROR", "unsupported payment method")
	}
	if missing := in.Address.missingFields(); len(missing) > 0 {
		appErr := common.BadRequest("VALIDATION_ERROR", "shipping address is incomplete")
		appErr.Details = map[string]any{"missing": missing}
		return Output{}, appErr
	}
	addressJSON, err := json.Marshal(in.Address)
	if err != nil {
		return Output{}, err
	}

	var (
		created store.Order
		event   events.Event
	)
	err = s.Tx.InTx(ctx, func(q Queries) error {
		cartRow, err := q.GetActiveCartByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.BadRequest("VALIDATION_ERROR", "cart is empty")
			}
			return err
		}
		items, err := q.ListCartItems(ctx, cartRow.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return common.BadRequest("VALIDATION_ERROR", "cart is empty")
		}

		lines := make([]pricing.Line, 0, len(items))
		for _, it := range items {
			lines = append(lines, pricing.Line{
				Qty:            int(it.Qty),
				UnitPrice:      pricing.Money(it.UnitPrice),
				ReferencePrice: pricing.Money(it.ReferencePrice),
			})
		}
		summary := pricing.Aggregate(lines)

		for _, it := range items {
			if err := q.AdjustProductStock(ctx, it.ProductID, -it.Qty); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return common.Conflict("OUT_OF_STOCK", fmt.Sprintf("%s is no longer available in the requested quantity", it.Title))
				}
				return err
			}
		}

		var (
			discount   pricing.Money
			couponCode pgtype.Text
		)
		if cartRow.AppliedCouponCode.Valid && cartRow.AppliedCouponCode.String != "" && s.Coupons != nil {
			res, err := s.Coupons.Preview(ctx, cartRow.AppliedCouponCode.String, buyer, userID, summary.Subtotal)
			if err != nil {
				return err
			}
			discount = res.DiscountAmount
			couponCode = pgtype.Text{String: res.Code, Valid: true}
		}

		shipping := pricing.Money(s.ShippingFee)
		if s.FreeShippingAbove > 0 && summary.Subtotal-discount >= pricing.Money(s.FreeShippingAbove) {
			shipping = 0
		}
		tax := pricing.TaxOn(summary.Subtotal, discount, s.TaxBps)
		total := pricing.ComposeTotal(summary.Subtotal, discount, shipping, tax)

		created, err = q.CreateOrder(ctx, store.CreateOrderParams{
			UserID:          userID,
			Status:          order.StatusPending,
			PaymentMethod:   method,
			ItemsPrice:      int64(summary.Subtotal),
			DiscountPrice:   int64(discount),
			TaxPrice:        int64(tax),
			ShippingPrice:   int64(shipping),
			TotalPrice:      int64(total),
			CouponCode:      couponCode,
			ShippingAddress: addressJSON,
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := q.CreateOrderItem(ctx, store.CreateOrderItemParams{
				OrderID:        created.ID,
				ProductID:      it.ProductID,
				Name:           it.Title,
				Qty:            it.Qty,
				UnitPrice:      it.UnitPrice,
				ReferencePrice: it.ReferencePrice,
				Subtotal:       it.Subtotal,
			}); err != nil {
				return err
			}
		}

		if couponCode.Valid && discount > 0 {
			if err := s.Coupons.Redeem(ctx, q, couponCode.String, created.ID, userID, discount); err != nil {
				return err
			}
			if obs.CouponRedemptionsTotal != nil {
				obs.CouponRedemptionsTotal.Inc()
			}
		}

		if err := q.CloseCart(ctx, cartRow.ID); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"orderId":       store.UUIDString(created.ID),
			"userId":        store.UUIDString(userID),
			"paymentMethod": method,
			"total":         int64(total),
		})
		event = events.Event{
			Topic:   events.TopicOrderCreated,
			OrderID: created.ID,
			UserID:  userID,
			Payload: payload,
		}
		return q.InsertDomainEvent(ctx, store.InsertDomainEventParams{
			Topic:   event.Topic,
			OrderID: event.OrderID,
			UserID:  event.UserID,
			Payload: event.Payload,
		})
	})
	if err != nil {
		return Output{}, err
	}

	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(method).Inc()
	}
	_ = s.Events.Dispatch(ctx, event)

	return Output{
		OrderID:       store.UUIDString(created.ID),
		Status:        created.Status,
		PaymentMethod: created.PaymentMethod,
		ItemsPrice:    created.ItemsPrice,
		DiscountPrice: created.DiscountPrice,
		TaxPrice:      created.TaxPrice,
		ShippingPrice: created.ShippingPrice,
		TotalPrice:    created.TotalPrice,
	}, nil
}
