package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// ErrNotFound is returned when the code does not exist at all.
var ErrNotFound = errors.New("coupon not found")

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, code string) (store.Coupon, error)
	CountRedemptionsByUser(ctx context.Context, arg store.CountRedemptionsByUserParams) (int64, error)
	CountDeliveredOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	InsertRedemption(ctx context.Context, arg store.InsertRedemptionParams) (bool, error)
	IncrementCouponUsage(ctx context.Context, id pgtype.UUID) error
}

// PreviewResult describes the outcome of evaluating a coupon without
// mutating state.
type PreviewResult struct {
	Code           string        `json:"code"`
	DiscountAmount pricing.Money `json:"discountAmount"`
	DiscountType   string        `json:"discountType"`
	DiscountValue  int64         `json:"discountValue"`
}

// Service evaluates coupon rules and records redemptions.
type Service struct {
	Q   Querier
	Now func() time.Time
}

// Preview performs a dry-run evaluation of a code against an order amount.
// No counters move.
func (s *Service) Preview(ctx context.Context, code string, buyer Buyer, userID pgtype.UUID, orderAmount pricing.Money) (PreviewResult, error) {
	if s == nil || s.Q == nil {
		return PreviewResult{}, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return PreviewResult{}, ErrNotFound
	}
	c, err := s.Q.GetCouponByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PreviewResult{}, ErrNotFound
		}
		return PreviewResult{}, err
	}
	rule := RuleFromModel(c)

	if rule.PerUserLimit != nil && *rule.PerUserLimit > 0 && userID.Valid {
		used, err := s.Q.CountRedemptionsByUser(ctx, store.CountRedemptionsByUserParams{CouponID: c.ID, UserID: userID})
		if err != nil {
			return PreviewResult{}, err
		}
		rule.PerUserUsed = used
	}
	if rule.ApplicableFor == ForFirstTimeBuyers && userID.Valid && buyer.CompletedOrders == 0 {
		prior, err := s.Q.CountDeliveredOrdersByUser(ctx, userID)
		if err != nil {
			return PreviewResult{}, err
		}
		buyer.CompletedOrders = prior
	}

	if err := rule.Validate(s.now(), orderAmount, buyer); err != nil {
		return PreviewResult{}, err
	}
	discount := Discount(orderAmount, rule)
	if discount <= 0 {
		return PreviewResult{}, ErrNotEligible
	}
	return PreviewResult{
		Code:           c.Code,
		DiscountAmount: discount,
		DiscountType:   c.Kind,
		DiscountValue:  c.Value,
	}, nil
}

// Redeem records a redemption for an order, idempotently. The unique key on
// (coupon, order) means a retried checkout of the same order bumps the usage
// counter exactly once. Callers run this inside the order-creation
// transaction.
func (s *Service) Redeem(ctx context.Context, q Querier, code string, orderID, userID pgtype.UUID, amount pricing.Money) error {
	if s == nil {
		return errors.New("coupon service not configured")
	}
	if q == nil {
		q = s.Q
	}
	if strings.TrimSpace(code) == "" || !orderID.Valid {
		return nil
	}
	c, err := q.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if amount < 0 {
		amount = 0
	}
	inserted, err := q.InsertRedemption(ctx, store.InsertRedemptionParams{
		CouponID: c.ID,
		OrderID:  orderID,
		UserID:   userID,
		Amount:   int64(amount),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	return q.IncrementCouponUsage(ctx, c.ID)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFromModel converts a stored coupon row into a Rule for evaluation.
func RuleFromModel(c store.Coupon) Rule {
	rule := Rule{
		Code:           c.Code,
		Kind:           c.Kind,
		Value:          c.Value,
		MinOrderAmount: c.MinOrderAmount,
		UsedCount:      c.UsedCount,
		ApplicableFor:  c.ApplicableFor,
		Active:         c.Active,
	}
	if c.MaxDiscount.Valid {
		v := c.MaxDiscount.Int64
		rule.MaxDiscount = &v
	}
	if c.UsageLimit.Valid {
		v := c.UsageLimit.Int32
		rule.UsageLimit = &v
	}
	if c.PerUserLimit.Valid {
		v := c.PerUserLimit.Int32
		rule.PerUserLimit = &v
	}
	if c.ValidFrom.Valid {
		rule.ValidFrom = &c.ValidFrom.Time
	}
	if c.ValidTo.Valid {
		rule.ValidTo = &c.ValidTo.Time
	}
	return rule
}
