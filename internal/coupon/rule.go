package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/campuskart/backend-store/internal/pricing"
)

var (
	// ErrInactive is returned when the coupon has been switched off by an admin.
	ErrInactive = errors.New("coupon not active")
	// ErrNotYetValid is returned before the coupon's start date.
	ErrNotYetValid = errors.New("coupon not yet valid")
	// ErrExpired is returned after the coupon's expiry date.
	ErrExpired = errors.New("coupon expired")
	// ErrMinimumOrderNotMet indicates the order amount did not reach the coupon's floor.
	ErrMinimumOrderNotMet = errors.New("coupon minimum order amount not met")
	// ErrUsageLimitReached indicates the coupon has exhausted its global quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached indicates the caller has exhausted their personal allowance.
	ErrPerUserLimitReached = errors.New("coupon per-user limit reached")
	// ErrNotEligible is returned when the caller does not match the coupon's audience.
	ErrNotEligible = errors.New("coupon not eligible for this account")
)

// Coupon kinds.
const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
)

// Audience classes.
const (
	ForAll             = "all"
	ForStudents        = "students-only"
	ForFirstTimeBuyers = "first-time-buyers"
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code           string
	Kind           string
	Value          int64
	MaxDiscount    *int64
	MinOrderAmount int64
	UsageLimit     *int32
	UsedCount      int32
	PerUserLimit   *int32
	PerUserUsed    int64
	ApplicableFor  string
	Active         bool
	ValidFrom      *time.Time
	ValidTo        *time.Time
}

// Buyer is the slice of the account a rule needs to judge eligibility.
type Buyer struct {
	Tier            pricing.Tier
	CompletedOrders int64
}

// Validate runs the eligibility checks in a fixed order; the first failing
// check wins.
func (r Rule) Validate(now time.Time, orderAmount pricing.Money, buyer Buyer) error {
	if !r.Active {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrNotYetValid
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if orderAmount < pricing.Money(r.MinOrderAmount) {
		return ErrMinimumOrderNotMet
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.PerUserLimit != nil && *r.PerUserLimit >= 0 && r.PerUserUsed >= int64(*r.PerUserLimit) {
		return ErrPerUserLimitReached
	}
	switch r.ApplicableFor {
	case ForStudents:
		// Faculty qualify for student-only codes as the stronger tier.
		if buyer.Tier != pricing.TierStudent && buyer.Tier != pricing.TierFaculty {
			return ErrNotEligible
		}
	case ForFirstTimeBuyers:
		if buyer.CompletedOrders > 0 {
			return ErrNotEligible
		}
	}
	return nil
}

// Discount determines the amount the rule takes off the given order amount.
// Percentage coupons honour the optional cap; no coupon ever discounts more
// than the order itself.
func Discount(orderAmount pricing.Money, r Rule) pricing.Money {
	if orderAmount <= 0 {
		return 0
	}
	var discount pricing.Money
	switch {
	case strings.EqualFold(r.Kind, KindPercentage):
		if r.Value <= 0 {
			return 0
		}
		discount = orderAmount * pricing.Money(r.Value) / 100
		if r.MaxDiscount != nil && *r.MaxDiscount >= 0 && discount > pricing.Money(*r.MaxDiscount) {
			discount = pricing.Money(*r.MaxDiscount)
		}
	default:
		discount = pricing.Money(r.Value)
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		return 0
	}
	return discount
}
