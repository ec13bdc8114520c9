package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/campuskart/backend-store/internal/pricing"
)

func TestValidateOrderOfChecks(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := int32(1)

	cases := []struct {
		name string
		rule Rule
		amt  pricing.Money
		buy  Buyer
		want error
	}{
		{"inactive", Rule{Active: false}, 1000, Buyer{}, ErrInactive},
		{"not yet valid", Rule{Active: true, ValidFrom: &future}, 1000, Buyer{}, ErrNotYetValid},
		{"expired", Rule{Active: true, ValidTo: &past}, 1000, Buyer{}, ErrExpired},
		{"minimum order", Rule{Active: true, MinOrderAmount: 500}, 499, Buyer{}, ErrMinimumOrderNotMet},
		{"usage limit", Rule{Active: true, UsageLimit: &limit, UsedCount: 1}, 1000, Buyer{}, ErrUsageLimitReached},
		{"per-user limit", Rule{Active: true, PerUserLimit: &limit, PerUserUsed: 1}, 1000, Buyer{}, ErrPerUserLimitReached},
		{"students only, no tier", Rule{Active: true, ApplicableFor: ForStudents}, 1000, Buyer{Tier: pricing.TierNone}, ErrNotEligible},
		{"first-time, repeat buyer", Rule{Active: true, ApplicableFor: ForFirstTimeBuyers}, 1000, Buyer{CompletedOrders: 3}, ErrNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rule.Validate(now, tc.amt, tc.buy); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateInactiveWinsOverExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	rule := Rule{Active: false, ValidTo: &past}
	if err := rule.Validate(time.Now(), 1000, Buyer{}); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive first, got %v", err)
	}
}

func TestValidateStudentsOnlyAcceptsFaculty(t *testing.T) {
	rule := Rule{Active: true, ApplicableFor: ForStudents}
	if err := rule.Validate(time.Now(), 1000, Buyer{Tier: pricing.TierFaculty}); err != nil {
		t.Fatalf("faculty should pass students-only, got %v", err)
	}
	if err := rule.Validate(time.Now(), 1000, Buyer{Tier: pricing.TierStudent}); err != nil {
		t.Fatalf("student should pass students-only, got %v", err)
	}
}

func TestValidateFirstTimeBuyer(t *testing.T) {
	rule := Rule{Active: true, ApplicableFor: ForFirstTimeBuyers}
	if err := rule.Validate(time.Now(), 1000, Buyer{CompletedOrders: 0}); err != nil {
		t.Fatalf("first order should pass, got %v", err)
	}
}

func TestDiscountFixedCappedAtOrderAmount(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: 200}
	if got := Discount(150, rule); got != 150 {
		t.Fatalf("expected fixed discount capped at 150, got %d", got)
	}
}

func TestDiscountPercentageWithCap(t *testing.T) {
	cap := int64(100)
	rule := Rule{Kind: KindPercentage, Value: 20, MaxDiscount: &cap}
	if got := Discount(1000, rule); got != 100 {
		t.Fatalf("expected capped discount 100, got %d", got)
	}
}

func TestDiscountPercentageUncapped(t *testing.T) {
	rule := Rule{Kind: KindPercentage, Value: 20}
	if got := Discount(1000, rule); got != 200 {
		t.Fatalf("expected discount 200, got %d", got)
	}
}

func TestDiscountZeroOrderAmount(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: 200}
	if got := Discount(0, rule); got != 0 {
		t.Fatalf("expected no discount on empty order, got %d", got)
	}
}
