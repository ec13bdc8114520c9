package pricing

import (
	"math/rand"
	"testing"
)

func TestResolveNoneTier(t *testing.T) {
	q := Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1000}, TierNone)
	if q.FinalPrice != 1000 {
		t.Fatalf("expected final price 1000, got %d", q.FinalPrice)
	}
	if q.DiscountPercent != 0 {
		t.Fatalf("expected 0%% discount, got %d", q.DiscountPercent)
	}
}

func TestResolveNoneTierWithMRP(t *testing.T) {
	q := Resolve(ProductPrice{BasePrice: 800, OriginalPrice: 1000}, TierNone)
	if q.FinalPrice != 800 {
		t.Fatalf("expected final price 800, got %d", q.FinalPrice)
	}
	if q.ReferencePrice != 1000 {
		t.Fatalf("expected reference 1000, got %d", q.ReferencePrice)
	}
	if q.DiscountPercent != 20 {
		t.Fatalf("expected 20%% discount, got %d", q.DiscountPercent)
	}
}

func TestResolveStudent(t *testing.T) {
	student := int32(25)
	q := Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1500, StudentDiscount: &student}, TierStudent)
	if q.FinalPrice != 750 {
		t.Fatalf("expected final price 750, got %d", q.FinalPrice)
	}
	if q.ReferencePrice != 1500 {
		t.Fatalf("expected reference 1500, got %d", q.ReferencePrice)
	}
	if q.DiscountPercent != 50 {
		t.Fatalf("expected 50%% discount, got %d", q.DiscountPercent)
	}
}

func TestResolveFaculty(t *testing.T) {
	faculty := int32(50)
	q := Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1000, FacultyDiscount: &faculty}, TierFaculty)
	if q.FinalPrice != 500 {
		t.Fatalf("expected final price 500, got %d", q.FinalPrice)
	}
	if q.DiscountPercent != 50 {
		t.Fatalf("expected 50%% discount, got %d", q.DiscountPercent)
	}
}

func TestResolveDefaults(t *testing.T) {
	q := Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1000}, TierStudent)
	if q.FinalPrice != 750 {
		t.Fatalf("expected default 25%% student discount, got final %d", q.FinalPrice)
	}
	q = Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1000}, TierFaculty)
	if q.FinalPrice != 500 {
		t.Fatalf("expected default 50%% faculty discount, got final %d", q.FinalPrice)
	}
}

func TestResolveHalfUpRounding(t *testing.T) {
	// 5 off 1000 is 0.5%, which rounds up to 1
	q := Resolve(ProductPrice{BasePrice: 995, OriginalPrice: 1000}, TierNone)
	if q.DiscountPercent != 1 {
		t.Fatalf("expected 1%%, got %d", q.DiscountPercent)
	}
}

func TestResolveNeverNegative(t *testing.T) {
	full := int32(100)
	q := Resolve(ProductPrice{BasePrice: 1000, OriginalPrice: 1000, FacultyDiscount: &full}, TierFaculty)
	if q.FinalPrice != 0 {
		t.Fatalf("expected floor at 0, got %d", q.FinalPrice)
	}
	if q.DiscountPercent != 100 {
		t.Fatalf("expected 100%%, got %d", q.DiscountPercent)
	}
}

func TestAggregate(t *testing.T) {
	lines := []Line{
		{Qty: 2, UnitPrice: 750, ReferencePrice: 1500},
		{Qty: 1, UnitPrice: 500, ReferencePrice: 500},
		{Qty: 3, UnitPrice: 100, ReferencePrice: 90}, // reference below price contributes no savings
	}
	s := Aggregate(lines)
	if s.Subtotal != 2*750+500+300 {
		t.Fatalf("unexpected subtotal %d", s.Subtotal)
	}
	if s.TotalSavings != 2*750 {
		t.Fatalf("unexpected savings %d", s.TotalSavings)
	}
	if s.TotalItems != 6 {
		t.Fatalf("unexpected item count %d", s.TotalItems)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	lines := []Line{
		{Qty: 1, UnitPrice: 199, ReferencePrice: 299},
		{Qty: 4, UnitPrice: 1250, ReferencePrice: 1500},
		{Qty: 2, UnitPrice: 75, ReferencePrice: 75},
		{Qty: 7, UnitPrice: 10, ReferencePrice: 12},
	}
	want := Aggregate(lines)
	for i := 0; i < 10; i++ {
		shuffled := make([]Line, len(lines))
		copy(shuffled, lines)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := Aggregate(shuffled); got != want {
			t.Fatalf("aggregation depends on order: got %+v want %+v", got, want)
		}
	}
}

func TestComposeTotal(t *testing.T) {
	if got := ComposeTotal(1000, 200, 50, 90); got != 940 {
		t.Fatalf("expected 940, got %d", got)
	}
}

func TestComposeTotalNeverNegative(t *testing.T) {
	if got := ComposeTotal(100, 10_000, 0, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestTaxOn(t *testing.T) {
	if got := TaxOn(1000, 200, 1800); got != 144 {
		t.Fatalf("expected 144, got %d", got)
	}
	if got := TaxOn(100, 500, 1800); got != 0 {
		t.Fatalf("expected 0 tax on fully discounted order, got %d", got)
	}
}
