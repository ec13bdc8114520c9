package pricing

// Money represents a monetary value stored in minor units (paise).
type Money = int64

// Tier is a user's discount eligibility class derived from verification flags.
type Tier int

const (
	TierNone Tier = iota
	TierStudent
	TierFaculty
)

// String renders the tier for logs and API payloads.
func (t Tier) String() string {
	switch t {
	case TierStudent:
		return "student"
	case TierFaculty:
		return "faculty"
	default:
		return "none"
	}
}

const (
	// DefaultStudentDiscountPercent applies when a product leaves the student rate unset.
	DefaultStudentDiscountPercent int32 = 25
	// DefaultFacultyDiscountPercent applies when a product leaves the faculty rate unset.
	DefaultFacultyDiscountPercent int32 = 50
)

// DiscountPercents resolves per-product discount rates, falling back to the
// campus-wide defaults for unset or out-of-range values.
func DiscountPercents(student, faculty *int32) (int32, int32) {
	s := DefaultStudentDiscountPercent
	if student != nil && *student >= 0 && *student <= 100 {
		s = *student
	}
	f := DefaultFacultyDiscountPercent
	if faculty != nil && *faculty >= 0 && *faculty <= 100 {
		f = *faculty
	}
	return s, f
}

// ProductPrice carries the catalog inputs of the price resolver.
type ProductPrice struct {
	BasePrice       Money
	OriginalPrice   Money
	StudentDiscount *int32
	FacultyDiscount *int32
}

// Quote is the resolved per-unit price shown to a user.
type Quote struct {
	FinalPrice      Money
	ReferencePrice  Money
	DiscountPercent int32
}

// Resolve computes the per-unit price for the given membership tier.
// The reference price is max(MRP, base price); the displayed percent is
// rounded half-up against that reference. Pure and idempotent.
func Resolve(p ProductPrice, tier Tier) Quote {
	base := p.BasePrice
	if base < 0 {
		base = 0
	}
	ref := p.OriginalPrice
	if ref < base {
		ref = base
	}

	student, faculty := DiscountPercents(p.StudentDiscount, p.FacultyDiscount)
	final := base
	switch tier {
	case TierFaculty:
		final = base * Money(100-faculty) / 100
	case TierStudent:
		final = base * Money(100-student) / 100
	}
	if final < 0 {
		final = 0
	}

	var percent int32
	if ref > final && ref > 0 {
		// round((ref-final)/ref*100) with half-up rounding in integer space
		percent = int32(((ref-final)*200 + ref) / (2 * ref))
	}
	return Quote{FinalPrice: final, ReferencePrice: ref, DiscountPercent: percent}
}

// Line is a cart line as seen by the aggregator: the unit price and reference
// price are frozen at add-to-cart time, never re-derived from the catalog.
type Line struct {
	Qty            int
	UnitPrice      Money
	ReferencePrice Money
}

// Summary aggregates computed cart components.
type Summary struct {
	Subtotal     Money
	TotalSavings Money
	TotalItems   int
}

// Aggregate sums line totals, savings against the frozen reference price, and
// item counts. Order-independent; lines with qty < 1 must be rejected or
// clamped by the caller before aggregation.
func Aggregate(lines []Line) Summary {
	var s Summary
	for _, l := range lines {
		if l.Qty < 1 {
			continue
		}
		s.Subtotal += Money(l.Qty) * l.UnitPrice
		if l.ReferencePrice > l.UnitPrice {
			s.TotalSavings += Money(l.Qty) * (l.ReferencePrice - l.UnitPrice)
		}
		s.TotalItems += l.Qty
	}
	return s
}

// TaxOn applies a basis-points tax rate to the discounted subtotal.
func TaxOn(subtotal, discount Money, taxBps int) Money {
	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	return taxable * Money(taxBps) / 10000
}

// ComposeTotal combines order components into the payable amount, never
// returning a negative value however large the discount is.
func ComposeTotal(subtotal, discount, shipping, tax Money) Money {
	total := subtotal - discount + shipping + tax
	if total < 0 {
		return 0
	}
	return total
}
