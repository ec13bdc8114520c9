package store

import "github.com/jackc/pgx/v5/pgtype"

// User is a storefront account. Membership tier is derived from the
// verification flags at read time, never stored.
type User struct {
	ID              pgtype.UUID
	Name            string
	Email           string
	PasswordHash    string
	Roles           []string
	StudentVerified bool
	FacultyVerified bool
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// Product is a catalog entry. Prices are minor units; nullable discount
// percents fall back to campus-wide defaults.
type Product struct {
	ID                 pgtype.UUID
	Slug               string
	Name               string
	Description        string
	Category           string
	ImageURL           string
	BasePrice          int64
	OriginalPrice      int64
	StudentDiscountPct pgtype.Int4
	FacultyDiscountPct pgtype.Int4
	Stock              int32
	Active             bool
	CreatedAt          pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}

// Cart holds a shopper's open cart.
type Cart struct {
	ID                pgtype.UUID
	UserID            pgtype.UUID
	AnonID            pgtype.Text
	Status            string
	AppliedCouponCode pgtype.Text
	ExpiresAt         pgtype.Timestamptz
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

// CartItem is a cart line with the unit and reference price frozen at the
// moment the product was added.
type CartItem struct {
	ID             pgtype.UUID
	CartID         pgtype.UUID
	ProductID      pgtype.UUID
	Title          string
	Image          pgtype.Text
	Qty            int32
	UnitPrice      int64
	ReferencePrice int64
	Subtotal       int64
	CreatedAt      pgtype.Timestamptz
}

// Coupon kinds.
const (
	CouponKindPercentage = "percentage"
	CouponKindFixed      = "fixed"
)

// Coupon applicability classes.
const (
	CouponForAll             = "all"
	CouponForStudents        = "students-only"
	CouponForFirstTimeBuyers = "first-time-buyers"
)

// Coupon is an admin-managed discount code.
type Coupon struct {
	ID             pgtype.UUID
	Code           string
	Kind           string
	Value          int64
	MaxDiscount    pgtype.Int8
	MinOrderAmount int64
	UsageLimit     pgtype.Int4
	PerUserLimit   pgtype.Int4
	UsedCount      int32
	ApplicableFor  string
	Active         bool
	ValidFrom      pgtype.Timestamptz
	ValidTo        pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// Order is the immutable snapshot created at checkout plus its mutable
// lifecycle and payment fields.
type Order struct {
	ID               pgtype.UUID
	UserID           pgtype.UUID
	Status           string
	PaymentMethod    string
	IsPaid           bool
	PaidAt           pgtype.Timestamptz
	GatewayOrderID   pgtype.Text
	GatewayPaymentID pgtype.Text
	GatewayStatus    pgtype.Text
	ItemsPrice       int64
	DiscountPrice    int64
	TaxPrice         int64
	ShippingPrice    int64
	TotalPrice       int64
	CouponCode       pgtype.Text
	ShippingAddress  []byte
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// OrderItem is a line snapshot copied from the cart at order time.
type OrderItem struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	ProductID      pgtype.UUID
	Name           string
	Qty            int32
	UnitPrice      int64
	ReferencePrice int64
	Subtotal       int64
	CreatedAt      pgtype.Timestamptz
}

// DomainEvent is a persisted fact about something that happened.
type DomainEvent struct {
	ID        pgtype.UUID
	Topic     string
	OrderID   pgtype.UUID
	UserID    pgtype.UUID
	Payload   []byte
	CreatedAt pgtype.Timestamptz
}
