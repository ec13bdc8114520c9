package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, code, kind, value, max_discount, min_order_amount, usage_limit,
	per_user_limit, used_count, applicable_for, active, valid_from, valid_to, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.MaxDiscount, &c.MinOrderAmount, &c.UsageLimit,
		&c.PerUserLimit, &c.UsedCount, &c.ApplicableFor, &c.Active, &c.ValidFrom, &c.ValidTo, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCouponByCode fetches a coupon by its upper-cased code.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	row := s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = upper($1)`, code)
	return scanCoupon(row)
}

// ListCouponsParams are the inputs for ListCoupons.
type ListCouponsParams struct {
	Limit  int32
	Offset int32
}

// ListCoupons returns coupons newest first (admin listing).
func (s *Store) ListCoupons(ctx context.Context, arg ListCouponsParams) ([]Coupon, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCouponParams are the inputs for CreateCoupon.
type CreateCouponParams struct {
	Code           string
	Kind           string
	Value          int64
	MaxDiscount    pgtype.Int8
	MinOrderAmount int64
	UsageLimit     pgtype.Int4
	PerUserLimit   pgtype.Int4
	ApplicableFor  string
	Active         bool
	ValidFrom      pgtype.Timestamptz
	ValidTo        pgtype.Timestamptz
}

// CreateCoupon inserts a coupon; the code is normalised to upper case.
func (s *Store) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO coupons (code, kind, value, max_discount, min_order_amount, usage_limit,
			per_user_limit, applicable_for, active, valid_from, valid_to)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+couponColumns,
		arg.Code, arg.Kind, arg.Value, arg.MaxDiscount, arg.MinOrderAmount, arg.UsageLimit,
		arg.PerUserLimit, arg.ApplicableFor, arg.Active, arg.ValidFrom, arg.ValidTo)
	c, err := scanCoupon(row)
	if err != nil && IsUniqueViolation(err) {
		return Coupon{}, ErrDuplicate
	}
	return c, err
}

// UpdateCouponParams are the inputs for UpdateCoupon.
type UpdateCouponParams struct {
	Code           string
	Kind           string
	Value          int64
	MaxDiscount    pgtype.Int8
	MinOrderAmount int64
	UsageLimit     pgtype.Int4
	PerUserLimit   pgtype.Int4
	ApplicableFor  string
	Active         bool
	ValidFrom      pgtype.Timestamptz
	ValidTo        pgtype.Timestamptz
}

// UpdateCoupon replaces the mutable fields of a coupon identified by code.
func (s *Store) UpdateCoupon(ctx context.Context, arg UpdateCouponParams) (Coupon, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE coupons
		SET kind = $2, value = $3, max_discount = $4, min_order_amount = $5, usage_limit = $6,
			per_user_limit = $7, applicable_for = $8, active = $9, valid_from = $10, valid_to = $11,
			updated_at = now()
		WHERE code = upper($1)
		RETURNING `+couponColumns,
		arg.Code, arg.Kind, arg.Value, arg.MaxDiscount, arg.MinOrderAmount, arg.UsageLimit,
		arg.PerUserLimit, arg.ApplicableFor, arg.Active, arg.ValidFrom, arg.ValidTo)
	return scanCoupon(row)
}

// DeleteCoupon removes a coupon by code.
func (s *Store) DeleteCoupon(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM coupons WHERE code = upper($1)`, code)
	return err
}

// CountRedemptionsByUserParams are the inputs for CountRedemptionsByUser.
type CountRedemptionsByUserParams struct {
	CouponID pgtype.UUID
	UserID   pgtype.UUID
}

// CountRedemptionsByUser returns how many times a user has redeemed a coupon.
func (s *Store) CountRedemptionsByUser(ctx context.Context, arg CountRedemptionsByUserParams) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM coupon_redemptions
		WHERE coupon_id = $1 AND user_id = $2`, arg.CouponID, arg.UserID).Scan(&n)
	return n, err
}

// InsertRedemptionParams are the inputs for InsertRedemption.
type InsertRedemptionParams struct {
	CouponID pgtype.UUID
	OrderID  pgtype.UUID
	UserID   pgtype.UUID
	Amount   int64
}

// InsertRedemption records a redemption keyed by (coupon, order). The unique
// index makes retries of the same order a no-op; the caller must only bump
// the usage counter when this returns true.
func (s *Store) InsertRedemption(ctx context.Context, arg InsertRedemptionParams) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO coupon_redemptions (coupon_id, order_id, user_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coupon_id, order_id) DO NOTHING`,
		arg.CouponID, arg.OrderID, arg.UserID, arg.Amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementCouponUsage bumps the global usage counter.
func (s *Store) IncrementCouponUsage(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}
