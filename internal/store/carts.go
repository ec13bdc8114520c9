package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, user_id, anon_id, status, applied_coupon_code, expires_at, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.Status, &c.AppliedCouponCode, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCartParams are the inputs for CreateCart.
type CreateCartParams struct {
	UserID    pgtype.UUID
	AnonID    pgtype.Text
	ExpiresAt pgtype.Timestamptz
}

// CreateCart opens a new active cart.
func (s *Store) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (user_id, anon_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+cartColumns,
		arg.UserID, arg.AnonID, arg.ExpiresAt)
	return scanCart(row)
}

// GetCartByID fetches a cart by id.
func (s *Store) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetActiveCartByUser returns the user's most recent open cart.
func (s *Store) GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1`, userID)
	return scanCart(row)
}

// TouchCartParams are the inputs for TouchCart.
type TouchCartParams struct {
	ID        pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

// TouchCart extends the cart expiry window.
func (s *Store) TouchCart(ctx context.Context, arg TouchCartParams) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, arg.ID, arg.ExpiresAt)
	return err
}

// UpdateCartCouponParams are the inputs for UpdateCartCoupon.
type UpdateCartCouponParams struct {
	ID                pgtype.UUID
	AppliedCouponCode pgtype.Text
}

// UpdateCartCoupon attaches or clears the coupon code on a cart.
func (s *Store) UpdateCartCoupon(ctx context.Context, arg UpdateCartCouponParams) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET applied_coupon_code = $2, updated_at = now() WHERE id = $1`, arg.ID, arg.AppliedCouponCode)
	return err
}

// CloseCart marks a cart as checked out.
func (s *Store) CloseCart(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET status = 'ORDERED', updated_at = now() WHERE id = $1`, id)
	return err
}

const cartItemColumns = `id, cart_id, product_id, title, image, qty, unit_price, reference_price, subtotal, created_at`

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Image, &it.Qty, &it.UnitPrice, &it.ReferencePrice, &it.Subtotal, &it.CreatedAt)
	return it, err
}

// ListCartItems returns all lines of a cart.
func (s *Store) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindCartItemParams are the inputs for FindCartItemByProduct.
type FindCartItemParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
}

// FindCartItemByProduct locates the line for a product within a cart.
func (s *Store) FindCartItemByProduct(ctx context.Context, arg FindCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`, arg.CartID, arg.ProductID)
	return scanCartItem(row)
}

// GetCartItemByID fetches a single cart line.
func (s *Store) GetCartItemByID(ctx context.Context, id pgtype.UUID) (CartItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, id)
	return scanCartItem(row)
}

// CreateCartItemParams are the inputs for CreateCartItem.
type CreateCartItemParams struct {
	CartID         pgtype.UUID
	ProductID      pgtype.UUID
	Title          string
	Image          pgtype.Text
	Qty            int32
	UnitPrice      int64
	ReferencePrice int64
	Subtotal       int64
}

// CreateCartItem inserts a new line with prices frozen from the catalog.
func (s *Store) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, title, image, qty, unit_price, reference_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cartItemColumns,
		arg.CartID, arg.ProductID, arg.Title, arg.Image, arg.Qty, arg.UnitPrice, arg.ReferencePrice, arg.Subtotal)
	return scanCartItem(row)
}

// UpdateCartItemQtyParams are the inputs for UpdateCartItemQty.
type UpdateCartItemQtyParams struct {
	ID       pgtype.UUID
	Qty      int32
	Subtotal int64
}

// UpdateCartItemQty sets the quantity of an existing line.
func (s *Store) UpdateCartItemQty(ctx context.Context, arg UpdateCartItemQtyParams) (CartItem, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1
		RETURNING `+cartItemColumns,
		arg.ID, arg.Qty, arg.Subtotal)
	return scanCartItem(row)
}

// DeleteCartItemParams are the inputs for DeleteCartItem.
type DeleteCartItemParams struct {
	ID     pgtype.UUID
	CartID pgtype.UUID
}

// DeleteCartItem removes a line from a cart.
func (s *Store) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, arg.ID, arg.CartID)
	return err
}
