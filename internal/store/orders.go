package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, status, payment_method, is_paid, paid_at,
	gateway_order_id, gateway_payment_id, gateway_status,
	items_price, discount_price, tax_price, shipping_price, total_price,
	coupon_code, shipping_address, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentMethod, &o.IsPaid, &o.PaidAt,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewayStatus,
		&o.ItemsPrice, &o.DiscountPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.CouponCode, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOrders(s *Store, ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateOrderParams are the inputs for CreateOrder.
type CreateOrderParams struct {
	UserID          pgtype.UUID
	Status          string
	PaymentMethod   string
	ItemsPrice      int64
	DiscountPrice   int64
	TaxPrice        int64
	ShippingPrice   int64
	TotalPrice      int64
	CouponCode      pgtype.Text
	ShippingAddress []byte
}

func (s *Store) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, payment_method, items_price, discount_price,
			tax_price, shipping_price, total_price, coupon_code, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		arg.UserID, arg.Status, arg.PaymentMethod, arg.ItemsPrice, arg.DiscountPrice,
		arg.TaxPrice, arg.ShippingPrice, arg.TotalPrice, arg.CouponCode, arg.ShippingAddress)
	return scanOrder(row)
}

// CreateOrderItemParams are the inputs for CreateOrderItem.
type CreateOrderItemParams struct {
	OrderID        pgtype.UUID
	ProductID      pgtype.UUID
	Name           string
	Qty            int32
	UnitPrice      int64
	ReferencePrice int64
	Subtotal       int64
}

func (s *Store) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, name, qty, unit_price, reference_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		arg.OrderID, arg.ProductID, arg.Name, arg.Qty, arg.UnitPrice, arg.ReferencePrice, arg.Subtotal)
	return err
}

const orderItemColumns = `id, order_id, product_id, name, qty, unit_price, reference_price, subtotal, created_at`

// ListOrderItems returns the line items for one order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Qty,
			&it.UnitPrice, &it.ReferencePrice, &it.Subtotal, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetOrderByID fetches one order without an ownership check (admin paths).
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderForUserParams are the inputs for GetOrderForUser.
type GetOrderForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// GetOrderForUser fetches one order owned by the given user.
func (s *Store) GetOrderForUser(ctx context.Context, arg GetOrderForUserParams) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, arg.ID, arg.UserID)
	return scanOrder(row)
}

// ListOrdersByUserParams are the inputs for ListOrdersByUser.
type ListOrdersByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (s *Store) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	return collectOrders(s, ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
}

func (s *Store) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// ListOrdersParams are the inputs for ListOrders (admin listing, optional
// status filter).
type ListOrdersParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

func (s *Store) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	return collectOrders(s, ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg.Status, arg.Limit, arg.Offset)
}

func (s *Store) CountOrders(ctx context.Context, status pgtype.Text) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE ($1::text IS NULL OR status = $1)`, status).Scan(&n)
	return n, err
}

// GetOrderStatus returns just the status and paid flag, for transition checks.
func (s *Store) GetOrderStatus(ctx context.Context, id pgtype.UUID) (string, bool, error) {
	var status string
	var paid bool
	err := s.db.QueryRow(ctx, `SELECT status, is_paid FROM orders WHERE id = $1`, id).Scan(&status, &paid)
	return status, paid, err
}

// UpdateOrderStatusParams are the inputs for UpdateOrderStatus.
type UpdateOrderStatusParams struct {
	ID     pgtype.UUID
	Status string
}

func (s *Store) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, arg.ID, arg.Status)
	return scanOrder(row)
}

// SetOrderPaidParams are the inputs for SetOrderPaid.
type SetOrderPaidParams struct {
	ID     pgtype.UUID
	IsPaid bool
	PaidAt pgtype.Timestamptz
}

// SetOrderPaid flips the paid flag without touching the fulfilment status.
func (s *Store) SetOrderPaid(ctx context.Context, arg SetOrderPaidParams) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET is_paid = $2, paid_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, arg.ID, arg.IsPaid, arg.PaidAt)
	return scanOrder(row)
}

// SetOrderGatewayParams are the inputs for SetOrderGateway.
type SetOrderGatewayParams struct {
	ID               pgtype.UUID
	GatewayOrderID   pgtype.Text
	GatewayPaymentID pgtype.Text
	GatewayStatus    pgtype.Text
}

// SetOrderGateway records the gateway references for an order.
func (s *Store) SetOrderGateway(ctx context.Context, arg SetOrderGatewayParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders SET gateway_order_id = $2, gateway_payment_id = $3, gateway_status = $4, updated_at = now()
		WHERE id = $1`, arg.ID, arg.GatewayOrderID, arg.GatewayPaymentID, arg.GatewayStatus)
	return err
}

// GetOrderByGatewayOrderID resolves an order from the gateway's order
// reference (webhook path).
func (s *Store) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID)
	return scanOrder(row)
}

func (s *Store) DeleteOrder(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

// CountDeliveredOrdersByUser reports how many orders a user has received.
// First-time-buyer coupons check this.
func (s *Store) CountDeliveredOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE user_id = $1 AND status <> 'CANCELLED'`, userID).Scan(&n)
	return n, err
}
