package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, slug, name, description, category, image_url, base_price, original_price,
	student_discount_pct, faculty_discount_pct, stock, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Category, &p.ImageURL,
		&p.BasePrice, &p.OriginalPrice, &p.StudentDiscountPct, &p.FacultyDiscountPct,
		&p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProductsParams are the inputs for ListProducts.
type ListProductsParams struct {
	Search string
	Limit  int32
	Offset int32
}

// ListProducts returns active products ordered by recency, optionally
// filtered by a name search term.
func (s *Store) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active AND ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// CountProducts returns the number of active products matching the search term.
func (s *Store) CountProducts(ctx context.Context, search string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM products
		WHERE active AND ($1 = '' OR name ILIKE '%' || $1 || '%')`, search).Scan(&n)
	return n, err
}

// GetProductByID fetches a product regardless of active flag.
func (s *Store) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// GetProductBySlug fetches an active product by slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1 AND active`, slug)
	return scanProduct(row)
}

// CreateProductParams are the inputs for CreateProduct.
type CreateProductParams struct {
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
}

// CreateProduct inserts a catalog entry.
func (s *Store) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (slug, name, description, category, image_url, base_price, original_price,
			student_discount_pct, faculty_discount_pct, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+productColumns,
		arg.Slug, arg.Name, arg.Description, arg.Category, arg.ImageURL, arg.BasePrice, arg.OriginalPrice,
		arg.StudentDiscountPct, arg.FacultyDiscountPct, arg.Stock, arg.Active)
	p, err := scanProduct(row)
	if err != nil && IsUniqueViolation(err) {
		return Product{}, ErrDuplicate
	}
	return p, err
}

// UpdateProductParams are the inputs for UpdateProduct.
type UpdateProductParams struct {
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
}

// UpdateProduct replaces the mutable fields of a catalog entry.
func (s *Store) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE products
		SET slug = $2, name = $3, description = $4, category = $5, image_url = $6,
			base_price = $7, original_price = $8, student_discount_pct = $9,
			faculty_discount_pct = $10, stock = $11, active = $12, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		arg.ID, arg.Slug, arg.Name, arg.Description, arg.Category, arg.ImageURL,
		arg.BasePrice, arg.OriginalPrice, arg.StudentDiscountPct, arg.FacultyDiscountPct,
		arg.Stock, arg.Active)
	p, err := scanProduct(row)
	if err != nil && IsUniqueViolation(err) {
		return Product{}, ErrDuplicate
	}
	return p, err
}

// AdjustProductStock decrements stock, failing the statement when the
// remaining quantity would go negative.
func (s *Store) AdjustProductStock(ctx context.Context, id pgtype.UUID, delta int32) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// DeleteProduct removes a catalog entry.
func (s *Store) DeleteProduct(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
