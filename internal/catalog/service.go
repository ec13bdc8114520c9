package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// Querier captures the database methods the catalog service needs.
type Querier interface {
	ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, error)
	CountProducts(ctx context.Context, search string) (int64, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error)
}

// Service assembles tier-priced product views with a Redis read-through cache.
type Service struct {
	queries      Querier
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      Querier
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Search string
	Page   int
	Limit  int
}

// ProductView is a product with the caller's resolved price attached.
type ProductView struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	Price           int64  `json:"price"`
	ReferencePrice  int64  `json:"referencePrice"`
	DiscountPercent int32  `json:"discountPercent"`
	InStock         bool   `json:"inStock"`
	Stock           int32  `json:"stock"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ProductView `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Search = strings.TrimSpace(values.Get("q"))
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("BAD_REQUEST", "page must be a positive integer")
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, common.BadRequest("BAD_REQUEST", "limit must be a positive integer")
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// List returns active products with prices resolved for the caller's tier.
// The cache key carries the tier so cached entries never leak a discount
// across tiers.
func (s *Service) List(ctx context.Context, params ListParams, tier pricing.Tier) (ListResult, error) {
	key := s.listCacheKey(params, tier)
	var cached ListResult
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	total, err := s.queries.CountProducts(ctx, params.Search)
	if err != nil {
		return ListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, store.ListProductsParams{
		Search: params.Search,
		Limit:  int32(params.Limit),
		Offset: int32((params.Page - 1) * params.Limit),
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		items = append(items, viewOf(row, tier))
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetBySlug returns one active product priced for the caller's tier.
func (s *Service) GetBySlug(ctx context.Context, slug string, tier pricing.Tier) (ProductView, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return ProductView{}, common.BadRequest("BAD_REQUEST", "slug is required")
	}
	key := fmt.Sprintf("catalog:detail:%s:%s", trimmed, tier)
	var cached ProductView
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	row, err := s.queries.GetProductBySlug(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, common.NotFound("product not found")
		}
		return ProductView{}, fmt.Errorf("get product: %w", err)
	}
	view := viewOf(row, tier)
	_ = s.cache.SetJSON(ctx, key, view)
	return view, nil
}

func (s *Service) listCacheKey(params ListParams, tier pricing.Tier) string {
	return fmt.Sprintf("catalog:list:%s:%d:%d:%s", params.Search, params.Page, params.Limit, tier)
}

func viewOf(p store.Product, tier pricing.Tier) ProductView {
	quote := pricing.Resolve(priceOf(p), tier)
	return ProductView{
		ID:              store.UUIDString(p.ID),
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		ImageURL:        p.ImageURL,
		Price:           int64(quote.FinalPrice),
		ReferencePrice:  int64(quote.ReferencePrice),
		DiscountPercent: quote.DiscountPercent,
		InStock:         p.Stock > 0,
		Stock:           p.Stock,
	}
}

func priceOf(p store.Product) pricing.ProductPrice {
	price := pricing.ProductPrice{
		BasePrice:     pricing.Money(p.BasePrice),
		OriginalPrice: pricing.Money(p.OriginalPrice),
	}
	if p.StudentDiscountPct.Valid {
		v := p.StudentDiscountPct.Int32
		price.StudentDiscount = &v
	}
	if p.FacultyDiscountPct.Valid {
		v := p.FacultyDiscountPct.Int32
		price.FacultyDiscount = &v
	}
	return price
}
