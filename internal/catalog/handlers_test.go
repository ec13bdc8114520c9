package catalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/campuskart/backend-store/internal/catalog"
	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

type productsResponse struct {
	Data       []catalog.ProductView `json:"data"`
	Pagination struct {
		Page       int   `json:"page"`
		PerPage    int   `json:"per_page"`
		TotalItems int64 `json:"total_items"`
	} `json:"pagination"`
}

type productDetailResponse struct {
	Data catalog.ProductView `json:"data"`
}

func TestCatalogHandlers(t *testing.T) {
	queries := newFakeCatalogQueries(t)
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)

	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	t.Run("products list anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

		var resp productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "CS50 Hoodie", resp.Data[0].Name)
		require.Equal(t, int64(1000), resp.Data[0].Price)
		require.Equal(t, int64(1500), resp.Data[0].ReferencePrice)
		require.Equal(t, 1, resp.Pagination.Page)
		require.Equal(t, 1, resp.Pagination.PerPage)
		require.Equal(t, int64(2), resp.Pagination.TotalItems)
	})

	t.Run("products list student tier", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1", nil)
		req = req.WithContext(common.WithTier(req.Context(), pricing.TierStudent.String()))
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, int64(750), resp.Data[0].Price)
		require.Equal(t, int32(50), resp.Data[0].DiscountPercent)
	})

	t.Run("product detail faculty tier", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/cs50-hoodie", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("slug", "cs50-hoodie")
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
		ctx = common.WithTier(ctx, pricing.TierFaculty.String())
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp productDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(500), resp.Data.Price)
		require.True(t, resp.Data.InStock)
	})

	t.Run("product detail missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/ghost", nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("slug", "ghost")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type fakeCatalogQueries struct {
	products []store.Product
}

func newFakeCatalogQueries(t *testing.T) *fakeCatalogQueries {
	t.Helper()
	return &fakeCatalogQueries{products: []store.Product{
		{
			ID:                 mustUUID(t, "11111111-1111-1111-1111-111111111111"),
			Slug:               "cs50-hoodie",
			Name:               "CS50 Hoodie",
			BasePrice:          1000,
			OriginalPrice:      1500,
			StudentDiscountPct: pgtype.Int4{Int32: 25, Valid: true},
			FacultyDiscountPct: pgtype.Int4{Int32: 50, Valid: true},
			Stock:              12,
			Active:             true,
		},
		{
			ID:            mustUUID(t, "22222222-2222-2222-2222-222222222222"),
			Slug:          "lab-notebook",
			Name:          "Lab Notebook",
			BasePrice:     300,
			OriginalPrice: 300,
			Stock:         0,
			Active:        true,
		},
	}}
}

func (f *fakeCatalogQueries) ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, error) {
	filtered := f.filter(arg.Search)
	start := int(arg.Offset)
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + int(arg.Limit)
	if end > len(filtered) {
		end = len(filtered)
	}
	return append([]store.Product(nil), filtered[start:end]...), nil
}

func (f *fakeCatalogQueries) CountProducts(ctx context.Context, search string) (int64, error) {
	return int64(len(f.filter(search))), nil
}

func (f *fakeCatalogQueries) GetProductBySlug(ctx context.Context, slug string) (store.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return store.Product{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error) {
	for _, p := range f.products {
		if p.ID.Bytes == id.Bytes {
			return p, nil
		}
	}
	return store.Product{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) filter(search string) []store.Product {
	if search == "" {
		return f.products
	}
	var out []store.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			out = append(out, p)
		}
	}
	return out
}

func mustUUID(t *testing.T, value string) pgtype.UUID {
	t.Helper()
	var id pgtype.UUID
	require.NoError(t, id.Scan(value))
	if !id.Valid {
		require.FailNow(t, fmt.Sprintf("invalid uuid %s", value))
	}
	return id
}
