package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products with search and pagination. Prices
// reflect the caller's tier.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), params, callerTier(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: result.Total},
	})
}

// ProductDetail handles GET /api/v1/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	view, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"), callerTier(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog error", nil)
}

func callerTier(r *http.Request) pricing.Tier {
	name, ok := common.TierName(r.Context())
	if !ok {
		return pricing.TierNone
	}
	switch name {
	case pricing.TierStudent.String():
		return pricing.TierStudent
	case pricing.TierFaculty.String():
		return pricing.TierFaculty
	default:
		return pricing.TierNone
	}
}

// AdminHandler exposes product management endpoints.
type AdminHandler struct {
	Store    *store.Store
	Cache    *Cache
	Validate *validator.Validate
}

type productPayload struct {
	Slug               string `json:"slug" validate:"required,min=2"`
	Name               string `json:"name" validate:"required,min=2"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	ImageURL           string `json:"imageUrl" validate:"omitempty,url"`
	BasePrice          int64  `json:"basePrice" validate:"gte=0"`
	OriginalPrice      int64  `json:"originalPrice" validate:"gte=0"`
	StudentDiscountPct *int32 `json:"studentDiscountPct" validate:"omitempty,gte=0,lte=100"`
	FacultyDiscountPct *int32 `json:"facultyDiscountPct" validate:"omitempty,gte=0,lte=100"`
	Stock              int32  `json:"stock" validate:"gte=0"`
	Active             *bool  `json:"active"`
}

// Create handles POST /api/v1/admin/products.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.Store.CreateProduct(r.Context(), store.CreateProductParams{
		Slug:               strings.TrimSpace(payload.Slug),
		Name:               strings.TrimSpace(payload.Name),
		Description:        payload.Description,
		Category:           payload.Category,
		ImageURL:           payload.ImageURL,
		BasePrice:          payload.BasePrice,
		OriginalPrice:      payload.OriginalPrice,
		StudentDiscountPct: toInt4(payload.StudentDiscountPct),
		FacultyDiscountPct: toInt4(payload.FacultyDiscountPct),
		Stock:              payload.Stock,
		Active:             payload.Active == nil || *payload.Active,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "product slug already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create product", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update handles PUT /api/v1/admin/products/{id}.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := store.ToUUID(chi.URLParam(r, "id"))
	if !id.Valid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	payload, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.Store.UpdateProduct(r.Context(), store.UpdateProductParams{
		ID:                 id,
		Slug:               strings.TrimSpace(payload.Slug),
		Name:               strings.TrimSpace(payload.Name),
		Description:        payload.Description,
		Category:           payload.Category,
		ImageURL:           payload.ImageURL,
		BasePrice:          payload.BasePrice,
		OriginalPrice:      payload.OriginalPrice,
		StudentDiscountPct: toInt4(payload.StudentDiscountPct),
		FacultyDiscountPct: toInt4(payload.FacultyDiscountPct),
		Stock:              payload.Stock,
		Active:             payload.Active == nil || *payload.Active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update product", nil)
		return
	}
	h.invalidate(r, p.Slug)
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete handles DELETE /api/v1/admin/products/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := store.ToUUID(chi.URLParam(r, "id"))
	if !id.Valid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "deleted"}})
}

func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request) (productPayload, bool) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return payload, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return payload, false
		}
	}
	return payload, true
}

func (h *AdminHandler) invalidate(r *http.Request, slug string) {
	for _, tier := range []pricing.Tier{pricing.TierNone, pricing.TierStudent, pricing.TierFaculty} {
		h.Cache.Invalidate(r.Context(), "catalog:detail:"+slug+":"+tier.String())
	}
}

func toInt4(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}
