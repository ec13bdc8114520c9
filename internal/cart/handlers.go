package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler wires the cart service to HTTP. All routes require an
// authenticated user; the cart is addressed implicitly by the caller.
type Handler struct {
	Svc *Service
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Summary(r.Context(), userID, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Qty       int32  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty == 0 {
		payload.Qty = 1
	}
	if _, err := h.Svc.AddItem(r.Context(), userID, payload.ProductID, payload.Qty, buyer.Tier); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Summary(r.Context(), userID, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// UpdateItem handles PATCH /api/v1/cart/items/{itemID}. A qty below one
// removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Qty int32 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), userID, chi.URLParam(r, "itemID"), payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Summary(r.Context(), userID, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), userID, chi.URLParam(r, "itemID")); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Summary(r.Context(), userID, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	result, err := h.Svc.ApplyCoupon(r.Context(), userID, payload.Code, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, buyer, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.Svc.Summary(r.Context(), userID, buyer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (pgtype.UUID, coupon.Buyer, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return pgtype.UUID{}, coupon.Buyer{}, false
	}
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, coupon.Buyer{}, false
	}
	userID := store.ToUUID(raw)
	if !userID.Valid {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, coupon.Buyer{}, false
	}
	buyer := coupon.Buyer{Tier: pricing.TierNone}
	if name, ok := common.TierName(r.Context()); ok {
		buyer.Tier = coupon.TierFromName(name)
	}
	return userID, buyer, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "requested quantity exceeds stock", nil)
	default:
		status, code := coupon.Classify(err)
		common.JSONError(w, status, code, err.Error(), nil)
	}
}
