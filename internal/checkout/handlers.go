package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc *Service
}

// Create handles POST /api/v1/checkout. Retries with the same
// Idempotency-Key are rejected upstream by the idempotency middleware.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID := store.ToUUID(raw)
	if !userID.Valid {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	buyer := coupon.Buyer{}
	if name, ok := common.TierName(r.Context()); ok {
		buyer.Tier = coupon.TierFromName(name)
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), userID, buyer, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.RenderError(w, err)
		return
	}
	status, code := coupon.Classify(err)
	common.JSONError(w, status, code, err.Error(), nil)
}
