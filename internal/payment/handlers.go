package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler wires the payment service to HTTP.
type Handler struct {
	Svc *Service
}

// CreateIntent handles POST /api/v1/payments/orders/{orderID}/intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	intent, err := h.Svc.CreateIntent(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": intent})
}

// Confirm handles POST /api/v1/payments/orders/{orderID}/confirm with the
// fields Razorpay's checkout hands back to the browser.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		RazorpayPaymentID string `json:"razorpayPaymentId"`
		RazorpaySignature string `json:"razorpaySignature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	o, err := h.Svc.Confirm(r.Context(), userID, chi.URLParam(r, "orderID"), payload.RazorpayPaymentID, payload.RazorpaySignature)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId": store.UUIDString(o.ID),
		"isPaid":  o.IsPaid,
		"status":  o.Status,
	}})
}

// Webhook handles POST /api/v1/webhooks/razorpay. Unauthenticated; trust
// comes from the signature over the raw body.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read body", nil)
		return
	}
	if err := h.Svc.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.RenderError(w, err)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook processing failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "ok"}})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return pgtype.UUID{}, false
	}
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	id := store.ToUUID(raw)
	if !id.Valid {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	return id, true
}
