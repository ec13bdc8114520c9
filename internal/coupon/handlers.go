package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/obs"
	"github.com/campuskart/backend-store/internal/pricing"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler exposes coupon validation plus administrative management.
type Handler struct {
	Store *store.Store
	Svc   *Service
}

type couponPayload struct {
	Code           string     `json:"code"`
	Kind           string     `json:"kind"`
	Value          int64      `json:"value"`
	MaxDiscount    *int64     `json:"maxDiscount"`
	MinOrderAmount int64      `json:"minOrderAmount"`
	UsageLimit     *int32     `json:"usageLimit"`
	PerUserLimit   *int32     `json:"perUserLimit"`
	ApplicableFor  string     `json:"applicableFor"`
	Active         *bool      `json:"active"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidTo        *time.Time `json:"validTo"`
}

type validateRequest struct {
	Code        string `json:"code"`
	OrderAmount int64  `json:"orderAmount"`
}

// Validate evaluates a coupon against an order amount for the authenticated
// buyer and returns the discount without consuming anything.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.OrderAmount < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderAmount must not be negative", nil)
		return
	}
	buyer := Buyer{}
	if name, ok := common.TierName(r.Context()); ok {
		buyer.Tier = TierFromName(name)
	}
	var userID pgtype.UUID
	if raw, ok := common.UserID(r.Context()); ok {
		userID = store.ToUUID(raw)
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, buyer, userID, pricing.Money(req.OrderAmount))
	if err != nil {
		status, code := Classify(err)
		countValidation(strings.ToLower(code))
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	countValidation("ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func countValidation(result string) {
	if obs.CouponValidationTotal != nil {
		obs.CouponValidationTotal.WithLabelValues(result).Inc()
	}
}

// Classify maps rule errors onto stable API codes.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "COUPON_NOT_FOUND"
	case errors.Is(err, ErrInactive):
		return http.StatusBadRequest, "COUPON_INACTIVE"
	case errors.Is(err, ErrNotYetValid):
		return http.StatusBadRequest, "COUPON_NOT_YET_VALID"
	case errors.Is(err, ErrExpired):
		return http.StatusBadRequest, "COUPON_EXPIRED"
	case errors.Is(err, ErrMinimumOrderNotMet):
		return http.StatusBadRequest, "MINIMUM_ORDER_NOT_MET"
	case errors.Is(err, ErrUsageLimitReached):
		return http.StatusBadRequest, "USAGE_LIMIT_REACHED"
	case errors.Is(err, ErrPerUserLimitReached):
		return http.StatusBadRequest, "PER_USER_LIMIT_REACHED"
	case errors.Is(err, ErrNotEligible):
		return http.StatusBadRequest, "NOT_ELIGIBLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// TierFromName parses a tier claim back into its enum value.
func TierFromName(name string) pricing.Tier {
	switch name {
	case pricing.TierStudent.String():
		return pricing.TierStudent
	case pricing.TierFaculty.String():
		return pricing.TierFaculty
	default:
		return pricing.TierNone
	}
}

// List returns coupons for the admin dashboard.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	coupons, err := h.Store.ListCoupons(r.Context(), store.ListCouponsParams{
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupons})
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	params, err := buildCreateParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	c, err := h.Store.CreateCoupon(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Update mutates an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = code
	params, err := buildCreateParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	c, err := h.Store.UpdateCoupon(r.Context(), store.UpdateCouponParams(params))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// Delete removes a coupon by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if err := h.Store.DeleteCoupon(r.Context(), code); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": code, "status": "deleted"}})
}

func buildCreateParams(payload couponPayload) (store.CreateCouponParams, error) {
	code := strings.TrimSpace(payload.Code)
	if code == "" {
		return store.CreateCouponParams{}, errors.New("code is required")
	}
	kind := strings.TrimSpace(payload.Kind)
	if kind == "" {
		kind = KindFixed
	}
	switch kind {
	case KindFixed, KindPercentage:
	default:
		return store.CreateCouponParams{}, errors.New("invalid kind")
	}
	if payload.Value <= 0 {
		return store.CreateCouponParams{}, errors.New("value must be positive")
	}
	applicable := strings.TrimSpace(payload.ApplicableFor)
	if applicable == "" {
		applicable = ForAll
	}
	switch applicable {
	case ForAll, ForStudents, ForFirstTimeBuyers:
	default:
		return store.CreateCouponParams{}, errors.New("invalid applicableFor")
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	params := store.CreateCouponParams{
		Code:           code,
		Kind:           kind,
		Value:          payload.Value,
		MinOrderAmount: payload.MinOrderAmount,
		ApplicableFor:  applicable,
		Active:         active,
		ValidFrom:      timeToNullable(payload.ValidFrom),
		ValidTo:        timeToNullable(payload.ValidTo),
	}
	if payload.MaxDiscount != nil {
		params.MaxDiscount = pgtype.Int8{Int64: *payload.MaxDiscount, Valid: true}
	}
	if payload.UsageLimit != nil {
		params.UsageLimit = pgtype.Int4{Int32: *payload.UsageLimit, Valid: true}
	}
	if payload.PerUserLimit != nil {
		params.PerUserLimit = pgtype.Int4{Int32: *payload.PerUserLimit, Valid: true}
	}
	return params, nil
}

func timeToNullable(v *time.Time) pgtype.Timestamptz {
	if v == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *v, Valid: true}
}
