package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/store"
)

// AdminHandler exposes back-office order management. Routes are mounted
// behind the admin role; the agent endpoints behind the agent role.
type AdminHandler struct {
	Store  *store.Store
	Events *events.Bus
}

// List handles GET /api/v1/admin/orders with an optional status filter.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	h.list(w, r, status)
}

// AgentList handles GET /api/v1/agent/orders: only orders an agent can act
// on, that is shipped or out for delivery.
func (h *AdminHandler) AgentList(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(w, r)
	if !ok {
		return
	}
	if !status.Valid {
		status = pgtype.Text{String: StatusShipped, Valid: true}
	}
	if status.String != StatusShipped && status.String != StatusOutForDelivery {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "agents only see SHIPPED or OUT_FOR_DELIVERY orders", nil)
		return
	}
	h.list(w, r, status)
}

func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request, status pgtype.Text) {
	page, perPage := common.ParsePagination(r, 20)
	total, err := h.Store.CountOrders(r.Context(), status)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Store.ListOrders(r.Context(), store.ListOrdersParams{
		Status: status,
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		view := orderView(o)
		view["userId"] = store.UUIDString(o.UserID)
		response = append(response, view)
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       response,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/admin/orders/{orderID}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	items, err := h.Store.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	trail, err := h.Store.ListDomainEventsByOrder(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order events", nil)
		return
	}
	view := orderView(o)
	view["userId"] = store.UUIDString(o.UserID)
	view["items"] = itemViews(items)
	view["shippingAddress"] = rawJSON(o.ShippingAddress)
	eventsOut := make([]map[string]any, 0, len(trail))
	for _, ev := range trail {
		eventsOut = append(eventsOut, map[string]any{
			"topic":     ev.Topic,
			"payload":   rawJSON(ev.Payload),
			"createdAt": ev.CreatedAt.Time,
		})
	}
	view["events"] = eventsOut
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// PatchStatus handles PATCH /api/v1/admin/orders/{orderID}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := strings.ToUpper(strings.TrimSpace(payload.Status))
	if !KnownStatus(target) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}
	updated, err := applyTransition(r, h.Store, h.Events, o, target)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(updated)})
}

// AgentAdvance handles POST /api/v1/agent/orders/{orderID}/advance: one
// forward step along the delivery leg.
func (h *AdminHandler) AgentAdvance(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	var target string
	switch o.Status {
	case StatusShipped:
		target = StatusOutForDelivery
	case StatusOutForDelivery:
		target = StatusDelivered
	default:
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", "order is not on the delivery leg", nil)
		return
	}
	updated, err := applyTransition(r, h.Store, h.Events, o, target)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(updated)})
}

// MarkPaid handles PATCH /api/v1/admin/orders/{orderID}/paid. Payment state
// is orthogonal to the fulfilment status, so no transition check applies.
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload struct {
		IsPaid bool `json:"isPaid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	paidAt := pgtype.Timestamptz{}
	if payload.IsPaid {
		paidAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}
	updated, err := h.Store.SetOrderPaid(r.Context(), store.SetOrderPaidParams{
		ID:     o.ID,
		IsPaid: payload.IsPaid,
		PaidAt: paidAt,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	if payload.IsPaid && !o.IsPaid {
		_ = h.Events.Emit(r.Context(), h.Store, events.TopicOrderPaid, updated.ID, updated.UserID, map[string]any{
			"orderId": store.UUIDString(updated.ID),
			"source":  "manual",
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(updated)})
}

// Delete handles DELETE /api/v1/admin/orders/{orderID}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteOrder(r.Context(), o.ID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "deleted"}})
}

func (h *AdminHandler) load(w http.ResponseWriter, r *http.Request) (store.Order, bool) {
	id := store.ToUUID(chi.URLParam(r, "orderID"))
	if !id.Valid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return store.Order{}, false
	}
	o, err := h.Store.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return store.Order{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return store.Order{}, false
	}
	return o, true
}

func statusFilter(w http.ResponseWriter, r *http.Request) (pgtype.Text, bool) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		return pgtype.Text{}, true
	}
	if !KnownStatus(raw) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
		return pgtype.Text{}, false
	}
	return pgtype.Text{String: raw, Valid: true}, true
}
