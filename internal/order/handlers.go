package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/obs"
	"github.com/campuskart/backend-store/internal/store"
)

// Handler exposes the customer-facing order endpoints.
type Handler struct {
	Store  *store.Store
	Events *events.Bus
}

// List handles GET /api/v1/orders for the authenticated user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	total, err := h.Store.CountOrdersByUser(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Store.ListOrdersByUser(r.Context(), store.ListOrdersByUserParams{
		UserID: userID,
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		response = append(response, orderView(o))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       response,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id := store.ToUUID(chi.URLParam(r, "orderID"))
	if !id.Valid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Store.GetOrderForUser(r.Context(), store.GetOrderForUserParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Store.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	view := orderView(o)
	view["items"] = itemViews(items)
	view["shippingAddress"] = rawJSON(o.ShippingAddress)
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Cancel handles POST /api/v1/orders/{orderID}/cancel. Customers can back
// out while the order has not shipped.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id := store.ToUUID(chi.URLParam(r, "orderID"))
	if !id.Valid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Store.GetOrderForUser(r.Context(), store.GetOrderForUserParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	updated, err := applyTransition(r, h.Store, h.Events, o, StatusCancelled)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(updated)})
}

// applyTransition validates and persists one lifecycle move, emitting the
// matching domain event.
func applyTransition(r *http.Request, st *store.Store, bus *events.Bus, o store.Order, to string) (store.Order, error) {
	if err := CanTransition(o.Status, to); err != nil {
		return store.Order{}, err
	}
	updated, err := st.UpdateOrderStatus(r.Context(), store.UpdateOrderStatusParams{ID: o.ID, Status: to})
	if err != nil {
		return store.Order{}, err
	}
	if obs.OrderStatusTransitions != nil {
		obs.OrderStatusTransitions.WithLabelValues(to).Inc()
	}
	topic := events.TopicOrderStatusChanged
	if to == StatusCancelled {
		topic = events.TopicOrderCancelled
	}
	_ = bus.Emit(r.Context(), st, topic, updated.ID, updated.UserID, map[string]any{
		"orderId": store.UUIDString(updated.ID),
		"from":    o.Status,
		"to":      to,
	})
	return updated, nil
}

func writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidTransition) {
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
}

func callerID(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
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

func orderView(o store.Order) map[string]any {
	view := map[string]any{
		"id":            store.UUIDString(o.ID),
		"status":        o.Status,
		"paymentMethod": o.PaymentMethod,
		"isPaid":        o.IsPaid,
		"itemsPrice":    o.ItemsPrice,
		"discountPrice": o.DiscountPrice,
		"taxPrice":      o.TaxPrice,
		"shippingPrice": o.ShippingPrice,
		"totalPrice":    o.TotalPrice,
		"createdAt":     o.CreatedAt.Time,
	}
	if o.CouponCode.Valid {
		view["couponCode"] = o.CouponCode.String
	}
	if o.PaidAt.Valid {
		view["paidAt"] = o.PaidAt.Time
	}
	return view
}

func itemViews(items []store.OrderItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"productId":      store.UUIDString(it.ProductID),
			"name":           it.Name,
			"qty":            it.Qty,
			"unitPrice":      it.UnitPrice,
			"referencePrice": it.ReferencePrice,
			"subtotal":       it.Subtotal,
		})
	}
	return out
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
