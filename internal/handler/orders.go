package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/middleware"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/mariahavens/pos-api/internal/ws"
	"github.com/shopspring/decimal"
)

// OrderService defines the lifecycle operations order handlers need.
// Satisfied by *order.Manager; narrow interface for testability.
type OrderService interface {
	Create(ctx context.Context, actor order.Actor, draft order.Draft) (*order.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, error)
	Transition(ctx context.Context, actor order.Actor, id uuid.UUID, next enum.OrderStatus) (*order.Order, error)
	Cancel(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error)
	AddItems(ctx context.Context, actor order.Actor, id uuid.UUID, items []order.DraftItem) (*order.Order, error)
	ApplyDiscount(ctx context.Context, actor order.Actor, id uuid.UUID, discount decimal.Decimal) (*order.Order, error)
}

// OrderTableStore is the table state the order handlers react on:
// occupy on create, release on cancel/complete.
type OrderTableStore interface {
	UpdateTableStatus(ctx context.Context, p postgres.UpdateTableStatusParams) (postgres.Table, error)
	ClearTableByOrder(ctx context.Context, orderID uuid.UUID, status enum.TableStatus) error
}

// HistoryStore reads an order's transition audit trail.
type HistoryStore interface {
	ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]order.StatusChange, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc     OrderService
	tables  OrderTableStore
	history HistoryStore
	hub     *ws.Hub
}

func NewOrderHandler(svc OrderService, tables OrderTableStore, history HistoryStore, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, tables: tables, history: history, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/history", h.History)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/items", h.AddItems)
	r.Patch("/{id}/discount", h.ApplyDiscount)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Type         string                   `json:"type"`
	TableID      string                   `json:"table_id"`
	RoomNumber   string                   `json:"room_number"`
	WaiterID     string                   `json:"waiter_id"`
	CustomerName string                   `json:"customer_name"`
	Discount     string                   `json:"discount"`
	Items        []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type applyDiscountRequest struct {
	Discount string `json:"discount"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Type          string              `json:"type"`
	Status        string              `json:"status"`
	TableID       *uuid.UUID          `json:"table_id"`
	RoomNumber    string              `json:"room_number,omitempty"`
	WaiterID      *uuid.UUID          `json:"waiter_id"`
	CustomerName  string              `json:"customer_name"`
	Discount      string              `json:"discount"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	ServiceCharge string              `json:"service_charge"`
	Total         string              `json:"total"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	CompletedAt   *time.Time          `json:"completed_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  string    `json:"unit_price"`
	Quantity   int32     `json:"quantity"`
	LineTotal  string    `json:"line_total"`
	Notes      string    `json:"notes,omitempty"`
	Status     string    `json:"status"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type statusChangeResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy uuid.UUID `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	draft := order.Draft{
		Type:         enum.OrderType(req.Type),
		RoomNumber:   req.RoomNumber,
		CustomerName: req.CustomerName,
	}

	if req.TableID != "" {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		draft.TableID = &tid
	}

	switch {
	case req.WaiterID != "":
		wid, err := uuid.Parse(req.WaiterID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid waiter_id"})
			return
		}
		draft.WaiterID = &wid
	case actor.Role == enum.UserRoleWaiter:
		// A waiter creating an order is assigned to it.
		draft.WaiterID = &actor.ID
	}

	if req.Discount != "" {
		d, err := decimal.NewFromString(req.Discount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
			return
		}
		draft.Discount = d
	}

	for i, item := range req.Items {
		mid, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "items[" + strconv.Itoa(i) + "]: invalid menu_item_id",
			})
			return
		}
		draft.Items = append(draft.Items, order.DraftItem{
			MenuItemID: mid,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		})
	}

	created, err := h.svc.Create(r.Context(), actor, draft)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	if created.TableID != nil {
		h.occupyTable(r.Context(), created)
	}
	h.broadcastOrder("order.created", created, ws.TopicOrders, ws.TopicKitchen)

	writeJSON(w, http.StatusCreated, toOrderResponse(created, true))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	f := order.ListFilter{Limit: 20}
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			f.Limit = int32(v)
		}
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			f.Offset = int32(v)
		}
	}

	if s := q.Get("status"); s != "" {
		status := enum.OrderStatus(s)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		f.Status = status
	}
	if s := q.Get("type"); s != "" {
		typ := enum.OrderType(s)
		if !typ.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type filter"})
			return
		}
		f.Type = typ
	}
	if s := q.Get("room_number"); s != "" {
		f.RoomNumber = s
	}
	if s := q.Get("waiter_id"); s != "" {
		wid, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid waiter_id filter"})
			return
		}
		f.WaiterID = &wid
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		f.From = t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		f.To = t.AddDate(0, 0, 1)
	}

	// Waiters see their own orders regardless of filter.
	if actor.Role == enum.UserRoleWaiter {
		f.WaiterID = &actor.ID
	}

	orders, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i], false)
	}
	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  int(f.Limit),
		Offset: int(f.Offset),
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, true))
}

// History handles GET /orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeOrderError(w, err)
		return
	}

	changes, err := h.history.ListStatusChanges(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	resp := make([]statusChangeResponse, len(changes))
	for i, c := range changes {
		resp[i] = statusChangeResponse{
			From:      string(c.From),
			To:        string(c.To),
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": resp})
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	updated, err := h.svc.Transition(r.Context(), actor, id, enum.OrderStatus(req.Status))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.reactToStatus(r.Context(), updated)
	h.broadcastOrder("order.status_changed", updated, ws.TopicOrders, ws.TopicKitchen)

	writeJSON(w, http.StatusOK, toOrderResponse(updated, true))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), actor, id)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.reactToStatus(r.Context(), cancelled)
	h.broadcastOrder("order.cancelled", cancelled, ws.TopicOrders, ws.TopicKitchen)

	writeJSON(w, http.StatusOK, toOrderResponse(cancelled, true))
}

// AddItems handles POST /orders/{id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req struct {
		Items []createOrderItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]order.DraftItem, 0, len(req.Items))
	for i, item := range req.Items {
		mid, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "items[" + strconv.Itoa(i) + "]: invalid menu_item_id",
			})
			return
		}
		items = append(items, order.DraftItem{MenuItemID: mid, Quantity: item.Quantity, Notes: item.Notes})
	}

	updated, err := h.svc.AddItems(r.Context(), actor, id, items)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.broadcastOrder("order.items_added", updated, ws.TopicOrders, ws.TopicKitchen)
	writeJSON(w, http.StatusOK, toOrderResponse(updated, true))
}

// ApplyDiscount handles PATCH /orders/{id}/discount.
func (h *OrderHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req applyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	discount, err := decimal.NewFromString(req.Discount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
		return
	}

	updated, err := h.svc.ApplyDiscount(r.Context(), actor, id, discount)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated, true))
}

// --- Helpers ---

func actorFromRequest(w http.ResponseWriter, r *http.Request) (order.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return order.Actor{}, false
	}
	return order.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// occupyTable marks the order's table occupied. Table state is a
// reaction to order events, not part of the order write, so a failure
// here is logged and the order still succeeds.
func (h *OrderHandler) occupyTable(ctx context.Context, o *order.Order) {
	_, err := h.tables.UpdateTableStatus(ctx, postgres.UpdateTableStatusParams{
		ID:             *o.TableID,
		Status:         enum.TableStatusOccupied,
		CurrentOrderID: &o.ID,
		WaiterID:       o.WaiterID,
	})
	if err != nil {
		log.Printf("ERROR: occupy table for order %s: %v", o.OrderNumber, err)
		return
	}
	h.broadcastTable(o)
}

// reactToStatus updates table state for terminal transitions:
// completion sends the table to cleaning, cancellation frees it.
func (h *OrderHandler) reactToStatus(ctx context.Context, o *order.Order) {
	if o.TableID == nil {
		return
	}
	var next enum.TableStatus
	switch o.Status {
	case enum.OrderStatusCompleted:
		next = enum.TableStatusCleaning
	case enum.OrderStatusCancelled:
		next = enum.TableStatusAvailable
	default:
		return
	}
	if err := h.tables.ClearTableByOrder(ctx, o.ID, next); err != nil {
		log.Printf("ERROR: release table for order %s: %v", o.OrderNumber, err)
		return
	}
	h.broadcastTable(o)
}

type orderEventPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Type        string    `json:"type"`
}

func (h *OrderHandler) broadcastOrder(eventType string, o *order.Order, topics ...string) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(orderEventPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Type:        string(o.Type),
	})
	if err != nil {
		return
	}
	for _, topic := range topics {
		h.hub.Broadcast(topic, ws.Event{Type: eventType, Payload: payload})
	}
}

func (h *OrderHandler) broadcastTable(o *order.Order) {
	if h.hub == nil || o.TableID == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"table_id": o.TableID.String(),
		"order_id": o.ID.String(),
	})
	if err != nil {
		return
	}
	h.hub.Broadcast(ws.TopicTables, ws.Event{Type: "table.status_changed", Payload: payload})
}

func toOrderResponse(o *order.Order, withItems bool) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Type:          string(o.Type),
		Status:        string(o.Status),
		TableID:       o.TableID,
		RoomNumber:    o.RoomNumber,
		WaiterID:      o.WaiterID,
		CustomerName:  o.CustomerName,
		Discount:      o.Discount.StringFixed(2),
		Subtotal:      o.Subtotal.StringFixed(2),
		Tax:           o.Tax.StringFixed(2),
		ServiceCharge: o.ServiceCharge.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
	}
	if withItems {
		resp.Items = make([]orderItemResponse, len(o.Items))
		for i, item := range o.Items {
			resp.Items[i] = orderItemResponse{
				ID:         item.ID,
				MenuItemID: item.MenuItemID,
				Name:       item.Name,
				UnitPrice:  item.UnitPrice.StringFixed(2),
				Quantity:   item.Quantity,
				LineTotal:  item.LineTotal().StringFixed(2),
				Notes:      item.Notes,
				Status:     string(item.Status),
			}
		}
	}
	return resp
}
