package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/mariahavens/pos-api/internal/ws"
	"github.com/shopspring/decimal"
)

// PaymentStore persists payments against orders.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p postgres.CreatePaymentParams) (postgres.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]postgres.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
}

// PaymentOrderService is the slice of the order lifecycle payments need.
type PaymentOrderService interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	CompleteForPayment(ctx context.Context, actor order.Actor, id uuid.UUID) (*order.Order, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store  PaymentStore
	orders PaymentOrderService
	tables OrderTableStore
	hub    *ws.Hub
}

func NewPaymentHandler(store PaymentStore, orders PaymentOrderService, tables OrderTableStore, hub *ws.Hub) *PaymentHandler {
	return &PaymentHandler{store: store, orders: orders, tables: tables, hub: hub}
}

func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/payments", h.Add)
	r.Get("/orders/{id}/payments", h.List)
}

type addPaymentRequest struct {
	Method         string `json:"method"`
	Amount         string `json:"amount"`
	AmountReceived string `json:"amount_received"`
	Reference      string `json:"reference"`
}

type paymentResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Method         string    `json:"method"`
	Amount         string    `json:"amount"`
	AmountReceived *string   `json:"amount_received,omitempty"`
	ChangeAmount   *string   `json:"change_amount,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"processed_at"`
}

type addPaymentResponse struct {
	Payment   paymentResponse `json:"payment"`
	Paid      string          `json:"paid"`
	Remaining string          `json:"remaining"`
	Order     *orderResponse  `json:"order,omitempty"`
}

// Add handles POST /orders/{id}/payments. When cumulative completed
// payments cover the order total, the order is completed through the
// payment path and its table sent to cleaning.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req addPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	method := enum.PaymentMethod(req.Method)
	if !method.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	if o.Status != enum.OrderStatusServed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not awaiting payment"})
		return
	}

	params := postgres.CreatePaymentParams{
		OrderID:     orderID,
		Method:      method,
		Amount:      amount,
		Status:      enum.PaymentStatusCompleted,
		ProcessedBy: actor.ID,
	}
	if req.Reference != "" {
		params.ReferenceNumber = &req.Reference
	}
	if req.AmountReceived != "" {
		received, err := decimal.NewFromString(req.AmountReceived)
		if err != nil || received.LessThan(amount) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_received"})
			return
		}
		change := received.Sub(amount).Round(2)
		params.AmountReceived = &received
		params.ChangeAmount = &change
	}

	payment, err := h.store.CreatePayment(r.Context(), params)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	paid, err := h.store.SumPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	remaining := o.Total.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	resp := addPaymentResponse{
		Payment:   toPaymentResponse(payment),
		Paid:      paid.StringFixed(2),
		Remaining: remaining.StringFixed(2),
	}

	if paid.GreaterThanOrEqual(o.Total) {
		completed, err := h.orders.CompleteForPayment(r.Context(), actor, orderID)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		if completed.TableID != nil {
			if err := h.tables.ClearTableByOrder(r.Context(), completed.ID, enum.TableStatusCleaning); err != nil {
				log.Printf("ERROR: release table for order %s: %v", completed.OrderNumber, err)
			}
		}
		h.broadcastCompleted(completed)
		or := toOrderResponse(completed, true)
		resp.Order = &or
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		writeOrderError(w, err)
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": resp})
}

func (h *PaymentHandler) broadcastCompleted(o *order.Order) {
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
	h.hub.Broadcast(ws.TopicOrders, ws.Event{Type: "order.completed", Payload: payload})
	if o.TableID != nil {
		tablePayload, err := json.Marshal(map[string]string{
			"table_id": o.TableID.String(),
			"order_id": o.ID.String(),
		})
		if err != nil {
			return
		}
		h.hub.Broadcast(ws.TopicTables, ws.Event{Type: "table.status_changed", Payload: tablePayload})
	}
}

func toPaymentResponse(p postgres.Payment) paymentResponse {
	resp := paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Method:    string(p.Method),
		Amount:    p.Amount.StringFixed(2),
		Status:    string(p.Status),
		CreatedAt: p.ProcessedAt,
	}
	if p.ReferenceNumber != nil {
		resp.Reference = *p.ReferenceNumber
	}
	if p.AmountReceived != nil {
		s := p.AmountReceived.StringFixed(2)
		resp.AmountReceived = &s
	}
	if p.ChangeAmount != nil {
		s := p.ChangeAmount.StringFixed(2)
		resp.ChangeAmount = &s
	}
	return resp
}
