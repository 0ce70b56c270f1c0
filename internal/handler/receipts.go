package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
)

// ReceiptHandler renders the frozen snapshot of a completed order.
type ReceiptHandler struct {
	orders   PaymentOrderService
	payments PaymentStore
	history  HistoryStore
}

func NewReceiptHandler(orders PaymentOrderService, payments PaymentStore, history HistoryStore) *ReceiptHandler {
	return &ReceiptHandler{orders: orders, payments: payments, history: history}
}

func (h *ReceiptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{id}/receipt", h.Get)
}

type receiptResponse struct {
	OrderNumber   string                 `json:"order_number"`
	Type          string                 `json:"type"`
	TableID       *uuid.UUID             `json:"table_id,omitempty"`
	RoomNumber    string                 `json:"room_number,omitempty"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	Items         []orderItemResponse    `json:"items"`
	Subtotal      string                 `json:"subtotal"`
	Discount      string                 `json:"discount"`
	Tax           string                 `json:"tax"`
	ServiceCharge string                 `json:"service_charge"`
	Total         string                 `json:"total"`
	Payments      []paymentResponse      `json:"payments"`
	History       []statusChangeResponse `json:"history"`
	CreatedAt     time.Time              `json:"created_at"`
	CompletedAt   *time.Time             `json:"completed_at"`
}

// Get handles GET /orders/{id}/receipt. Receipts only exist for
// completed orders; everything on them is a frozen snapshot.
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	if o.Status != enum.OrderStatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "receipt is only available for completed orders"})
		return
	}

	payments, err := h.payments.ListPaymentsByOrder(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	changes, err := h.history.ListStatusChanges(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := receiptResponse{
		OrderNumber:   o.OrderNumber,
		Type:          string(o.Type),
		TableID:       o.TableID,
		RoomNumber:    o.RoomNumber,
		CustomerName:  o.CustomerName,
		Subtotal:      o.Subtotal.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		Tax:           o.Tax.StringFixed(2),
		ServiceCharge: o.ServiceCharge.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		CreatedAt:     o.CreatedAt,
		CompletedAt:   o.CompletedAt,
	}
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
	resp.Payments = make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp.Payments[i] = toPaymentResponse(p)
	}
	resp.History = make([]statusChangeResponse, len(changes))
	for i, c := range changes {
		resp.History[i] = statusChangeResponse{
			From:      string(c.From),
			To:        string(c.To),
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
