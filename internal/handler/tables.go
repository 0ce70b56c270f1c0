package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/mariahavens/pos-api/internal/ws"
)

// TableStore is the full dining table surface for the table endpoints.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (postgres.Table, error)
	ListTables(ctx context.Context) ([]postgres.Table, error)
	CreateTable(ctx context.Context, tableNumber string, capacity int32) (postgres.Table, error)
	UpdateTableStatus(ctx context.Context, p postgres.UpdateTableStatusParams) (postgres.Table, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store TableStore
	hub   *ws.Hub
}

func NewTableHandler(store TableStore, hub *ws.Hub) *TableHandler {
	return &TableHandler{store: store, hub: hub}
}

// RegisterReadRoutes registers the endpoints every authenticated role
// can use, status changes included: waiters reserve tables and mark
// them cleaned.
func (h *TableHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// RegisterWriteRoutes registers floor layout changes, gated to managers.
func (h *TableHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

type createTableRequest struct {
	TableNumber string `json:"table_number"`
	Capacity    int32  `json:"capacity"`
}

type updateTableStatusRequest struct {
	Status     string `json:"status"`
	ReservedBy string `json:"reserved_by"`
	ReservedAt string `json:"reserved_at"`
}

type tableResponse struct {
	ID             uuid.UUID  `json:"id"`
	TableNumber    string     `json:"table_number"`
	Capacity       int32      `json:"capacity"`
	Status         string     `json:"status"`
	CurrentOrderID *uuid.UUID `json:"current_order_id"`
	WaiterID       *uuid.UUID `json:"waiter_id"`
	ReservedBy     *string    `json:"reserved_by,omitempty"`
	ReservedAt     *time.Time `json:"reserved_at,omitempty"`
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable, try again"})
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": resp})
}

// Get handles GET /tables/{id}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}
	t, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(t))
}

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableNumber == "" || req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number and a positive capacity are required"})
		return
	}
	t, err := h.store.CreateTable(r.Context(), req.TableNumber, req.Capacity)
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(t))
}

// UpdateStatus handles PATCH /tables/{id}/status, used for manual
// state changes: reservations, marking a cleaned table available.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req updateTableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	status := enum.TableStatus(req.Status)
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table status"})
		return
	}

	params := postgres.UpdateTableStatusParams{ID: id, Status: status}
	if status == enum.TableStatusReserved {
		if req.ReservedBy == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reserved_by is required for reservations"})
			return
		}
		params.ReservedBy = &req.ReservedBy
		if req.ReservedAt != "" {
			at, err := time.Parse(time.RFC3339, req.ReservedAt)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reserved_at, use RFC3339"})
				return
			}
			params.ReservedAt = &at
		}
	}

	t, err := h.store.UpdateTableStatus(r.Context(), params)
	if err != nil {
		h.writeTableError(w, err)
		return
	}

	if h.hub != nil {
		payload, err := json.Marshal(map[string]string{
			"table_id": t.ID.String(),
			"status":   string(t.Status),
		})
		if err == nil {
			h.hub.Broadcast(ws.TopicTables, ws.Event{Type: "table.status_changed", Payload: payload})
		}
	}

	writeJSON(w, http.StatusOK, toTableResponse(t))
}

func (h *TableHandler) writeTableError(w http.ResponseWriter, err error) {
	if errors.Is(err, postgres.ErrTableNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		return
	}
	log.Printf("ERROR: table store: %v", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable, try again"})
}

func toTableResponse(t postgres.Table) tableResponse {
	return tableResponse{
		ID:             t.ID,
		TableNumber:    t.TableNumber,
		Capacity:       t.Capacity,
		Status:         string(t.Status),
		CurrentOrderID: t.CurrentOrderID,
		WaiterID:       t.WaiterID,
		ReservedBy:     t.ReservedBy,
		ReservedAt:     t.ReservedAt,
	}
}
