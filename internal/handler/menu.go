package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/postgres"
	"github.com/shopspring/decimal"
)

// MenuStore manages the menu catalog.
type MenuStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (postgres.MenuItem, error)
	ListMenuItems(ctx context.Context, category string, availableOnly bool) ([]postgres.MenuItem, error)
	CreateMenuItem(ctx context.Context, p postgres.CreateMenuItemParams) (postgres.MenuItem, error)
	UpdateMenuItem(ctx context.Context, p postgres.UpdateMenuItemParams) (postgres.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, id uuid.UUID, available bool) (postgres.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
}

// MenuHandler handles menu catalog endpoints.
type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterReadRoutes registers the read-only endpoints every
// authenticated role can use.
func (h *MenuHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterWriteRoutes registers catalog mutations, gated to managers.
func (h *MenuHandler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/availability", h.SetAvailability)
	r.Delete("/{id}", h.Delete)
}

type menuItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	UnitPrice   string `json:"unit_price"`
	IsAvailable *bool  `json:"is_available"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	UnitPrice   string    `json:"unit_price"`
	IsAvailable bool      `json:"is_available"`
}

// List handles GET /menu.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	q := r.URL.Query()
	items, err := h.store.ListMenuItems(r.Context(), q.Get("category"), q.Get("available") == "true")
	if err != nil {
		h.writeMenuError(w, err)
		return
	}
	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuItemResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}

// Get handles GET /menu/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}
	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		h.writeMenuError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Create handles POST /menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	req, price, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	item, err := h.store.CreateMenuItem(r.Context(), postgres.CreateMenuItemParams{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   price,
		IsAvailable: available,
	})
	if err != nil {
		h.writeMenuError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /menu/{id}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}
	req, price, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	item, err := h.store.UpdateMenuItem(r.Context(), postgres.UpdateMenuItemParams{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   price,
		IsAvailable: available,
	})
	if err != nil {
		h.writeMenuError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// SetAvailability handles PATCH /menu/{id}/availability. Toggling off
// hides the item from new orders; existing orders keep their snapshot.
func (h *MenuHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}
	var req struct {
		IsAvailable *bool `json:"is_available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsAvailable == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_available is required"})
		return
	}
	item, err := h.store.SetMenuItemAvailability(r.Context(), id, *req.IsAvailable)
	if err != nil {
		h.writeMenuError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /menu/{id}.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFromRequest(w, r); !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}
	if err := h.store.DeleteMenuItem(r.Context(), id); err != nil {
		h.writeMenuError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MenuHandler) decodeItem(w http.ResponseWriter, r *http.Request) (menuItemRequest, decimal.Decimal, bool) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, decimal.Zero, false
	}
	if req.Name == "" || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and category are required"})
		return req, decimal.Zero, false
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
		return req, decimal.Zero, false
	}
	return req, price, true
}

func (h *MenuHandler) writeMenuError(w http.ResponseWriter, err error) {
	if errors.Is(err, postgres.ErrMenuItemNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		return
	}
	log.Printf("ERROR: menu store: %v", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable, try again"})
}

func toMenuItemResponse(m postgres.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		UnitPrice:   m.UnitPrice.StringFixed(2),
		IsAvailable: m.IsAvailable,
	}
}
