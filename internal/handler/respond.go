package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mariahavens/pos-api/internal/order"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeOrderError maps the order core's error taxonomy to HTTP status
// codes. Each kind gets a distinct status so clients can explain the
// failure instead of showing a generic error.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, order.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrRepositoryConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, order.ErrRepositoryUnavailable):
		log.Printf("ERROR: repository unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable, try again"})
	case isDraftError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isDraftError checks for the core's validation errors that should
// result in 400 Bad Request.
func isDraftError(err error) bool {
	return errors.Is(err, order.ErrEmptyItems) ||
		errors.Is(err, order.ErrInvalidOrderType) ||
		errors.Is(err, order.ErrInvalidQuantity) ||
		errors.Is(err, order.ErrMenuItemNotFound) ||
		errors.Is(err, order.ErrMenuItemUnavailable) ||
		errors.Is(err, order.ErrTableRequired) ||
		errors.Is(err, order.ErrRoomRequired) ||
		errors.Is(err, order.ErrLocationConflict) ||
		errors.Is(err, order.ErrOrderNotEditable) ||
		errors.Is(err, order.ErrInvalidMonetaryState)
}
