package order

import "errors"

// Errors returned by the order core. Callers branch on these with
// errors.Is; HTTP handlers map each to a distinct status code so the
// UI can explain the failure instead of showing a generic error.
var (
	// ErrIllegalTransition means the requested status change violates
	// the state machine. The caller should re-read the current status
	// and pick a valid next step; never retried automatically.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrPermissionDenied means the actor's role or ownership does not
	// authorize an otherwise legal transition.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidMonetaryState means a negative quantity, price or
	// discount reached the calculator, or a discount exceeds the
	// subtotal on a mutation path. Rejected before anything persists.
	ErrInvalidMonetaryState = errors.New("invalid monetary state")

	// ErrRepositoryConflict means another actor changed the order
	// between our read and write. Callers must re-fetch and retry,
	// not blindly overwrite.
	ErrRepositoryConflict = errors.New("order changed concurrently")

	// ErrRepositoryUnavailable means the persistence layer could not
	// be reached. The transition must not be assumed to have happened.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	ErrOrderNotFound = errors.New("order not found")
)

// Draft validation errors.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidOrderType    = errors.New("invalid order type")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrTableRequired       = errors.New("table_id is required for dine-in orders")
	ErrRoomRequired        = errors.New("room_number is required for room-service orders")
	ErrLocationConflict    = errors.New("order type does not allow this table/room assignment")
	ErrOrderNotEditable    = errors.New("order items can only change while pending")
)
