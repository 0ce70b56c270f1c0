package order

import (
	"fmt"

	"github.com/mariahavens/pos-api/internal/enum"
)

// The lifecycle is a linear chain with a cancel side-exit:
//
//	pending → preparing → ready → served → completed
//	   └──────────┴─────────┴────────┴──→ cancelled
//
// completed and cancelled are terminal. Skipping forward states is
// illegal; cancelled is reachable from every non-terminal state.

// allowedTransitions defines the legal next states per current state.
// Terminal states have no entry.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusServed, enum.OrderStatusCancelled},
	enum.OrderStatusServed:    {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

type edge struct {
	from, to enum.OrderStatus
}

// transitionPolicy is the single source of truth for who may drive
// each legal edge. Role checks live here and nowhere else; screens ask,
// they do not decide.
//
// Waiter entries additionally require ownership (order.WaiterID equal
// to the actor), enforced in ValidateTransition. The cashier entry on
// served→completed is reachable only through the payment path; a
// freeform cashier status edit to completed is refused.
var transitionPolicy = map[edge][]enum.UserRole{
	{enum.OrderStatusPending, enum.OrderStatusPreparing}: {enum.UserRoleKitchen, enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusPreparing, enum.OrderStatusReady}:   {enum.UserRoleKitchen, enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusReady, enum.OrderStatusServed}:      {enum.UserRoleWaiter, enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusServed, enum.OrderStatusCompleted}:  {enum.UserRoleCashier, enum.UserRoleAdmin, enum.UserRoleManager},

	{enum.OrderStatusPending, enum.OrderStatusCancelled}:   {enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusPreparing, enum.OrderStatusCancelled}: {enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusReady, enum.OrderStatusCancelled}:     {enum.UserRoleAdmin, enum.UserRoleManager},
	{enum.OrderStatusServed, enum.OrderStatusCancelled}:    {enum.UserRoleAdmin, enum.UserRoleManager},
}

// ValidateTransition decides whether actor may move o from its current
// status to next. Legality is checked before permission, so a skipped
// state reports ErrIllegalTransition even when the role could never
// drive that edge either.
func ValidateTransition(o *Order, next enum.OrderStatus, actor Actor) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, next)
	}

	legal, ok := allowedTransitions[o.Status]
	if !ok {
		return fmt.Errorf("%w: order %s is %s, a terminal state", ErrIllegalTransition, o.OrderNumber, o.Status)
	}
	found := false
	for _, s := range legal {
		if s == next {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrIllegalTransition, o.Status, next)
	}

	roles := transitionPolicy[edge{o.Status, next}]
	for _, r := range roles {
		if r != actor.Role {
			continue
		}
		if actor.Role == enum.UserRoleWaiter {
			// Waiters advance only their own orders.
			if o.WaiterID == nil || *o.WaiterID != actor.ID {
				return fmt.Errorf("%w: order %s is not assigned to this waiter", ErrPermissionDenied, o.OrderNumber)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: role %s may not move an order from %s to %s", ErrPermissionDenied, actor.Role, o.Status, next)
}
