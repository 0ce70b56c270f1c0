package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/shopspring/decimal"
)

// Order is the central entity: one customer transaction with line
// items and derived monetary totals. Totals are always recomputed from
// the items, never edited directly.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	Type        enum.OrderType

	// Exactly one of TableID / RoomNumber is set when the type requires
	// it: TableID for dine_in, RoomNumber for room_service, neither for
	// takeaway.
	TableID      *uuid.UUID
	RoomNumber   string
	WaiterID     *uuid.UUID
	CustomerName string

	Items    []Item
	Discount decimal.Decimal

	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Total         decimal.Decimal

	Status enum.OrderStatus

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Item is one line within an order. Name and UnitPrice are snapshots
// captured when the item was added; the menu catalog is never re-read
// for an existing item, so receipts match what was agreed at order
// time even if menu prices change later.
type Item struct {
	ID         uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int32
	Notes      string
	Status     enum.OrderItemStatus
}

// LineTotal is quantity times the snapshotted unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Actor identifies who is requesting an operation. Supplied per call
// from the session layer; the core never trusts a stored role.
type Actor struct {
	ID   uuid.UUID
	Role enum.UserRole
}

// StatusChange records one transition for the order's audit trail.
type StatusChange struct {
	OrderID   uuid.UUID
	From      enum.OrderStatus
	To        enum.OrderStatus
	ChangedBy uuid.UUID
	ChangedAt time.Time
}

// Rates carries the configured tax and service-charge fractions. They
// are business configuration, injected from outside the core.
type Rates struct {
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
}

// Totals is the derived monetary state of an order.
type Totals struct {
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Total         decimal.Decimal
}
