package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/shopspring/decimal"
)

// Repository is the persistence boundary. It stores and retrieves
// orders and nothing more: the state machine is enforced here in the
// core, not in the repository. UpdateStatus and the item/discount
// writes carry the status the caller last observed; a write against a
// changed order fails with ErrRepositoryConflict and the caller must
// re-fetch and retry.
type Repository interface {
	Create(ctx context.Context, o *Order) (*Order, error)
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, p UpdateStatusParams) (*Order, error)
	AppendItems(ctx context.Context, p AppendItemsParams) (*Order, error)
	SetDiscount(ctx context.Context, p SetDiscountParams) (*Order, error)
}

// Catalog supplies menu data at the moment an item is added. The core
// snapshots name and unit price into the order item and never asks
// again for an existing item.
type Catalog interface {
	MenuItem(ctx context.Context, id uuid.UUID) (CatalogItem, error)
}

type CatalogItem struct {
	ID          uuid.UUID
	Name        string
	UnitPrice   decimal.Decimal
	IsAvailable bool
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Status     enum.OrderStatus
	Type       enum.OrderType
	WaiterID   *uuid.UUID
	RoomNumber string
	From       time.Time
	To         time.Time
	Limit      int32
	Offset     int32
}

// UpdateStatusParams is a compare-and-swap status write plus the audit
// record for the transition.
type UpdateStatusParams struct {
	OrderID     uuid.UUID
	Expected    enum.OrderStatus
	Next        enum.OrderStatus
	CompletedAt *time.Time
	UpdatedAt   time.Time
	Change      StatusChange
}

type AppendItemsParams struct {
	OrderID   uuid.UUID
	Expected  enum.OrderStatus
	Items     []Item
	Totals    Totals
	UpdatedAt time.Time
}

type SetDiscountParams struct {
	OrderID   uuid.UUID
	Expected  enum.OrderStatus
	Discount  decimal.Decimal
	Totals    Totals
	UpdatedAt time.Time
}

// Draft is the validated input for creating an order. The server
// assigns ID, order number and timestamps.
type Draft struct {
	Type         enum.OrderType
	TableID      *uuid.UUID
	RoomNumber   string
	WaiterID     *uuid.UUID
	CustomerName string
	Discount     decimal.Decimal
	Items        []DraftItem
}

type DraftItem struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Notes      string
}

// Manager owns the order lifecycle: creation, totals and status
// transitions. It is a synchronous decision layer over the Repository
// and Catalog collaborators; it holds no state of its own and performs
// no retries.
type Manager struct {
	repo    Repository
	catalog Catalog
	rates   Rates
	now     func() time.Time
}

func NewManager(repo Repository, catalog Catalog, rates Rates) *Manager {
	return &Manager{repo: repo, catalog: catalog, rates: rates, now: time.Now}
}

// Create validates the draft, snapshots catalog prices into the items,
// computes totals and persists a new pending order.
func (m *Manager) Create(ctx context.Context, actor Actor, draft Draft) (*Order, error) {
	if actor.Role == enum.UserRoleKitchen {
		return nil, fmt.Errorf("%w: kitchen staff do not create orders", ErrPermissionDenied)
	}
	if !draft.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrderType, draft.Type)
	}
	if err := validateLocation(draft); err != nil {
		return nil, err
	}
	if len(draft.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if draft.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount is negative", ErrInvalidMonetaryState)
	}

	items, err := m.snapshotItems(ctx, draft.Items)
	if err != nil {
		return nil, err
	}

	totals, err := CalculateTotals(draft.Type, items, draft.Discount, m.rates)
	if err != nil {
		return nil, err
	}

	now := m.now()
	o := &Order{
		Type:         draft.Type,
		TableID:      draft.TableID,
		RoomNumber:   draft.RoomNumber,
		WaiterID:     draft.WaiterID,
		CustomerName: draft.CustomerName,
		Items:        items,
		Discount:     draft.Discount,
		Status:       enum.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyTotals(o, totals)

	return m.repo.Create(ctx, o)
}

// Get returns a single order snapshot.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return m.repo.Get(ctx, id)
}

// List returns order snapshots matching the filter.
func (m *Manager) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return m.repo.List(ctx, f)
}

// Transition requests a status change on behalf of actor. A cashier
// cannot reach completed through here; completion is a side effect of
// payment (CompleteForPayment), not a freeform status edit.
func (m *Manager) Transition(ctx context.Context, actor Actor, id uuid.UUID, next enum.OrderStatus) (*Order, error) {
	return m.transition(ctx, actor, id, next, false)
}

// Cancel moves a non-terminal order to cancelled.
func (m *Manager) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error) {
	return m.transition(ctx, actor, id, enum.OrderStatusCancelled, false)
}

// CompleteForPayment is the payment collaborator's entry point: a
// confirmed payment satisfies the cashier precondition for
// served→completed. The transition is validated like any other.
func (m *Manager) CompleteForPayment(ctx context.Context, actor Actor, id uuid.UUID) (*Order, error) {
	return m.transition(ctx, actor, id, enum.OrderStatusCompleted, true)
}

func (m *Manager) transition(ctx context.Context, actor Actor, id uuid.UUID, next enum.OrderStatus, paymentConfirmed bool) (*Order, error) {
	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if next == enum.OrderStatusCompleted && actor.Role == enum.UserRoleCashier && !paymentConfirmed {
		return nil, fmt.Errorf("%w: completion requires a confirmed payment", ErrPermissionDenied)
	}
	if err := ValidateTransition(o, next, actor); err != nil {
		return nil, err
	}

	now := m.now()
	params := UpdateStatusParams{
		OrderID:   o.ID,
		Expected:  o.Status,
		Next:      next,
		UpdatedAt: now,
		Change: StatusChange{
			OrderID:   o.ID,
			From:      o.Status,
			To:        next,
			ChangedBy: actor.ID,
			ChangedAt: now,
		},
	}
	if next == enum.OrderStatusCompleted {
		// Only served→completed is legal, so CompletedAt is still unset
		// here; it is written exactly once.
		params.CompletedAt = &now
	}

	return m.repo.UpdateStatus(ctx, params)
}

// AddItems appends items to a pending order, snapshotting prices and
// recomputing totals.
func (m *Manager) AddItems(ctx context.Context, actor Actor, id uuid.UUID, items []DraftItem) (*Order, error) {
	if actor.Role == enum.UserRoleKitchen {
		return nil, fmt.Errorf("%w: kitchen staff do not edit orders", ErrPermissionDenied)
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != enum.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrOrderNotEditable, o.Status)
	}

	added, err := m.snapshotItems(ctx, items)
	if err != nil {
		return nil, err
	}

	combined := make([]Item, 0, len(o.Items)+len(added))
	combined = append(combined, o.Items...)
	combined = append(combined, added...)

	totals, err := CalculateTotals(o.Type, combined, o.Discount, m.rates)
	if err != nil {
		return nil, err
	}

	return m.repo.AppendItems(ctx, AppendItemsParams{
		OrderID:   o.ID,
		Expected:  o.Status,
		Items:     added,
		Totals:    totals,
		UpdatedAt: m.now(),
	})
}

// ApplyDiscount sets the order-level discount and recomputes totals.
// Unlike the pure calculator, this mutation path rejects a discount
// that exceeds the subtotal so it never reaches storage.
func (m *Manager) ApplyDiscount(ctx context.Context, actor Actor, id uuid.UUID, discount decimal.Decimal) (*Order, error) {
	switch actor.Role {
	case enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleCashier:
	default:
		return nil, fmt.Errorf("%w: role %s may not apply discounts", ErrPermissionDenied, actor.Role)
	}
	if discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount is negative", ErrInvalidMonetaryState)
	}

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", ErrOrderNotEditable, o.Status)
	}
	if discount.GreaterThan(o.Subtotal) {
		return nil, fmt.Errorf("%w: discount %s exceeds subtotal %s",
			ErrInvalidMonetaryState, discount.StringFixed(2), o.Subtotal.StringFixed(2))
	}

	totals, err := CalculateTotals(o.Type, o.Items, discount, m.rates)
	if err != nil {
		return nil, err
	}

	return m.repo.SetDiscount(ctx, SetDiscountParams{
		OrderID:   o.ID,
		Expected:  o.Status,
		Discount:  discount,
		Totals:    totals,
		UpdatedAt: m.now(),
	})
}

func (m *Manager) snapshotItems(ctx context.Context, drafts []DraftItem) ([]Item, error) {
	items := make([]Item, 0, len(drafts))
	for i, d := range drafts {
		if d.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		ci, err := m.catalog.MenuItem(ctx, d.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if !ci.IsAvailable {
			return nil, fmt.Errorf("items[%d]: %w: %s", i, ErrMenuItemUnavailable, ci.Name)
		}
		items = append(items, Item{
			MenuItemID: ci.ID,
			Name:       ci.Name,
			UnitPrice:  ci.UnitPrice,
			Quantity:   d.Quantity,
			Notes:      d.Notes,
			Status:     enum.OrderItemStatusPending,
		})
	}
	return items, nil
}

func validateLocation(d Draft) error {
	switch d.Type {
	case enum.OrderTypeDineIn:
		if d.TableID == nil {
			return ErrTableRequired
		}
		if d.RoomNumber != "" {
			return fmt.Errorf("%w: dine-in orders take a table, not a room", ErrLocationConflict)
		}
	case enum.OrderTypeRoomService:
		if d.RoomNumber == "" {
			return ErrRoomRequired
		}
		if d.TableID != nil {
			return fmt.Errorf("%w: room-service orders take a room, not a table", ErrLocationConflict)
		}
	case enum.OrderTypeTakeaway:
		if d.TableID != nil || d.RoomNumber != "" {
			return fmt.Errorf("%w: takeaway orders take neither table nor room", ErrLocationConflict)
		}
	}
	return nil
}
