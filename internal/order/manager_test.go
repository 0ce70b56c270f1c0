package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mariahavens/pos-api/internal/enum"
)

// --- Mocks ---

type mockRepo struct {
	createFn       func(ctx context.Context, o *Order) (*Order, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*Order, error)
	listFn         func(ctx context.Context, f ListFilter) ([]Order, error)
	updateStatusFn func(ctx context.Context, p UpdateStatusParams) (*Order, error)
	appendItemsFn  func(ctx context.Context, p AppendItemsParams) (*Order, error)
	setDiscountFn  func(ctx context.Context, p SetDiscountParams) (*Order, error)
}

func (m *mockRepo) Create(ctx context.Context, o *Order) (*Order, error) {
	if m.createFn != nil {
		return m.createFn(ctx, o)
	}
	out := *o
	out.ID = uuid.New()
	out.OrderNumber = "ORD-20260829-0001"
	return &out, nil
}

func (m *mockRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, p UpdateStatusParams) (*Order, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, p)
	}
	panic("UpdateStatus not expected")
}

func (m *mockRepo) AppendItems(ctx context.Context, p AppendItemsParams) (*Order, error) {
	if m.appendItemsFn != nil {
		return m.appendItemsFn(ctx, p)
	}
	panic("AppendItems not expected")
}

func (m *mockRepo) SetDiscount(ctx context.Context, p SetDiscountParams) (*Order, error) {
	if m.setDiscountFn != nil {
		return m.setDiscountFn(ctx, p)
	}
	panic("SetDiscount not expected")
}

type mockCatalog struct {
	items map[uuid.UUID]CatalogItem
}

func (m *mockCatalog) MenuItem(ctx context.Context, id uuid.UUID) (CatalogItem, error) {
	ci, ok := m.items[id]
	if !ok {
		return CatalogItem{}, ErrMenuItemNotFound
	}
	return ci, nil
}

// --- Helpers ---

var testRates = Rates{Tax: dec("0.10")}

func newTestManager(repo *mockRepo, catalog *mockCatalog) *Manager {
	m := NewManager(repo, catalog, testRates)
	m.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return m
}

func catalogWith(id uuid.UUID, name, price string) *mockCatalog {
	return &mockCatalog{items: map[uuid.UUID]CatalogItem{
		id: {ID: id, Name: name, UnitPrice: dec(price), IsAvailable: true},
	}}
}

func takeawayDraft(menuItemID uuid.UUID, qty int32) Draft {
	return Draft{
		Type:  enum.OrderTypeTakeaway,
		Items: []DraftItem{{MenuItemID: menuItemID, Quantity: qty}},
	}
}

// --- Create ---

func TestCreate_SnapshotsPriceAndComputesTotals(t *testing.T) {
	menuItemID := uuid.New()
	catalog := catalogWith(menuItemID, "Club Sandwich", "650")
	mgr := newTestManager(&mockRepo{}, catalog)

	o, err := mgr.Create(context.Background(), actor(enum.UserRoleWaiter), takeawayDraft(menuItemID, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Status != enum.OrderStatusPending {
		t.Errorf("status: got %s, want pending", o.Status)
	}
	if len(o.Items) != 1 || !o.Items[0].UnitPrice.Equal(dec("650")) {
		t.Fatalf("item snapshot wrong: %+v", o.Items)
	}
	if !o.Subtotal.Equal(dec("1300")) || !o.Total.Equal(dec("1430")) {
		t.Errorf("totals: subtotal %s total %s, want 1300 / 1430", o.Subtotal, o.Total)
	}

	// A later menu price change must not touch the snapshot.
	catalog.items[menuItemID] = CatalogItem{ID: menuItemID, Name: "Club Sandwich", UnitPrice: dec("900"), IsAvailable: true}
	if !o.Items[0].UnitPrice.Equal(dec("650")) {
		t.Errorf("unit price changed after catalog update: %s", o.Items[0].UnitPrice)
	}
}

func TestCreate_LocationRules(t *testing.T) {
	menuItemID := uuid.New()
	tableID := uuid.New()
	mgr := newTestManager(&mockRepo{}, catalogWith(menuItemID, "Tea", "150"))
	items := []DraftItem{{MenuItemID: menuItemID, Quantity: 1}}

	cases := []struct {
		name    string
		draft   Draft
		wantErr error
	}{
		{"dine-in without table", Draft{Type: enum.OrderTypeDineIn, Items: items}, ErrTableRequired},
		{"room service without room", Draft{Type: enum.OrderTypeRoomService, Items: items}, ErrRoomRequired},
		{"takeaway with table", Draft{Type: enum.OrderTypeTakeaway, TableID: &tableID, Items: items}, ErrLocationConflict},
		{"dine-in with room", Draft{Type: enum.OrderTypeDineIn, TableID: &tableID, RoomNumber: "204", Items: items}, ErrLocationConflict},
		{"unknown type", Draft{Type: enum.OrderType("drive_through"), Items: items}, ErrInvalidOrderType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mgr.Create(context.Background(), actor(enum.UserRoleCashier), tc.draft)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreate_UnavailableMenuItem(t *testing.T) {
	menuItemID := uuid.New()
	catalog := &mockCatalog{items: map[uuid.UUID]CatalogItem{
		menuItemID: {ID: menuItemID, Name: "Seasonal Special", UnitPrice: dec("450"), IsAvailable: false},
	}}
	mgr := newTestManager(&mockRepo{}, catalog)

	_, err := mgr.Create(context.Background(), actor(enum.UserRoleWaiter), takeawayDraft(menuItemID, 1))
	if !errors.Is(err, ErrMenuItemUnavailable) {
		t.Fatalf("expected ErrMenuItemUnavailable, got: %v", err)
	}
}

func TestCreate_EmptyItems(t *testing.T) {
	mgr := newTestManager(&mockRepo{}, &mockCatalog{})
	_, err := mgr.Create(context.Background(), actor(enum.UserRoleWaiter), Draft{Type: enum.OrderTypeTakeaway})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestCreate_KitchenDenied(t *testing.T) {
	mgr := newTestManager(&mockRepo{}, &mockCatalog{})
	_, err := mgr.Create(context.Background(), actor(enum.UserRoleKitchen), Draft{Type: enum.OrderTypeTakeaway})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got: %v", err)
	}
}

// --- Transition ---

func storedOrder(status enum.OrderStatus) *Order {
	o := orderIn(status)
	o.Type = enum.OrderTypeTakeaway
	o.Items = []Item{item("650", 2)}
	o.Subtotal = dec("1300")
	o.Tax = dec("130")
	o.Total = dec("1430")
	return o
}

func TestTransition_PersistsWithCASAndHistory(t *testing.T) {
	stored := storedOrder(enum.OrderStatusPending)
	kitchen := actor(enum.UserRoleKitchen)

	var gotParams UpdateStatusParams
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		updateStatusFn: func(ctx context.Context, p UpdateStatusParams) (*Order, error) {
			gotParams = p
			out := *stored
			out.Status = p.Next
			out.UpdatedAt = p.UpdatedAt
			return &out, nil
		},
	}
	mgr := newTestManager(repo, &mockCatalog{})

	updated, err := mgr.Transition(context.Background(), kitchen, stored.ID, enum.OrderStatusPreparing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusPreparing {
		t.Errorf("status: got %s, want preparing", updated.Status)
	}
	if gotParams.Expected != enum.OrderStatusPending {
		t.Errorf("CAS expected status: got %s, want pending", gotParams.Expected)
	}
	if gotParams.Change.From != enum.OrderStatusPending || gotParams.Change.To != enum.OrderStatusPreparing {
		t.Errorf("history record wrong: %+v", gotParams.Change)
	}
	if gotParams.Change.ChangedBy != kitchen.ID {
		t.Errorf("history actor: got %v, want %v", gotParams.Change.ChangedBy, kitchen.ID)
	}
	if gotParams.CompletedAt != nil {
		t.Errorf("CompletedAt set on a non-completing transition")
	}
}

func TestTransition_ConflictPropagates(t *testing.T) {
	stored := storedOrder(enum.OrderStatusPending)
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		updateStatusFn: func(ctx context.Context, p UpdateStatusParams) (*Order, error) {
			return nil, ErrRepositoryConflict
		},
	}
	mgr := newTestManager(repo, &mockCatalog{})

	_, err := mgr.Transition(context.Background(), actor(enum.UserRoleKitchen), stored.ID, enum.OrderStatusPreparing)
	if !errors.Is(err, ErrRepositoryConflict) {
		t.Fatalf("expected ErrRepositoryConflict, got: %v", err)
	}
}

func TestTransition_CashierCannotCompleteFreeform(t *testing.T) {
	stored := storedOrder(enum.OrderStatusServed)
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
	}
	mgr := newTestManager(repo, &mockCatalog{})

	_, err := mgr.Transition(context.Background(), actor(enum.UserRoleCashier), stored.ID, enum.OrderStatusCompleted)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got: %v", err)
	}
}

func TestCompleteForPayment_SetsCompletedAtOnce(t *testing.T) {
	stored := storedOrder(enum.OrderStatusServed)
	cashier := actor(enum.UserRoleCashier)

	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		updateStatusFn: func(ctx context.Context, p UpdateStatusParams) (*Order, error) {
			if p.CompletedAt == nil {
				t.Fatal("CompletedAt not set on completion")
			}
			out := *stored
			out.Status = p.Next
			out.CompletedAt = p.CompletedAt
			stored = &out
			return &out, nil
		},
	}
	mgr := newTestManager(repo, &mockCatalog{})

	done, err := mgr.CompleteForPayment(context.Background(), cashier, stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("CompletedAt nil after completion")
	}
	first := *done.CompletedAt

	// A second completion is an error, not a silent success, and the
	// timestamp does not move.
	_, err = mgr.CompleteForPayment(context.Background(), cashier, stored.ID)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("re-complete: expected ErrIllegalTransition, got: %v", err)
	}
	if !stored.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt changed on re-complete: %v vs %v", stored.CompletedAt, first)
	}
}

func TestCancel_ThenNothingElse(t *testing.T) {
	stored := storedOrder(enum.OrderStatusPreparing)
	manager := actor(enum.UserRoleManager)

	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		updateStatusFn: func(ctx context.Context, p UpdateStatusParams) (*Order, error) {
			out := *stored
			out.Status = p.Next
			stored = &out
			return &out, nil
		},
	}
	mgr := newTestManager(repo, &mockCatalog{})

	cancelled, err := mgr.Cancel(context.Background(), manager, stored.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != enum.OrderStatusCancelled {
		t.Fatalf("status: got %s, want cancelled", cancelled.Status)
	}

	_, err = mgr.Transition(context.Background(), manager, stored.ID, enum.OrderStatusPreparing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("transition after cancel: expected ErrIllegalTransition, got: %v", err)
	}
}

// --- AddItems / ApplyDiscount ---

func TestAddItems_PendingOnly(t *testing.T) {
	stored := storedOrder(enum.OrderStatusPreparing)
	menuItemID := uuid.New()
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
	}
	mgr := newTestManager(repo, catalogWith(menuItemID, "Coffee", "200"))

	_, err := mgr.AddItems(context.Background(), actor(enum.UserRoleWaiter), stored.ID,
		[]DraftItem{{MenuItemID: menuItemID, Quantity: 1}})
	if !errors.Is(err, ErrOrderNotEditable) {
		t.Fatalf("expected ErrOrderNotEditable, got: %v", err)
	}
}

func TestAddItems_RecomputesTotals(t *testing.T) {
	stored := storedOrder(enum.OrderStatusPending)
	menuItemID := uuid.New()

	var gotParams AppendItemsParams
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		appendItemsFn: func(ctx context.Context, p AppendItemsParams) (*Order, error) {
			gotParams = p
			out := *stored
			out.Items = append(out.Items, p.Items...)
			applyTotals(&out, p.Totals)
			return &out, nil
		},
	}
	mgr := newTestManager(repo, catalogWith(menuItemID, "Coffee", "300"))

	updated, err := mgr.AddItems(context.Background(), actor(enum.UserRoleWaiter), stored.ID,
		[]DraftItem{{MenuItemID: menuItemID, Quantity: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1300 existing + 300 new = 1600; 10% tax = 160; total 1760.
	if !gotParams.Totals.Subtotal.Equal(dec("1600")) {
		t.Errorf("subtotal: got %s, want 1600", gotParams.Totals.Subtotal)
	}
	if !updated.Total.Equal(dec("1760")) {
		t.Errorf("total: got %s, want 1760", updated.Total)
	}
}

func TestApplyDiscount_RejectsExceedingSubtotal(t *testing.T) {
	stored := storedOrder(enum.OrderStatusServed)
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
	}
	mgr := newTestManager(repo, &mockCatalog{})

	_, err := mgr.ApplyDiscount(context.Background(), actor(enum.UserRoleCashier), stored.ID, dec("2000"))
	if !errors.Is(err, ErrInvalidMonetaryState) {
		t.Fatalf("expected ErrInvalidMonetaryState, got: %v", err)
	}
}

func TestApplyDiscount_RoleGate(t *testing.T) {
	stored := storedOrder(enum.OrderStatusServed)
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
	}
	mgr := newTestManager(repo, &mockCatalog{})

	_, err := mgr.ApplyDiscount(context.Background(), actor(enum.UserRoleWaiter), stored.ID, dec("100"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got: %v", err)
	}
}

func TestApplyDiscount_Persists(t *testing.T) {
	stored := storedOrder(enum.OrderStatusServed)
	var gotParams SetDiscountParams
	repo := &mockRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*Order, error) { return stored, nil },
		setDiscountFn: func(ctx context.Context, p SetDiscountParams) (*Order, error) {
			gotParams = p
			out := *stored
			out.Discount = p.Discount
			applyTotals(&out, p.Totals)
			return &out, nil
		},
	}
	mgr := newTestManager(repo, &mockCatalog{})

	updated, err := mgr.ApplyDiscount(context.Background(), actor(enum.UserRoleManager), stored.ID, dec("300"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotParams.Discount.Equal(dec("300")) {
		t.Errorf("discount: got %s, want 300", gotParams.Discount)
	}
	// 1300 + 130 tax - 300 = 1130.
	if !updated.Total.Equal(dec("1130")) {
		t.Errorf("total: got %s, want 1130", updated.Total)
	}
}
