package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/mariahavens/pos-api/internal/order"
)

// Store implements order.Repository. Status and totals writes are
// compare-and-swap on the status the core last observed; a miss
// surfaces as order.ErrRepositoryConflict and the caller re-fetches.

const maxOrderNumberRetries = 3

const orderColumns = `id, order_number, type, status, table_id, room_number, waiter_id,
	customer_name, discount, subtotal, tax, service_charge, total,
	created_at, updated_at, completed_at`

// Create persists a new order, assigning its ID and a per-day order
// number. Retries on order_number unique violations (two concurrent
// creates can read the same highest sequence).
func (s *Store) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		created, err := s.createTx(ctx, o)
		if err == nil {
			return created, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *Store) createTx(ctx context.Context, o *order.Order) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orderNumber, err := nextOrderNumber(ctx, tx, o.CreatedAt)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, type, status, table_id, room_number, waiter_id,
			customer_name, discount, subtotal, tax, service_charge, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING `+orderColumns,
		orderNumber, o.Type, o.Status, o.TableID, o.RoomNumber, o.WaiterID,
		o.CustomerName, decimalToNumeric(o.Discount), decimalToNumeric(o.Subtotal),
		decimalToNumeric(o.Tax), decimalToNumeric(o.ServiceCharge), decimalToNumeric(o.Total),
		o.CreatedAt,
	)
	created, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	created.Items = make([]order.Item, 0, len(o.Items))
	for i, item := range o.Items {
		inserted, err := insertItem(ctx, tx, created.ID, item)
		if err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		created.Items = append(created.Items, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit tx", err)
	}
	return created, nil
}

// Get returns an order with its items.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	items, err := s.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// List returns orders matching the filter, newest first, without their
// item lists (list views show totals, detail views fetch items).
func (s *Store) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.Type != "" {
		where = append(where, "type = "+arg(f.Type))
	}
	if f.WaiterID != nil {
		where = append(where, "waiter_id = "+arg(*f.WaiterID))
	}
	if f.RoomNumber != "" {
		where = append(where, "room_number = "+arg(f.RoomNumber))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list orders", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list orders", err)
	}
	return orders, nil
}

// UpdateStatus performs the CAS status write and records the
// transition in order_status_history atomically.
func (s *Store) UpdateStatus(ctx context.Context, p order.UpdateStatusParams) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2, completed_at = COALESCE(completed_at, $3)
		WHERE id = $4 AND status = $5
		RETURNING `+orderColumns,
		p.Next, p.UpdatedAt, p.CompletedAt, p.OrderID, p.Expected,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, s.classifyMiss(ctx, p.OrderID)
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.Change.OrderID, p.Change.From, p.Change.To, p.Change.ChangedBy, p.Change.ChangedAt,
	)
	if err != nil {
		return nil, unavailable("insert status history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit tx", err)
	}

	items, err := s.listItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// AppendItems adds line items and writes the recomputed totals, both
// guarded by the expected status.
func (s *Store) AppendItems(ctx context.Context, p order.AppendItemsParams) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET subtotal = $1, tax = $2, service_charge = $3, total = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		decimalToNumeric(p.Totals.Subtotal), decimalToNumeric(p.Totals.Tax),
		decimalToNumeric(p.Totals.ServiceCharge), decimalToNumeric(p.Totals.Total),
		p.UpdatedAt, p.OrderID, p.Expected,
	)
	if err != nil {
		return nil, unavailable("update totals", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.classifyMiss(ctx, p.OrderID)
	}

	for i, item := range p.Items {
		if _, err := insertItem(ctx, tx, p.OrderID, item); err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit tx", err)
	}
	return s.Get(ctx, p.OrderID)
}

// SetDiscount writes the discount and recomputed totals, guarded by
// the expected status.
func (s *Store) SetDiscount(ctx context.Context, p order.SetDiscountParams) (*order.Order, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET discount = $1, subtotal = $2, tax = $3, service_charge = $4, total = $5, updated_at = $6
		WHERE id = $7 AND status = $8`,
		decimalToNumeric(p.Discount), decimalToNumeric(p.Totals.Subtotal),
		decimalToNumeric(p.Totals.Tax), decimalToNumeric(p.Totals.ServiceCharge),
		decimalToNumeric(p.Totals.Total), p.UpdatedAt, p.OrderID, p.Expected,
	)
	if err != nil {
		return nil, unavailable("update discount", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.classifyMiss(ctx, p.OrderID)
	}
	return s.Get(ctx, p.OrderID)
}

// ListStatusChanges returns an order's transition history, oldest
// first.
func (s *Store) ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]order.StatusChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, from_status, to_status, changed_by, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY changed_at`, orderID)
	if err != nil {
		return nil, unavailable("list status history", err)
	}
	defer rows.Close()

	var changes []order.StatusChange
	for rows.Next() {
		var c order.StatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, unavailable("scan status history", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list status history", err)
	}
	return changes, nil
}

// --- Helpers ---

// classifyMiss turns a zero-row CAS write into the right error: the
// order either does not exist or was changed concurrently.
func (s *Store) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return unavailable("check order exists", err)
	}
	if !exists {
		return order.ErrOrderNotFound
	}
	return order.ErrRepositoryConflict
}

func nextOrderNumber(ctx context.Context, tx pgx.Tx, at time.Time) (string, error) {
	prefix := "ORD-" + at.Format("20060102") + "-"

	var last string
	err := tx.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE order_number LIKE $1
		ORDER BY order_number DESC
		LIMIT 1`, prefix+"%").Scan(&last)

	seq := 1
	switch {
	case err == nil:
		n, convErr := parseSequence(last)
		if convErr != nil {
			return "", convErr
		}
		seq = n + 1
	case errors.Is(err, pgx.ErrNoRows):
		// first order of the day
	default:
		return "", unavailable("next order number", err)
	}

	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func parseSequence(orderNumber string) (int, error) {
	idx := strings.LastIndex(orderNumber, "-")
	if idx < 0 {
		return 0, fmt.Errorf("malformed order number %q", orderNumber)
	}
	var n int
	if _, err := fmt.Sscanf(orderNumber[idx+1:], "%d", &n); err != nil {
		return 0, fmt.Errorf("malformed order number %q: %w", orderNumber, err)
	}
	return n, nil
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func insertItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, item order.Item) (order.Item, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, menu_item_id, name, unit_price, quantity, notes, status`,
		orderID, item.MenuItemID, item.Name, decimalToNumeric(item.UnitPrice),
		item.Quantity, item.Notes, item.Status,
	)
	return scanItem(row)
}

func (s *Store) listItems(ctx context.Context, orderID uuid.UUID) ([]order.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, menu_item_id, name, unit_price, quantity, notes, status
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, unavailable("list order items", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list order items", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (order.Item, error) {
	var (
		item  order.Item
		price pgtype.Numeric
	)
	err := row.Scan(&item.ID, &item.MenuItemID, &item.Name, &price, &item.Quantity, &item.Notes, &item.Status)
	if err != nil {
		return order.Item{}, unavailable("scan order item", err)
	}
	item.UnitPrice = numericToDecimal(price)
	return item, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o                                     order.Order
		status                                string
		orderType                             string
		discount, subtotal, tax, service, tot pgtype.Numeric
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &orderType, &status, &o.TableID, &o.RoomNumber, &o.WaiterID,
		&o.CustomerName, &discount, &subtotal, &tax, &service, &tot,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, unavailable("scan order", err)
	}
	o.Type = enum.OrderType(orderType)
	o.Status = enum.OrderStatus(status)
	o.Discount = numericToDecimal(discount)
	o.Subtotal = numericToDecimal(subtotal)
	o.Tax = numericToDecimal(tax)
	o.ServiceCharge = numericToDecimal(service)
	o.Total = numericToDecimal(tot)
	return &o, nil
}

// unavailable wraps driver failures in the core's taxonomy so callers
// can tell "backend unreachable" from a rejected operation.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, order.ErrRepositoryUnavailable, err)
}
