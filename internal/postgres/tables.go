package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mariahavens/pos-api/internal/enum"
)

// Table is a dining table. Its status reacts to the order lifecycle in
// the handler layer (occupied on order creation, cleaning on
// completion); nothing in the order core writes table state.
type Table struct {
	ID             uuid.UUID
	TableNumber    string
	Capacity       int32
	Status         enum.TableStatus
	CurrentOrderID *uuid.UUID
	WaiterID       *uuid.UUID
	ReservedBy     *string
	ReservedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var ErrTableNotFound = errors.New("table not found")

const tableColumns = `id, table_number, capacity, status, current_order_id, waiter_id,
	reserved_by, reserved_at, created_at, updated_at`

func (s *Store) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tableColumns+` FROM dining_tables WHERE id = $1`, id)
	return scanTable(row)
}

func (s *Store) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tableColumns+` FROM dining_tables ORDER BY table_number`)
	if err != nil {
		return nil, unavailable("list tables", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list tables", err)
	}
	return tables, nil
}

func (s *Store) CreateTable(ctx context.Context, tableNumber string, capacity int32) (Table, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO dining_tables (table_number, capacity)
		VALUES ($1, $2)
		RETURNING `+tableColumns,
		tableNumber, capacity,
	)
	return scanTable(row)
}

type UpdateTableStatusParams struct {
	ID             uuid.UUID
	Status         enum.TableStatus
	CurrentOrderID *uuid.UUID
	WaiterID       *uuid.UUID
	ReservedBy     *string
	ReservedAt     *time.Time
}

func (s *Store) UpdateTableStatus(ctx context.Context, p UpdateTableStatusParams) (Table, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE dining_tables
		SET status = $1, current_order_id = $2, waiter_id = $3,
			reserved_by = $4, reserved_at = $5, updated_at = now()
		WHERE id = $6
		RETURNING `+tableColumns,
		p.Status, p.CurrentOrderID, p.WaiterID, p.ReservedBy, p.ReservedAt, p.ID,
	)
	return scanTable(row)
}

// ClearTableByOrder releases whichever table points at the given order
// and moves it to the given status. Used when an order completes
// (cleaning) or is cancelled (available).
func (s *Store) ClearTableByOrder(ctx context.Context, orderID uuid.UUID, status enum.TableStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dining_tables
		SET status = $1, current_order_id = NULL, waiter_id = NULL, updated_at = now()
		WHERE current_order_id = $2`,
		status, orderID,
	)
	if err != nil {
		return unavailable("clear table", err)
	}
	return nil
}

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CurrentOrderID,
		&t.WaiterID, &t.ReservedBy, &t.ReservedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Table{}, ErrTableNotFound
		}
		return Table{}, unavailable("scan table", err)
	}
	return t, nil
}
