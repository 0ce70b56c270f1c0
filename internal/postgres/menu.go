package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mariahavens/pos-api/internal/order"
	"github.com/shopspring/decimal"
)

// MenuItem is a catalog entry. Orders snapshot Name and UnitPrice at
// add time; edits here never touch existing orders.
type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var ErrMenuItemNotFound = errors.New("menu item not found")

const menuColumns = `id, name, description, category, unit_price, is_available, created_at, updated_at`

// MenuItem implements order.Catalog.
func (s *Store) MenuItem(ctx context.Context, id uuid.UUID) (order.CatalogItem, error) {
	mi, err := s.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMenuItemNotFound) {
			return order.CatalogItem{}, order.ErrMenuItemNotFound
		}
		return order.CatalogItem{}, err
	}
	return order.CatalogItem{
		ID:          mi.ID,
		Name:        mi.Name,
		UnitPrice:   mi.UnitPrice,
		IsAvailable: mi.IsAvailable,
	}, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	return scanMenuItem(row)
}

func (s *Store) ListMenuItems(ctx context.Context, category string, availableOnly bool) ([]MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items`
	var (
		where []string
		args  []any
	)
	if category != "" {
		args = append(args, category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if availableOnly {
		where = append(where, "is_available")
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY category, name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list menu items", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		mi, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, mi)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list menu items", err)
	}
	return items, nil
}

type CreateMenuItemParams struct {
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	IsAvailable bool
}

func (s *Store) CreateMenuItem(ctx context.Context, p CreateMenuItemParams) (MenuItem, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO menu_items (name, description, category, unit_price, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+menuColumns,
		p.Name, p.Description, p.Category, decimalToNumeric(p.UnitPrice), p.IsAvailable,
	)
	return scanMenuItem(row)
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	IsAvailable bool
}

func (s *Store) UpdateMenuItem(ctx context.Context, p UpdateMenuItemParams) (MenuItem, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $1, description = $2, category = $3, unit_price = $4, is_available = $5, updated_at = now()
		WHERE id = $6
		RETURNING `+menuColumns,
		p.Name, p.Description, p.Category, decimalToNumeric(p.UnitPrice), p.IsAvailable, p.ID,
	)
	return scanMenuItem(row)
}

func (s *Store) SetMenuItemAvailability(ctx context.Context, id uuid.UUID, available bool) (MenuItem, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE menu_items SET is_available = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+menuColumns,
		available, id,
	)
	return scanMenuItem(row)
}

func (s *Store) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete menu item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var (
		mi    MenuItem
		price pgtype.Numeric
	)
	err := row.Scan(&mi.ID, &mi.Name, &mi.Description, &mi.Category, &price,
		&mi.IsAvailable, &mi.CreatedAt, &mi.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MenuItem{}, ErrMenuItemNotFound
		}
		return MenuItem{}, unavailable("scan menu item", err)
	}
	mi.UnitPrice = numericToDecimal(price)
	return mi, nil
}
