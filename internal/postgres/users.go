package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mariahavens/pos-api/internal/enum"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         enum.UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list users", err)
	}
	return users, nil
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         enum.UserRole
}

func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		p.Email, p.PasswordHash, p.FullName, p.Role,
	)
	return scanUser(row)
}

type UpdateUserParams struct {
	ID       uuid.UUID
	Email    string
	FullName string
	Role     enum.UserRole
}

func (s *Store) UpdateUser(ctx context.Context, p UpdateUserParams) (User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $1, full_name = $2, role = $3, updated_at = now()
		WHERE id = $4
		RETURNING `+userColumns,
		p.Email, p.FullName, p.Role, p.ID,
	)
	return scanUser(row)
}

// DeactivateUser soft-deletes; orders keep their waiter references.
func (s *Store) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return unavailable("deactivate user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, unavailable("scan user", err)
	}
	return u, nil
}
