package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mariahavens/pos-api/internal/enum"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	Method          enum.PaymentMethod
	Amount          decimal.Decimal
	Status          enum.PaymentStatus
	ReferenceNumber *string
	AmountReceived  *decimal.Decimal
	ChangeAmount    *decimal.Decimal
	ProcessedBy     uuid.UUID
	ProcessedAt     time.Time
}

const paymentColumns = `id, order_id, method, amount, status, reference_number,
	amount_received, change_amount, processed_by, processed_at`

type CreatePaymentParams struct {
	OrderID         uuid.UUID
	Method          enum.PaymentMethod
	Amount          decimal.Decimal
	Status          enum.PaymentStatus
	ReferenceNumber *string
	AmountReceived  *decimal.Decimal
	ChangeAmount    *decimal.Decimal
	ProcessedBy     uuid.UUID
}

func (s *Store) CreatePayment(ctx context.Context, p CreatePaymentParams) (Payment, error) {
	var received, change pgtype.Numeric
	if p.AmountReceived != nil {
		received = decimalToNumeric(*p.AmountReceived)
	}
	if p.ChangeAmount != nil {
		change = decimalToNumeric(*p.ChangeAmount)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO payments (order_id, method, amount, status, reference_number,
			amount_received, change_amount, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		p.OrderID, p.Method, decimalToNumeric(p.Amount), p.Status,
		p.ReferenceNumber, received, change, p.ProcessedBy,
	)
	return scanPayment(row)
}

func (s *Store) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1
		ORDER BY processed_at`, orderID)
	if err != nil {
		return nil, unavailable("list payments", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list payments", err)
	}
	return payments, nil
}

// SumPaymentsByOrder totals the completed payments recorded against an
// order.
func (s *Store) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE order_id = $1 AND status = 'completed'`, orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, unavailable("sum payments", err)
	}
	return numericToDecimal(sum), nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p                Payment
		amount           pgtype.Numeric
		received, change pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &amount, &p.Status, &p.ReferenceNumber,
		&received, &change, &p.ProcessedBy, &p.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, errors.New("payment not found")
		}
		return Payment{}, unavailable("scan payment", err)
	}
	p.Amount = numericToDecimal(amount)
	if received.Valid {
		d := numericToDecimal(received)
		p.AmountReceived = &d
	}
	if change.Valid {
		d := numericToDecimal(change)
		p.ChangeAmount = &d
	}
	return p, nil
}
