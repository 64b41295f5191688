package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `
INSERT INTO payments (order_kind, order_id, method, amount, reference_number, notes, received_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_kind, order_id, method, amount, reference_number, notes, received_by, created_at
`

type CreatePaymentParams struct {
	OrderKind       string
	OrderID         uuid.UUID
	Method          string
	Amount          pgtype.Numeric
	ReferenceNumber pgtype.Text
	Notes           pgtype.Text
	ReceivedBy      uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment, arg.OrderKind, arg.OrderID, arg.Method,
		arg.Amount, arg.ReferenceNumber, arg.Notes, arg.ReceivedBy)
	var p Payment
	err := row.Scan(&p.ID, &p.OrderKind, &p.OrderID, &p.Method, &p.Amount,
		&p.ReferenceNumber, &p.Notes, &p.ReceivedBy, &p.CreatedAt)
	return p, err
}

const listPaymentsByOrder = `
SELECT id, order_kind, order_id, method, amount, reference_number, notes, received_by, created_at
FROM payments
WHERE order_kind = $1 AND order_id = $2
ORDER BY created_at
`

type ListPaymentsByOrderParams struct {
	OrderKind string
	OrderID   uuid.UUID
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, arg ListPaymentsByOrderParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, arg.OrderKind, arg.OrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderKind, &p.OrderID, &p.Method, &p.Amount,
			&p.ReferenceNumber, &p.Notes, &p.ReceivedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
