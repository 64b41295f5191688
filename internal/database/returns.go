package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const returnColumns = `id, return_number, order_kind, order_id, status, reason, refund_amount,
created_by, created_at, updated_at`

func scanReturn(row interface{ Scan(...interface{}) error }) (Return, error) {
	var r Return
	err := row.Scan(&r.ID, &r.ReturnNumber, &r.OrderKind, &r.OrderID, &r.Status, &r.Reason,
		&r.RefundAmount, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const countReturnsInRange = `
SELECT COUNT(*)
FROM returns
WHERE created_at >= $1 AND created_at < $2
`

type CountReturnsInRangeParams struct {
	Start time.Time
	End   time.Time
}

func (q *Queries) CountReturnsInRange(ctx context.Context, arg CountReturnsInRangeParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countReturnsInRange, arg.Start, arg.End).Scan(&count)
	return count, err
}

const createReturn = `
INSERT INTO returns (return_number, order_kind, order_id, status, reason, refund_amount, created_by)
VALUES ($1, $2, $3, 'COMPLETED', $4, $5, $6)
RETURNING ` + returnColumns + `
`

type CreateReturnParams struct {
	ReturnNumber string
	OrderKind    string
	OrderID      uuid.UUID
	Reason       pgtype.Text
	RefundAmount pgtype.Numeric
	CreatedBy    uuid.UUID
}

func (q *Queries) CreateReturn(ctx context.Context, arg CreateReturnParams) (Return, error) {
	return scanReturn(q.db.QueryRow(ctx, createReturn, arg.ReturnNumber, arg.OrderKind,
		arg.OrderID, arg.Reason, arg.RefundAmount, arg.CreatedBy))
}

const createReturnItem = `
INSERT INTO return_items (return_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, return_id, product_id, quantity, unit_price, subtotal
`

type CreateReturnItemParams struct {
	ReturnID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateReturnItem(ctx context.Context, arg CreateReturnItemParams) (ReturnItem, error) {
	row := q.db.QueryRow(ctx, createReturnItem, arg.ReturnID, arg.ProductID, arg.Quantity,
		arg.UnitPrice, arg.Subtotal)
	var it ReturnItem
	err := row.Scan(&it.ID, &it.ReturnID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const getReturn = `
SELECT ` + returnColumns + `
FROM returns
WHERE id = $1
`

func (q *Queries) GetReturn(ctx context.Context, id uuid.UUID) (Return, error) {
	return scanReturn(q.db.QueryRow(ctx, getReturn, id))
}

const getReturnForUpdate = `
SELECT ` + returnColumns + `
FROM returns
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetReturnForUpdate(ctx context.Context, id uuid.UUID) (Return, error) {
	return scanReturn(q.db.QueryRow(ctx, getReturnForUpdate, id))
}

const listReturns = `
SELECT ` + returnColumns + `
FROM returns
WHERE ($1::text IS NULL OR order_kind = $1)
  AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListReturnsParams struct {
	OrderKind pgtype.Text
	Start     time.Time
	End       time.Time
	Limit     int32
	Offset    int32
}

func (q *Queries) ListReturns(ctx context.Context, arg ListReturnsParams) ([]Return, error) {
	rows, err := q.db.Query(ctx, listReturns, arg.OrderKind, arg.Start, arg.End, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listReturnItems = `
SELECT i.id, i.return_id, i.product_id, i.quantity, i.unit_price, i.subtotal, p.name, p.sku
FROM return_items i
JOIN products p ON p.id = i.product_id
WHERE i.return_id = $1
ORDER BY p.name
`

type ListReturnItemsRow struct {
	ID          uuid.UUID
	ReturnID    uuid.UUID
	ProductID   uuid.UUID
	Quantity    int32
	UnitPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
	ProductName string
	ProductSku  string
}

func (q *Queries) ListReturnItems(ctx context.Context, returnID uuid.UUID) ([]ListReturnItemsRow, error) {
	rows, err := q.db.Query(ctx, listReturnItems, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListReturnItemsRow
	for rows.Next() {
		var it ListReturnItemsRow
		if err := rows.Scan(&it.ID, &it.ReturnID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.Subtotal, &it.ProductName, &it.ProductSku); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const cancelReturn = `
UPDATE returns
SET status = 'CANCELLED', updated_at = now()
WHERE id = $1 AND status <> 'CANCELLED'
RETURNING ` + returnColumns + `
`

func (q *Queries) CancelReturn(ctx context.Context, id uuid.UUID) (Return, error) {
	return scanReturn(q.db.QueryRow(ctx, cancelReturn, id))
}

const sumReturnedQuantities = `
SELECT i.product_id, COALESCE(SUM(i.quantity), 0)::bigint
FROM return_items i
JOIN returns r ON r.id = i.return_id
WHERE r.order_kind = $1 AND r.order_id = $2 AND r.status <> 'CANCELLED'
GROUP BY i.product_id
`

type SumReturnedQuantitiesParams struct {
	OrderKind string
	OrderID   uuid.UUID
}

type SumReturnedQuantitiesRow struct {
	ProductID     uuid.UUID
	TotalQuantity int64
}

// SumReturnedQuantities reports how many units of each product have already
// been returned against the given order, across all non-cancelled returns.
func (q *Queries) SumReturnedQuantities(ctx context.Context, arg SumReturnedQuantitiesParams) ([]SumReturnedQuantitiesRow, error) {
	rows, err := q.db.Query(ctx, sumReturnedQuantities, arg.OrderKind, arg.OrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SumReturnedQuantitiesRow
	for rows.Next() {
		var r SumReturnedQuantitiesRow
		if err := rows.Scan(&r.ProductID, &r.TotalQuantity); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countCompletedReturnsByOrder = `
SELECT COUNT(*)
FROM returns
WHERE order_kind = $1 AND order_id = $2 AND status <> 'CANCELLED'
`

type CountCompletedReturnsByOrderParams struct {
	OrderKind string
	OrderID   uuid.UUID
}

func (q *Queries) CountCompletedReturnsByOrder(ctx context.Context, arg CountCompletedReturnsByOrderParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countCompletedReturnsByOrder, arg.OrderKind, arg.OrderID).Scan(&count)
	return count, err
}
