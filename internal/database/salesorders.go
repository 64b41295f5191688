package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const salesOrderColumns = `id, order_number, customer_id, status, payment_status, subtotal,
discount_type, discount_value, discount_amount, tax_amount, total_amount, amount_paid,
notes, created_by, created_at, updated_at`

func scanSalesOrder(row interface{ Scan(...interface{}) error }) (SalesOrder, error) {
	var o SalesOrder
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.DiscountType, &o.DiscountValue, &o.DiscountAmount, &o.TaxAmount,
		&o.TotalAmount, &o.AmountPaid, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const countSalesOrdersInRange = `
SELECT COUNT(*)
FROM sales_orders
WHERE created_at >= $1 AND created_at < $2
`

type CountSalesOrdersInRangeParams struct {
	Start time.Time
	End   time.Time
}

// CountSalesOrdersInRange counts orders created in [Start, End); used for
// the per-day order number sequence.
func (q *Queries) CountSalesOrdersInRange(ctx context.Context, arg CountSalesOrdersInRangeParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countSalesOrdersInRange, arg.Start, arg.End).Scan(&count)
	return count, err
}

const createSalesOrder = `
INSERT INTO sales_orders (order_number, customer_id, status, payment_status, subtotal,
	discount_type, discount_value, discount_amount, tax_amount, total_amount, amount_paid,
	notes, created_by)
VALUES ($1, $2, 'COMPLETED', 'UNPAID', $3, $4, $5, $6, $7, $8, 0, $9, $10)
RETURNING ` + salesOrderColumns + `
`

type CreateSalesOrderParams struct {
	OrderNumber    string
	CustomerID     pgtype.UUID
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateSalesOrder(ctx context.Context, arg CreateSalesOrderParams) (SalesOrder, error) {
	return scanSalesOrder(q.db.QueryRow(ctx, createSalesOrder, arg.OrderNumber, arg.CustomerID,
		arg.Subtotal, arg.DiscountType, arg.DiscountValue, arg.DiscountAmount, arg.TaxAmount,
		arg.TotalAmount, arg.Notes, arg.CreatedBy))
}

const createSalesOrderItem = `
INSERT INTO sales_order_items (order_id, product_id, quantity, unit_price, cost_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, quantity, unit_price, cost_price, subtotal
`

type CreateSalesOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	CostPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateSalesOrderItem(ctx context.Context, arg CreateSalesOrderItemParams) (SalesOrderItem, error) {
	row := q.db.QueryRow(ctx, createSalesOrderItem, arg.OrderID, arg.ProductID, arg.Quantity,
		arg.UnitPrice, arg.CostPrice, arg.Subtotal)
	var it SalesOrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.CostPrice, &it.Subtotal)
	return it, err
}

const getSalesOrder = `
SELECT ` + salesOrderColumns + `
FROM sales_orders
WHERE id = $1
`

func (q *Queries) GetSalesOrder(ctx context.Context, id uuid.UUID) (SalesOrder, error) {
	return scanSalesOrder(q.db.QueryRow(ctx, getSalesOrder, id))
}

const getSalesOrderForUpdate = `
SELECT ` + salesOrderColumns + `
FROM sales_orders
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetSalesOrderForUpdate(ctx context.Context, id uuid.UUID) (SalesOrder, error) {
	return scanSalesOrder(q.db.QueryRow(ctx, getSalesOrderForUpdate, id))
}

const listSalesOrders = `
SELECT ` + salesOrderColumns + `
FROM sales_orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR payment_status = $2)
  AND ($3::uuid IS NULL OR customer_id = $3)
  AND created_at >= $4 AND created_at < $5
ORDER BY created_at DESC
LIMIT $6 OFFSET $7
`

type ListSalesOrdersParams struct {
	Status        pgtype.Text
	PaymentStatus pgtype.Text
	CustomerID    pgtype.UUID
	Start         time.Time
	End           time.Time
	Limit         int32
	Offset        int32
}

func (q *Queries) ListSalesOrders(ctx context.Context, arg ListSalesOrdersParams) ([]SalesOrder, error) {
	rows, err := q.db.Query(ctx, listSalesOrders, arg.Status, arg.PaymentStatus,
		arg.CustomerID, arg.Start, arg.End, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SalesOrder
	for rows.Next() {
		o, err := scanSalesOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listSalesOrderItems = `
SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_price, i.cost_price, i.subtotal,
	p.name, p.sku
FROM sales_order_items i
JOIN products p ON p.id = i.product_id
WHERE i.order_id = $1
ORDER BY p.name
`

type ListSalesOrderItemsRow struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	Quantity    int32
	UnitPrice   pgtype.Numeric
	CostPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
	ProductName string
	ProductSku  string
}

func (q *Queries) ListSalesOrderItems(ctx context.Context, orderID uuid.UUID) ([]ListSalesOrderItemsRow, error) {
	rows, err := q.db.Query(ctx, listSalesOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListSalesOrderItemsRow
	for rows.Next() {
		var it ListSalesOrderItemsRow
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.CostPrice, &it.Subtotal, &it.ProductName, &it.ProductSku); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const cancelSalesOrder = `
UPDATE sales_orders
SET status = 'CANCELLED', updated_at = now()
WHERE id = $1 AND status <> 'CANCELLED'
RETURNING ` + salesOrderColumns + `
`

func (q *Queries) CancelSalesOrder(ctx context.Context, id uuid.UUID) (SalesOrder, error) {
	return scanSalesOrder(q.db.QueryRow(ctx, cancelSalesOrder, id))
}

const updateSalesOrderPayment = `
UPDATE sales_orders
SET amount_paid = $1, payment_status = $2, updated_at = now()
WHERE id = $3
RETURNING ` + salesOrderColumns + `
`

type UpdateSalesOrderPaymentParams struct {
	AmountPaid    pgtype.Numeric
	PaymentStatus string
	ID            uuid.UUID
}

func (q *Queries) UpdateSalesOrderPayment(ctx context.Context, arg UpdateSalesOrderPaymentParams) (SalesOrder, error) {
	return scanSalesOrder(q.db.QueryRow(ctx, updateSalesOrderPayment, arg.AmountPaid, arg.PaymentStatus, arg.ID))
}
