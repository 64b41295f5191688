package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const purchaseOrderColumns = `id, order_number, vendor_id, status, payment_status, subtotal,
tax_amount, total_amount, amount_paid, expected_date, received_at, notes, created_by,
created_at, updated_at`

func scanPurchaseOrder(row interface{ Scan(...interface{}) error }) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := row.Scan(&o.ID, &o.OrderNumber, &o.VendorID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.TaxAmount, &o.TotalAmount, &o.AmountPaid, &o.ExpectedDate,
		&o.ReceivedAt, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const countPurchaseOrdersInRange = `
SELECT COUNT(*)
FROM purchase_orders
WHERE created_at >= $1 AND created_at < $2
`

type CountPurchaseOrdersInRangeParams struct {
	Start time.Time
	End   time.Time
}

func (q *Queries) CountPurchaseOrdersInRange(ctx context.Context, arg CountPurchaseOrdersInRangeParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countPurchaseOrdersInRange, arg.Start, arg.End).Scan(&count)
	return count, err
}

const createPurchaseOrder = `
INSERT INTO purchase_orders (order_number, vendor_id, status, payment_status, subtotal,
	tax_amount, total_amount, amount_paid, expected_date, notes, created_by)
VALUES ($1, $2, 'ORDERED', 'UNPAID', $3, $4, $5, 0, $6, $7, $8)
RETURNING ` + purchaseOrderColumns + `
`

type CreatePurchaseOrderParams struct {
	OrderNumber  string
	VendorID     uuid.UUID
	Subtotal     pgtype.Numeric
	TaxAmount    pgtype.Numeric
	TotalAmount  pgtype.Numeric
	ExpectedDate pgtype.Timestamptz
	Notes        pgtype.Text
	CreatedBy    uuid.UUID
}

func (q *Queries) CreatePurchaseOrder(ctx context.Context, arg CreatePurchaseOrderParams) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, createPurchaseOrder, arg.OrderNumber,
		arg.VendorID, arg.Subtotal, arg.TaxAmount, arg.TotalAmount, arg.ExpectedDate,
		arg.Notes, arg.CreatedBy))
}

const createPurchaseOrderItem = `
INSERT INTO purchase_order_items (order_id, product_id, quantity, unit_cost, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, quantity, unit_cost, subtotal
`

type CreatePurchaseOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitCost  pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreatePurchaseOrderItem(ctx context.Context, arg CreatePurchaseOrderItemParams) (PurchaseOrderItem, error) {
	row := q.db.QueryRow(ctx, createPurchaseOrderItem, arg.OrderID, arg.ProductID,
		arg.Quantity, arg.UnitCost, arg.Subtotal)
	var it PurchaseOrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Subtotal)
	return it, err
}

const getPurchaseOrder = `
SELECT ` + purchaseOrderColumns + `
FROM purchase_orders
WHERE id = $1
`

func (q *Queries) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, getPurchaseOrder, id))
}

const getPurchaseOrderForUpdate = `
SELECT ` + purchaseOrderColumns + `
FROM purchase_orders
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, getPurchaseOrderForUpdate, id))
}

const listPurchaseOrders = `
SELECT ` + purchaseOrderColumns + `
FROM purchase_orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR payment_status = $2)
  AND ($3::uuid IS NULL OR vendor_id = $3)
  AND created_at >= $4 AND created_at < $5
ORDER BY created_at DESC
LIMIT $6 OFFSET $7
`

type ListPurchaseOrdersParams struct {
	Status        pgtype.Text
	PaymentStatus pgtype.Text
	VendorID      pgtype.UUID
	Start         time.Time
	End           time.Time
	Limit         int32
	Offset        int32
}

func (q *Queries) ListPurchaseOrders(ctx context.Context, arg ListPurchaseOrdersParams) ([]PurchaseOrder, error) {
	rows, err := q.db.Query(ctx, listPurchaseOrders, arg.Status, arg.PaymentStatus,
		arg.VendorID, arg.Start, arg.End, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PurchaseOrder
	for rows.Next() {
		o, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listPurchaseOrderItems = `
SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_cost, i.subtotal, p.name, p.sku
FROM purchase_order_items i
JOIN products p ON p.id = i.product_id
WHERE i.order_id = $1
ORDER BY p.name
`

type ListPurchaseOrderItemsRow struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	Quantity    int32
	UnitCost    pgtype.Numeric
	Subtotal    pgtype.Numeric
	ProductName string
	ProductSku  string
}

func (q *Queries) ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]ListPurchaseOrderItemsRow, error) {
	rows, err := q.db.Query(ctx, listPurchaseOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPurchaseOrderItemsRow
	for rows.Next() {
		var it ListPurchaseOrderItemsRow
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitCost,
			&it.Subtotal, &it.ProductName, &it.ProductSku); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const markPurchaseOrderReceived = `
UPDATE purchase_orders
SET status = 'RECEIVED', received_at = now(), updated_at = now()
WHERE id = $1 AND status = 'ORDERED'
RETURNING ` + purchaseOrderColumns + `
`

func (q *Queries) MarkPurchaseOrderReceived(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, markPurchaseOrderReceived, id))
}

const cancelPurchaseOrder = `
UPDATE purchase_orders
SET status = 'CANCELLED', updated_at = now()
WHERE id = $1 AND status <> 'CANCELLED'
RETURNING ` + purchaseOrderColumns + `
`

func (q *Queries) CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, cancelPurchaseOrder, id))
}

const updatePurchaseOrderPayment = `
UPDATE purchase_orders
SET amount_paid = $1, payment_status = $2, updated_at = now()
WHERE id = $3
RETURNING ` + purchaseOrderColumns + `
`

type UpdatePurchaseOrderPaymentParams struct {
	AmountPaid    pgtype.Numeric
	PaymentStatus string
	ID            uuid.UUID
}

func (q *Queries) UpdatePurchaseOrderPayment(ctx context.Context, arg UpdatePurchaseOrderPaymentParams) (PurchaseOrder, error) {
	return scanPurchaseOrder(q.db.QueryRow(ctx, updatePurchaseOrderPayment, arg.AmountPaid, arg.PaymentStatus, arg.ID))
}
