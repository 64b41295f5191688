package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getSalesSummary = `
SELECT COUNT(*)::bigint, COALESCE(SUM(total_amount), 0)
FROM sales_orders
WHERE status = 'COMPLETED' AND created_at >= $1 AND created_at < $2
`

type GetSalesSummaryParams struct {
	Start time.Time
	End   time.Time
}

type GetSalesSummaryRow struct {
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetSalesSummary(ctx context.Context, arg GetSalesSummaryParams) (GetSalesSummaryRow, error) {
	var r GetSalesSummaryRow
	err := q.db.QueryRow(ctx, getSalesSummary, arg.Start, arg.End).Scan(&r.OrderCount, &r.TotalRevenue)
	return r, err
}

const countLowStockProducts = `
SELECT COUNT(*)::bigint
FROM products
WHERE is_active = true AND stock_quantity <= low_stock_threshold
`

func (q *Queries) CountLowStockProducts(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countLowStockProducts).Scan(&count)
	return count, err
}

const countActiveProducts = `
SELECT COUNT(*)::bigint
FROM products
WHERE is_active = true
`

func (q *Queries) CountActiveProducts(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveProducts).Scan(&count)
	return count, err
}

const getReceivableTotal = `
SELECT COALESCE(SUM(total_amount - amount_paid), 0)
FROM sales_orders
WHERE status = 'COMPLETED' AND payment_status <> 'PAID'
`

func (q *Queries) GetReceivableTotal(ctx context.Context) (pgtype.Numeric, error) {
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, getReceivableTotal).Scan(&total)
	return total, err
}

const getPayableTotal = `
SELECT COALESCE(SUM(total_amount - amount_paid), 0)
FROM purchase_orders
WHERE status IN ('ORDERED', 'RECEIVED') AND payment_status <> 'PAID'
`

func (q *Queries) GetPayableTotal(ctx context.Context) (pgtype.Numeric, error) {
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, getPayableTotal).Scan(&total)
	return total, err
}

const getAccountsReceivable = `
SELECT COALESCE(c.id, '00000000-0000-0000-0000-000000000000'::uuid),
	COALESCE(c.name, 'Walk-in'),
	COUNT(o.id)::bigint,
	COALESCE(SUM(o.total_amount), 0),
	COALESCE(SUM(o.amount_paid), 0),
	COALESCE(SUM(o.total_amount - o.amount_paid), 0)
FROM sales_orders o
LEFT JOIN customers c ON c.id = o.customer_id
WHERE o.status = 'COMPLETED' AND o.payment_status <> 'PAID'
GROUP BY c.id, c.name
ORDER BY 6 DESC
`

type GetAccountsReceivableRow struct {
	CustomerID   uuid.UUID
	CustomerName string
	OpenOrders   int64
	TotalBilled  pgtype.Numeric
	TotalPaid    pgtype.Numeric
	Outstanding  pgtype.Numeric
}

func (q *Queries) GetAccountsReceivable(ctx context.Context) ([]GetAccountsReceivableRow, error) {
	rows, err := q.db.Query(ctx, getAccountsReceivable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetAccountsReceivableRow
	for rows.Next() {
		var r GetAccountsReceivableRow
		if err := rows.Scan(&r.CustomerID, &r.CustomerName, &r.OpenOrders, &r.TotalBilled,
			&r.TotalPaid, &r.Outstanding); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getAccountsPayable = `
SELECT v.id, v.name,
	COUNT(o.id)::bigint,
	COALESCE(SUM(o.total_amount), 0),
	COALESCE(SUM(o.amount_paid), 0),
	COALESCE(SUM(o.total_amount - o.amount_paid), 0)
FROM purchase_orders o
JOIN vendors v ON v.id = o.vendor_id
WHERE o.status IN ('ORDERED', 'RECEIVED') AND o.payment_status <> 'PAID'
GROUP BY v.id, v.name
ORDER BY 6 DESC
`

type GetAccountsPayableRow struct {
	VendorID    uuid.UUID
	VendorName  string
	OpenOrders  int64
	TotalBilled pgtype.Numeric
	TotalPaid   pgtype.Numeric
	Outstanding pgtype.Numeric
}

func (q *Queries) GetAccountsPayable(ctx context.Context) ([]GetAccountsPayableRow, error) {
	rows, err := q.db.Query(ctx, getAccountsPayable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetAccountsPayableRow
	for rows.Next() {
		var r GetAccountsPayableRow
		if err := rows.Scan(&r.VendorID, &r.VendorName, &r.OpenOrders, &r.TotalBilled,
			&r.TotalPaid, &r.Outstanding); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getProfitLoss = `
SELECT COUNT(*)::bigint,
	COALESCE(SUM(o.total_amount), 0),
	COALESCE((
		SELECT SUM(i.cost_price * i.quantity)
		FROM sales_order_items i
		JOIN sales_orders so ON so.id = i.order_id
		WHERE so.status = 'COMPLETED' AND so.created_at >= $1 AND so.created_at < $2
	), 0)
FROM sales_orders o
WHERE o.status = 'COMPLETED' AND o.created_at >= $1 AND o.created_at < $2
`

type GetProfitLossParams struct {
	Start time.Time
	End   time.Time
}

type GetProfitLossRow struct {
	OrderCount int64
	Revenue    pgtype.Numeric
	Cogs       pgtype.Numeric
}

func (q *Queries) GetProfitLoss(ctx context.Context, arg GetProfitLossParams) (GetProfitLossRow, error) {
	var r GetProfitLossRow
	err := q.db.QueryRow(ctx, getProfitLoss, arg.Start, arg.End).Scan(&r.OrderCount, &r.Revenue, &r.Cogs)
	return r, err
}

const getSalesReturnsTotal = `
SELECT COALESCE(SUM(refund_amount), 0)
FROM returns
WHERE order_kind = 'SALE' AND status = 'COMPLETED' AND created_at >= $1 AND created_at < $2
`

type GetSalesReturnsTotalParams struct {
	Start time.Time
	End   time.Time
}

func (q *Queries) GetSalesReturnsTotal(ctx context.Context, arg GetSalesReturnsTotalParams) (pgtype.Numeric, error) {
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, getSalesReturnsTotal, arg.Start, arg.End).Scan(&total)
	return total, err
}

const getInventoryValuation = `
SELECT id, sku, name, stock_quantity, cost_price, selling_price,
	cost_price * stock_quantity, selling_price * stock_quantity
FROM products
WHERE is_active = true
ORDER BY name
`

type GetInventoryValuationRow struct {
	ProductID     uuid.UUID
	Sku           string
	Name          string
	StockQuantity int32
	CostPrice     pgtype.Numeric
	SellingPrice  pgtype.Numeric
	CostValue     pgtype.Numeric
	RetailValue   pgtype.Numeric
}

func (q *Queries) GetInventoryValuation(ctx context.Context) ([]GetInventoryValuationRow, error) {
	rows, err := q.db.Query(ctx, getInventoryValuation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetInventoryValuationRow
	for rows.Next() {
		var r GetInventoryValuationRow
		if err := rows.Scan(&r.ProductID, &r.Sku, &r.Name, &r.StockQuantity, &r.CostPrice,
			&r.SellingPrice, &r.CostValue, &r.RetailValue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getMonthlySales = `
SELECT EXTRACT(MONTH FROM created_at)::int,
	COUNT(*)::bigint,
	COALESCE(SUM(total_amount), 0)
FROM sales_orders
WHERE status = 'COMPLETED' AND created_at >= $1 AND created_at < $2
GROUP BY 1
ORDER BY 1
`

type GetMonthlySalesParams struct {
	Start time.Time
	End   time.Time
}

type GetMonthlySalesRow struct {
	Month        int32
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetMonthlySales(ctx context.Context, arg GetMonthlySalesParams) ([]GetMonthlySalesRow, error) {
	rows, err := q.db.Query(ctx, getMonthlySales, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetMonthlySalesRow
	for rows.Next() {
		var r GetMonthlySalesRow
		if err := rows.Scan(&r.Month, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
