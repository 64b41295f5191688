package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category_id, sku, name, description, cost_price, selling_price,
stock_quantity, low_stock_threshold, unit, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Sku, &p.Name, &p.Description, &p.CostPrice,
		&p.SellingPrice, &p.StockQuantity, &p.LowStockThreshold, &p.Unit, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
  AND ($2::uuid IS NULL OR category_id = $2)
ORDER BY name
LIMIT $3 OFFSET $4
`

type ListProductsParams struct {
	Search     pgtype.Text
	CategoryID pgtype.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.Search, arg.CategoryID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const getProductForUpdate = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND is_active = true
FOR UPDATE
`

// GetProductForUpdate locks the product row for the duration of the
// enclosing transaction. Must be called inside a transaction.
func (q *Queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForUpdate, id))
}

const createProduct = `
INSERT INTO products (category_id, sku, name, description, cost_price, selling_price,
	stock_quantity, low_stock_threshold, unit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + productColumns + `
`

type CreateProductParams struct {
	CategoryID        uuid.UUID
	Sku               string
	Name              string
	Description       pgtype.Text
	CostPrice         pgtype.Numeric
	SellingPrice      pgtype.Numeric
	StockQuantity     int32
	LowStockThreshold int32
	Unit              pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.CategoryID, arg.Sku, arg.Name,
		arg.Description, arg.CostPrice, arg.SellingPrice, arg.StockQuantity,
		arg.LowStockThreshold, arg.Unit))
}

const updateProduct = `
UPDATE products
SET category_id = $1, sku = $2, name = $3, description = $4, cost_price = $5,
	selling_price = $6, low_stock_threshold = $7, unit = $8, updated_at = now()
WHERE id = $9 AND is_active = true
RETURNING ` + productColumns + `
`

type UpdateProductParams struct {
	CategoryID        uuid.UUID
	Sku               string
	Name              string
	Description       pgtype.Text
	CostPrice         pgtype.Numeric
	SellingPrice      pgtype.Numeric
	LowStockThreshold int32
	Unit              pgtype.Text
	ID                uuid.UUID
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, arg.CategoryID, arg.Sku, arg.Name,
		arg.Description, arg.CostPrice, arg.SellingPrice, arg.LowStockThreshold, arg.Unit, arg.ID))
}

const updateProductCostPrice = `
UPDATE products
SET cost_price = $1, updated_at = now()
WHERE id = $2
RETURNING id
`

type UpdateProductCostPriceParams struct {
	CostPrice pgtype.Numeric
	ID        uuid.UUID
}

func (q *Queries) UpdateProductCostPrice(ctx context.Context, arg UpdateProductCostPriceParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, updateProductCostPrice, arg.CostPrice, arg.ID).Scan(&id)
	return id, err
}

const adjustProductStock = `
UPDATE products
SET stock_quantity = stock_quantity + $1, updated_at = now()
WHERE id = $2
RETURNING ` + productColumns + `
`

type AdjustProductStockParams struct {
	QuantityChange int32
	ID             uuid.UUID
}

// AdjustProductStock applies a signed stock delta. Callers are expected to
// hold the row lock (GetProductForUpdate) and to have verified the result
// cannot go negative; the CHECK constraint is the last line of defense.
func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, adjustProductStock, arg.QuantityChange, arg.ID))
}

const softDeleteProduct = `
UPDATE products
SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteProduct, id).Scan(&out)
	return out, err
}

const listLowStockProducts = `
SELECT ` + productColumns + `
FROM products
WHERE is_active = true AND stock_quantity <= low_stock_threshold
ORDER BY stock_quantity, name
`

func (q *Queries) ListLowStockProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listLowStockProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const createStockMovement = `
INSERT INTO stock_movements (product_id, quantity_change, movement_type, reference_id, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, product_id, quantity_change, movement_type, reference_id, notes, created_by, created_at
`

type CreateStockMovementParams struct {
	ProductID      uuid.UUID
	QuantityChange int32
	MovementType   string
	ReferenceID    pgtype.UUID
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement, arg.ProductID, arg.QuantityChange,
		arg.MovementType, arg.ReferenceID, arg.Notes, arg.CreatedBy)
	var m StockMovement
	err := row.Scan(&m.ID, &m.ProductID, &m.QuantityChange, &m.MovementType, &m.ReferenceID,
		&m.Notes, &m.CreatedBy, &m.CreatedAt)
	return m, err
}

const listStockMovementsByProduct = `
SELECT id, product_id, quantity_change, movement_type, reference_id, notes, created_by, created_at
FROM stock_movements
WHERE product_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListStockMovementsByProductParams struct {
	ProductID uuid.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListStockMovementsByProduct(ctx context.Context, arg ListStockMovementsByProductParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listStockMovementsByProduct, arg.ProductID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.QuantityChange, &m.MovementType,
			&m.ReferenceID, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
