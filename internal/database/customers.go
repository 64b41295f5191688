package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listCustomers = `
SELECT id, name, phone, email, address, is_active, created_at, updated_at
FROM customers
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3
`

type ListCustomersParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCustomer = `
SELECT id, name, phone, email, address, is_active, created_at, updated_at
FROM customers
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, id)
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const createCustomer = `
INSERT INTO customers (name, phone, email, address)
VALUES ($1, $2, $3, $4)
RETURNING id, name, phone, email, address, is_active, created_at, updated_at
`

type CreateCustomerParams struct {
	Name    string
	Phone   pgtype.Text
	Email   pgtype.Text
	Address pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer, arg.Name, arg.Phone, arg.Email, arg.Address)
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const updateCustomer = `
UPDATE customers
SET name = $1, phone = $2, email = $3, address = $4, updated_at = now()
WHERE id = $5 AND is_active = true
RETURNING id, name, phone, email, address, is_active, created_at, updated_at
`

type UpdateCustomerParams struct {
	Name    string
	Phone   pgtype.Text
	Email   pgtype.Text
	Address pgtype.Text
	ID      uuid.UUID
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer, arg.Name, arg.Phone, arg.Email, arg.Address, arg.ID)
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const softDeleteCustomer = `
UPDATE customers
SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCustomer, id).Scan(&out)
	return out, err
}
