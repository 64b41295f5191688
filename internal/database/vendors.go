package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listVendors = `
SELECT id, name, contact_person, phone, email, address, is_active, created_at, updated_at
FROM vendors
WHERE is_active = true
  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR contact_person ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3
`

type ListVendorsParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListVendors(ctx context.Context, arg ListVendorsParams) ([]Vendor, error) {
	rows, err := q.db.Query(ctx, listVendors, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Phone, &v.Email, &v.Address, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const getVendor = `
SELECT id, name, contact_person, phone, email, address, is_active, created_at, updated_at
FROM vendors
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetVendor(ctx context.Context, id uuid.UUID) (Vendor, error) {
	row := q.db.QueryRow(ctx, getVendor, id)
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Phone, &v.Email, &v.Address, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const createVendor = `
INSERT INTO vendors (name, contact_person, phone, email, address)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, contact_person, phone, email, address, is_active, created_at, updated_at
`

type CreateVendorParams struct {
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Email         pgtype.Text
	Address       pgtype.Text
}

func (q *Queries) CreateVendor(ctx context.Context, arg CreateVendorParams) (Vendor, error) {
	row := q.db.QueryRow(ctx, createVendor, arg.Name, arg.ContactPerson, arg.Phone, arg.Email, arg.Address)
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Phone, &v.Email, &v.Address, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const updateVendor = `
UPDATE vendors
SET name = $1, contact_person = $2, phone = $3, email = $4, address = $5, updated_at = now()
WHERE id = $6 AND is_active = true
RETURNING id, name, contact_person, phone, email, address, is_active, created_at, updated_at
`

type UpdateVendorParams struct {
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Email         pgtype.Text
	Address       pgtype.Text
	ID            uuid.UUID
}

func (q *Queries) UpdateVendor(ctx context.Context, arg UpdateVendorParams) (Vendor, error) {
	row := q.db.QueryRow(ctx, updateVendor, arg.Name, arg.ContactPerson, arg.Phone, arg.Email, arg.Address, arg.ID)
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Phone, &v.Email, &v.Address, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const softDeleteVendor = `
UPDATE vendors
SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteVendor(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteVendor, id).Scan(&out)
	return out, err
}
