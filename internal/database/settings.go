package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const settingColumns = `id, store_name, address, phone, email, currency_code, sales_prefix,
purchase_prefix, return_prefix, tax_rate_percent, updated_at`

const getSettings = `
SELECT ` + settingColumns + `
FROM settings
WHERE id = 1
`

func (q *Queries) GetSettings(ctx context.Context) (Setting, error) {
	row := q.db.QueryRow(ctx, getSettings)
	var s Setting
	err := row.Scan(&s.ID, &s.StoreName, &s.Address, &s.Phone, &s.Email, &s.CurrencyCode,
		&s.SalesPrefix, &s.PurchasePrefix, &s.ReturnPrefix, &s.TaxRatePercent, &s.UpdatedAt)
	return s, err
}

const upsertSettings = `
INSERT INTO settings (id, store_name, address, phone, email, currency_code, sales_prefix,
	purchase_prefix, return_prefix, tax_rate_percent)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	store_name = EXCLUDED.store_name,
	address = EXCLUDED.address,
	phone = EXCLUDED.phone,
	email = EXCLUDED.email,
	currency_code = EXCLUDED.currency_code,
	sales_prefix = EXCLUDED.sales_prefix,
	purchase_prefix = EXCLUDED.purchase_prefix,
	return_prefix = EXCLUDED.return_prefix,
	tax_rate_percent = EXCLUDED.tax_rate_percent,
	updated_at = now()
RETURNING ` + settingColumns + `
`

type UpsertSettingsParams struct {
	StoreName      string
	Address        pgtype.Text
	Phone          pgtype.Text
	Email          pgtype.Text
	CurrencyCode   string
	SalesPrefix    string
	PurchasePrefix string
	ReturnPrefix   string
	TaxRatePercent pgtype.Numeric
}

func (q *Queries) UpsertSettings(ctx context.Context, arg UpsertSettingsParams) (Setting, error) {
	row := q.db.QueryRow(ctx, upsertSettings, arg.StoreName, arg.Address, arg.Phone, arg.Email,
		arg.CurrencyCode, arg.SalesPrefix, arg.PurchasePrefix, arg.ReturnPrefix, arg.TaxRatePercent)
	var s Setting
	err := row.Scan(&s.ID, &s.StoreName, &s.Address, &s.Phone, &s.Email, &s.CurrencyCode,
		&s.SalesPrefix, &s.PurchasePrefix, &s.ReturnPrefix, &s.TaxRatePercent, &s.UpdatedAt)
	return s, err
}
