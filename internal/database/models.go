package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID                uuid.UUID
	CategoryID        uuid.UUID
	Sku               string
	Name              string
	Description       pgtype.Text
	CostPrice         pgtype.Numeric
	SellingPrice      pgtype.Numeric
	StockQuantity     int32
	LowStockThreshold int32
	Unit              pgtype.Text
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Customer struct {
	ID        uuid.UUID
	Name      string
	Phone     pgtype.Text
	Email     pgtype.Text
	Address   pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Vendor struct {
	ID            uuid.UUID
	Name          string
	ContactPerson pgtype.Text
	Phone         pgtype.Text
	Email         pgtype.Text
	Address       pgtype.Text
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SalesOrder struct {
	ID             uuid.UUID
	OrderNumber    string
	CustomerID     pgtype.UUID
	Status         string
	PaymentStatus  string
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TaxAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
	AmountPaid     pgtype.Numeric
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SalesOrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	CostPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

type PurchaseOrder struct {
	ID            uuid.UUID
	OrderNumber   string
	VendorID      uuid.UUID
	Status        string
	PaymentStatus string
	Subtotal      pgtype.Numeric
	TaxAmount     pgtype.Numeric
	TotalAmount   pgtype.Numeric
	AmountPaid    pgtype.Numeric
	ExpectedDate  pgtype.Timestamptz
	ReceivedAt    pgtype.Timestamptz
	Notes         pgtype.Text
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PurchaseOrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitCost  pgtype.Numeric
	Subtotal  pgtype.Numeric
}

type Payment struct {
	ID              uuid.UUID
	OrderKind       string
	OrderID         uuid.UUID
	Method          string
	Amount          pgtype.Numeric
	ReferenceNumber pgtype.Text
	Notes           pgtype.Text
	ReceivedBy      uuid.UUID
	CreatedAt       time.Time
}

type Return struct {
	ID           uuid.UUID
	ReturnNumber string
	OrderKind    string
	OrderID      uuid.UUID
	Status       string
	Reason       pgtype.Text
	RefundAmount pgtype.Numeric
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ReturnItem struct {
	ID        uuid.UUID
	ReturnID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

type StockMovement struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	QuantityChange int32
	MovementType   string
	ReferenceID    pgtype.UUID
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
}

type Setting struct {
	ID             int32
	StoreName      string
	Address        pgtype.Text
	Phone          pgtype.Text
	Email          pgtype.Text
	CurrencyCode   string
	SalesPrefix    string
	PurchasePrefix string
	ReturnPrefix   string
	TaxRatePercent pgtype.Numeric
	UpdatedAt      time.Time
}
