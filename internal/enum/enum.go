package enum

// ── State machines (CHECK constrained in DB) ──

const (
	SalesOrderStatusCompleted = "COMPLETED"
	SalesOrderStatusCancelled = "CANCELLED"
)

const (
	PurchaseOrderStatusOrdered   = "ORDERED"
	PurchaseOrderStatusReceived  = "RECEIVED"
	PurchaseOrderStatusCancelled = "CANCELLED"
)

const (
	ReturnStatusCompleted = "COMPLETED"
	ReturnStatusCancelled = "CANCELLED"
)

const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPartial = "PARTIAL"
	PaymentStatusPaid    = "PAID"
)

// ── Discriminators (CHECK constrained in DB) ──

const (
	UserRoleAdmin = "ADMIN"
	UserRoleStaff = "STAFF"
)

const (
	OrderKindSale     = "SALE"
	OrderKindPurchase = "PURCHASE"
)

const (
	MovementSale           = "SALE"
	MovementPurchase       = "PURCHASE"
	MovementSaleReturn     = "SALE_RETURN"
	MovementPurchaseReturn = "PURCHASE_RETURN"
	MovementAdjustment     = "ADJUSTMENT"
	MovementSaleCancel     = "SALE_CANCEL"
	MovementPurchaseCancel = "PURCHASE_CANCEL"
	MovementReturnCancel   = "RETURN_CANCEL"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)
