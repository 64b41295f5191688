package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
)

const maxOrderNumberRetries = 3

// Errors returned by the sales order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidCustomerID    = errors.New("invalid customer_id")
	ErrInvalidUnitPrice     = errors.New("invalid unit_price")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidDiscount      = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("invalid discount_value")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderCancelled       = errors.New("order is cancelled")
	ErrOrderHasReturns      = errors.New("order has completed returns")
)

// SalesOrderStore defines the DB methods needed to create and cancel sales
// orders. Satisfied by *database.Queries (and its WithTx variant).
type SalesOrderStore interface {
	GetSettings(ctx context.Context) (database.Setting, error)
	CountSalesOrdersInRange(ctx context.Context, arg database.CountSalesOrdersInRangeParams) (int64, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreateSalesOrder(ctx context.Context, arg database.CreateSalesOrderParams) (database.SalesOrder, error)
	CreateSalesOrderItem(ctx context.Context, arg database.CreateSalesOrderItemParams) (database.SalesOrderItem, error)
	GetSalesOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	ListSalesOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListSalesOrderItemsRow, error)
	CancelSalesOrder(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	CountCompletedReturnsByOrder(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error)
}

// NewSalesOrderStore creates a SalesOrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewSalesOrderStore func(db database.DBTX) SalesOrderStore

// CreateOrderRequest is the validated input for creating a sales order.
type CreateOrderRequest struct {
	CreatedBy     uuid.UUID
	CustomerID    string
	Notes         string
	DiscountType  string
	DiscountValue string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line on the order. UnitPrice overrides
// the product's selling price when set.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
	UnitPrice string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.SalesOrder
	Items []database.SalesOrderItem
}

// SalesOrderService handles sales order business logic.
type SalesOrderService struct {
	pool     TxBeginner
	newStore NewSalesOrderStore
}

// NewSalesOrderService creates a new SalesOrderService.
func NewSalesOrderService(pool TxBeginner, newStore NewSalesOrderStore) *SalesOrderService {
	return &SalesOrderService{pool: pool, newStore: newStore}
}

// processedItem holds a prepared order item awaiting insert.
type processedItem struct {
	params database.CreateSalesOrderItemParams
}

// CreateOrder validates, snapshots prices, decrements stock, and creates an
// order atomically. Retries up to maxOrderNumberRetries times on
// order_number unique constraint violations (race condition where concurrent
// transactions compute the same per-day sequence).
func (s *SalesOrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	if req.DiscountType != "" && !isValidDiscountType(req.DiscountType) {
		return nil, ErrInvalidDiscount
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// createOrderTx executes the full order creation in a single transaction.
func (s *SalesOrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	orderNumber, err := nextDocumentNumber(ctx, settings.SalesPrefix, func(start, end time.Time) (int64, error) {
		return store.CountSalesOrdersInRange(ctx, database.CountSalesOrdersInRangeParams{Start: start, End: end})
	})
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}

	// --- Process items: validate, snapshot prices, decrement stock ---
	orderSubtotal := decimal.Zero
	var items []processedItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		// Lock the product row so the stock check and decrement are atomic
		// against concurrent orders.
		product, err := store.GetProductForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		if product.StockQuantity < item.Quantity {
			return nil, fmt.Errorf("item[%d] %s: %w", i, product.Sku, ErrInsufficientStock)
		}

		unitPrice := numericToDecimal(product.SellingPrice)
		if item.UnitPrice != "" {
			override, err := decimal.NewFromString(item.UnitPrice)
			if err != nil || override.IsNegative() {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
			}
			unitPrice = override
		}

		itemSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		orderSubtotal = orderSubtotal.Add(itemSubtotal)

		if _, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
			QuantityChange: -item.Quantity,
			ID:             productID,
		}); err != nil {
			return nil, fmt.Errorf("item[%d]: adjust stock: %w", i, err)
		}

		items = append(items, processedItem{
			params: database.CreateSalesOrderItemParams{
				ProductID: productID,
				Quantity:  item.Quantity,
				UnitPrice: decimalToNumeric(unitPrice),
				CostPrice: product.CostPrice,
				Subtotal:  decimalToNumeric(itemSubtotal),
			},
		})
	}

	// --- Calculate order-level discount ---
	orderDiscountType := pgtype.Text{}
	orderDiscountValue := pgtype.Numeric{}
	orderDiscountAmount := decimal.Zero
	if req.DiscountType != "" {
		dv, err := decimal.NewFromString(req.DiscountValue)
		if err != nil || dv.IsNegative() {
			return nil, ErrInvalidDiscountValue
		}
		orderDiscountType = pgtype.Text{String: req.DiscountType, Valid: true}
		orderDiscountValue = decimalToNumeric(dv)

		if req.DiscountType == enum.DiscountTypePercentage {
			orderDiscountAmount = orderSubtotal.Mul(dv).Div(decimal.NewFromInt(100))
		} else {
			orderDiscountAmount = dv
		}
	}

	// --- Tax and total ---
	taxable := orderSubtotal.Sub(orderDiscountAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	taxRate := numericToDecimal(settings.TaxRatePercent)
	taxAmount := taxable.Mul(taxRate).Div(decimal.NewFromInt(100))
	totalAmount := taxable.Add(taxAmount)

	// --- Build order params ---
	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateSalesOrder(ctx, database.CreateSalesOrderParams{
		OrderNumber:    orderNumber,
		CustomerID:     customerID,
		Subtotal:       decimalToNumeric(orderSubtotal),
		DiscountType:   orderDiscountType,
		DiscountValue:  orderDiscountValue,
		DiscountAmount: decimalToNumeric(orderDiscountAmount),
		TaxAmount:      decimalToNumeric(taxAmount),
		TotalAmount:    decimalToNumeric(totalAmount),
		Notes:          notes,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create sales order: %w", err)
	}

	var itemResults []database.SalesOrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateSalesOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create sales order item: %w", err)
		}
		itemResults = append(itemResults, item)

		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			ProductID:      item.ProductID,
			QuantityChange: -item.Quantity,
			MovementType:   enum.MovementSale,
			ReferenceID:    pgtype.UUID{Bytes: order.ID, Valid: true},
			CreatedBy:      req.CreatedBy,
		}); err != nil {
			return nil, fmt.Errorf("create stock movement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemResults}, nil
}

// CancelOrder restores each item's stock and marks the order CANCELLED, all
// in one transaction. Orders with completed returns cannot be cancelled.
func (s *SalesOrderService) CancelOrder(ctx context.Context, orderID, cancelledBy uuid.UUID) (*database.SalesOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetSalesOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.SalesOrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	returns, err := store.CountCompletedReturnsByOrder(ctx, database.CountCompletedReturnsByOrderParams{
		OrderKind: enum.OrderKindSale,
		OrderID:   orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("count returns: %w", err)
	}
	if returns > 0 {
		return nil, ErrOrderHasReturns
	}

	items, err := store.ListSalesOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	for _, item := range items {
		if _, err := store.GetProductForUpdate(ctx, item.ProductID); err != nil {
			// Soft-deleted products still get their stock restored.
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("lock product: %w", err)
			}
		}
		if _, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
			QuantityChange: item.Quantity,
			ID:             item.ProductID,
		}); err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			ProductID:      item.ProductID,
			QuantityChange: item.Quantity,
			MovementType:   enum.MovementSaleCancel,
			ReferenceID:    pgtype.UUID{Bytes: orderID, Valid: true},
			CreatedBy:      cancelledBy,
		}); err != nil {
			return nil, fmt.Errorf("create stock movement: %w", err)
		}
	}

	cancelled, err := store.CancelSalesOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}

// --- Helpers ---

func isValidDiscountType(s string) bool {
	switch s {
	case enum.DiscountTypePercentage, enum.DiscountTypeFixed:
		return true
	}
	return false
}

// nextDocumentNumber computes the next date-prefixed sequential document
// number, e.g. SO20260829003. The sequence is per calendar day in server
// local time; uniqueness is enforced by the DB constraint and callers retry
// on conflict.
func nextDocumentNumber(_ context.Context, prefix string, countInRange func(start, end time.Time) (int64, error)) (string, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	count, err := countInRange(start, end)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%03d", prefix, now.Format("20060102"), count+1), nil
}
