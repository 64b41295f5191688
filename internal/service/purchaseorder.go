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

// Errors returned by the purchase order service.
var (
	ErrInvalidVendorID     = errors.New("invalid vendor_id")
	ErrVendorNotFound      = errors.New("vendor not found")
	ErrInvalidUnitCost     = errors.New("invalid unit_cost")
	ErrInvalidExpectedDate = errors.New("invalid expected_date")
	ErrNotOrdered          = errors.New("order is not in ORDERED status")
	ErrStockBelowReceived  = errors.New("stock has dropped below the received quantity")
)

// PurchaseOrderStore defines the DB methods needed by the purchase order
// service. Satisfied by *database.Queries (and its WithTx variant).
type PurchaseOrderStore interface {
	GetSettings(ctx context.Context) (database.Setting, error)
	CountPurchaseOrdersInRange(ctx context.Context, arg database.CountPurchaseOrdersInRangeParams) (int64, error)
	GetVendor(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	UpdateProductCostPrice(ctx context.Context, arg database.UpdateProductCostPriceParams) (uuid.UUID, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreatePurchaseOrder(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error)
	CreatePurchaseOrderItem(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error)
	MarkPurchaseOrderReceived(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	CountCompletedReturnsByOrder(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error)
}

// NewPurchaseOrderStore creates a PurchaseOrderStore from a DBTX (pool or tx).
type NewPurchaseOrderStore func(db database.DBTX) PurchaseOrderStore

// CreatePurchaseRequest is the validated input for creating a purchase order.
type CreatePurchaseRequest struct {
	CreatedBy    uuid.UUID
	VendorID     string
	ExpectedDate string // RFC3339, optional
	Notes        string
	Items        []CreatePurchaseItemRequest
}

// CreatePurchaseItemRequest is a single line on the purchase order. UnitCost
// overrides the product's current cost price when set.
type CreatePurchaseItemRequest struct {
	ProductID string
	Quantity  int32
	UnitCost  string
}

// CreatePurchaseResult is the full created purchase order with items.
type CreatePurchaseResult struct {
	Order database.PurchaseOrder
	Items []database.PurchaseOrderItem
}

// PurchaseOrderService handles purchase order business logic.
type PurchaseOrderService struct {
	pool     TxBeginner
	newStore NewPurchaseOrderStore
}

// NewPurchaseOrderService creates a new PurchaseOrderService.
func NewPurchaseOrderService(pool TxBeginner, newStore NewPurchaseOrderStore) *PurchaseOrderService {
	return &PurchaseOrderService{pool: pool, newStore: newStore}
}

// CreateOrder creates a purchase order in ORDERED status. Stock is not
// touched until the order is received. Retries on order number conflicts.
func (s *PurchaseOrderService) CreateOrder(ctx context.Context, req CreatePurchaseRequest) (*CreatePurchaseResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
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

func (s *PurchaseOrderService) createOrderTx(ctx context.Context, req CreatePurchaseRequest) (*CreatePurchaseResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	vendorID, err := uuid.Parse(req.VendorID)
	if err != nil {
		return nil, ErrInvalidVendorID
	}
	if _, err := store.GetVendor(ctx, vendorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	orderNumber, err := nextDocumentNumber(ctx, settings.PurchasePrefix, func(start, end time.Time) (int64, error) {
		return store.CountPurchaseOrdersInRange(ctx, database.CountPurchaseOrdersInRangeParams{Start: start, End: end})
	})
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}

	subtotal := decimal.Zero
	var itemParams []database.CreatePurchaseOrderItemParams

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		unitCost := numericToDecimal(product.CostPrice)
		if item.UnitCost != "" {
			override, err := decimal.NewFromString(item.UnitCost)
			if err != nil || override.IsNegative() {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitCost)
			}
			unitCost = override
		}

		itemSubtotal := unitCost.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(itemSubtotal)

		itemParams = append(itemParams, database.CreatePurchaseOrderItemParams{
			ProductID: productID,
			Quantity:  item.Quantity,
			UnitCost:  decimalToNumeric(unitCost),
			Subtotal:  decimalToNumeric(itemSubtotal),
		})
	}

	expectedDate := pgtype.Timestamptz{}
	if req.ExpectedDate != "" {
		t, err := time.Parse(time.RFC3339, req.ExpectedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExpectedDate, err)
		}
		expectedDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// Purchases carry no tax in the current model; vendors invoice their
	// own tax inclusive of unit cost.
	order, err := store.CreatePurchaseOrder(ctx, database.CreatePurchaseOrderParams{
		OrderNumber:  orderNumber,
		VendorID:     vendorID,
		Subtotal:     decimalToNumeric(subtotal),
		TaxAmount:    decimalToNumeric(decimal.Zero),
		TotalAmount:  decimalToNumeric(subtotal),
		ExpectedDate: expectedDate,
		Notes:        notes,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}

	var items []database.PurchaseOrderItem
	for _, p := range itemParams {
		p.OrderID = order.ID
		item, err := store.CreatePurchaseOrderItem(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create purchase order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreatePurchaseResult{Order: order, Items: items}, nil
}

// ReceiveOrder moves an ORDERED purchase order to RECEIVED: per item it
// increments stock, records a movement, and updates the product's cost
// price to the received unit cost (latest-cost valuation).
func (s *PurchaseOrderService) ReceiveOrder(ctx context.Context, orderID, receivedBy uuid.UUID) (*database.PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetPurchaseOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.PurchaseOrderStatusOrdered {
		return nil, ErrNotOrdered
	}

	items, err := store.ListPurchaseOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	for _, item := range items {
		if _, err := store.GetProductForUpdate(ctx, item.ProductID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lock product: %w", err)
		}
		if _, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
			QuantityChange: item.Quantity,
			ID:             item.ProductID,
		}); err != nil {
			return nil, fmt.Errorf("adjust stock: %w", err)
		}
		if _, err := store.UpdateProductCostPrice(ctx, database.UpdateProductCostPriceParams{
			CostPrice: item.UnitCost,
			ID:        item.ProductID,
		}); err != nil {
			return nil, fmt.Errorf("update cost price: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			ProductID:      item.ProductID,
			QuantityChange: item.Quantity,
			MovementType:   enum.MovementPurchase,
			ReferenceID:    pgtype.UUID{Bytes: orderID, Valid: true},
			CreatedBy:      receivedBy,
		}); err != nil {
			return nil, fmt.Errorf("create stock movement: %w", err)
		}
	}

	received, err := store.MarkPurchaseOrderReceived(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("mark received: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &received, nil
}

// CancelOrder cancels a purchase order. ORDERED orders are simply marked;
// RECEIVED orders additionally reverse the stock they added, which is
// rejected if stock has since dropped below the received quantity.
func (s *PurchaseOrderService) CancelOrder(ctx context.Context, orderID, cancelledBy uuid.UUID) (*database.PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetPurchaseOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.PurchaseOrderStatusCancelled {
		return nil, ErrOrderCancelled
	}

	returns, err := store.CountCompletedReturnsByOrder(ctx, database.CountCompletedReturnsByOrderParams{
		OrderKind: enum.OrderKindPurchase,
		OrderID:   orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("count returns: %w", err)
	}
	if returns > 0 {
		return nil, ErrOrderHasReturns
	}

	if order.Status == enum.PurchaseOrderStatusReceived {
		items, err := store.ListPurchaseOrderItems(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		for _, item := range items {
			product, err := store.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				// Soft-deleted products still get the received stock
				// reversed; the row exists, only the active filter hides it.
				if !errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("lock product: %w", err)
				}
			} else if product.StockQuantity < item.Quantity {
				return nil, fmt.Errorf("%s: %w", product.Sku, ErrStockBelowReceived)
			}
			if _, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
				QuantityChange: -item.Quantity,
				ID:             item.ProductID,
			}); err != nil {
				return nil, fmt.Errorf("reverse stock: %w", err)
			}
			if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
				ProductID:      item.ProductID,
				QuantityChange: -item.Quantity,
				MovementType:   enum.MovementPurchaseCancel,
				ReferenceID:    pgtype.UUID{Bytes: orderID, Valid: true},
				CreatedBy:      cancelledBy,
			}); err != nil {
				return nil, fmt.Errorf("create stock movement: %w", err)
			}
		}
	}

	cancelled, err := store.CancelPurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}
