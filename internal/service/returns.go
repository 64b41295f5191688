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

// Errors returned by the return service.
var (
	ErrInvalidOrderKind    = errors.New("invalid order_kind")
	ErrInvalidOrderID      = errors.New("invalid order_id")
	ErrProductNotOnOrder   = errors.New("product not on order")
	ErrReturnExceedsOrder  = errors.New("return quantity exceeds ordered quantity")
	ErrPurchaseNotReceived = errors.New("purchase order has not been received")
	ErrReturnNotFound      = errors.New("return not found")
	ErrReturnCancelled     = errors.New("return is cancelled")
)

// ReturnStore defines the DB methods needed by the return service.
// Satisfied by *database.Queries (and its WithTx variant).
type ReturnStore interface {
	GetSettings(ctx context.Context) (database.Setting, error)
	CountReturnsInRange(ctx context.Context, arg database.CountReturnsInRangeParams) (int64, error)
	GetSalesOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	ListSalesOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListSalesOrderItemsRow, error)
	ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error)
	SumReturnedQuantities(ctx context.Context, arg database.SumReturnedQuantitiesParams) ([]database.SumReturnedQuantitiesRow, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreateReturn(ctx context.Context, arg database.CreateReturnParams) (database.Return, error)
	CreateReturnItem(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error)
	GetReturnForUpdate(ctx context.Context, id uuid.UUID) (database.Return, error)
	ListReturnItems(ctx context.Context, returnID uuid.UUID) ([]database.ListReturnItemsRow, error)
	CancelReturn(ctx context.Context, id uuid.UUID) (database.Return, error)
}

// NewReturnStore creates a ReturnStore from a DBTX (pool or tx).
type NewReturnStore func(db database.DBTX) ReturnStore

// CreateReturnRequest is the validated input for creating a return.
type CreateReturnRequest struct {
	CreatedBy uuid.UUID
	OrderKind string
	OrderID   string
	Reason    string
	Items     []CreateReturnItemRequest
}

// CreateReturnItemRequest is a single returned line.
type CreateReturnItemRequest struct {
	ProductID string
	Quantity  int32
}

// CreateReturnResult is the full created return with items.
type CreateReturnResult struct {
	Return database.Return
	Items  []database.ReturnItem
}

// ReturnService handles return business logic.
type ReturnService struct {
	pool     TxBeginner
	newStore NewReturnStore
}

// NewReturnService creates a new ReturnService.
func NewReturnService(pool TxBeginner, newStore NewReturnStore) *ReturnService {
	return &ReturnService{pool: pool, newStore: newStore}
}

// orderedLine is what the return is validated against: the originally
// ordered quantity and the price the refund is computed from.
type orderedLine struct {
	quantity  int32
	unitPrice decimal.Decimal
}

// CreateReturn validates quantities against the original order (minus prior
// non-cancelled returns), adjusts stock, and records the return atomically.
// Sale returns put stock back; purchase returns take it out. Retries on
// return number conflicts.
func (s *ReturnService) CreateReturn(ctx context.Context, req CreateReturnRequest) (*CreateReturnResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.OrderKind != enum.OrderKindSale && req.OrderKind != enum.OrderKindPurchase {
		return nil, ErrInvalidOrderKind
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createReturnTx(ctx, req)
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

func (s *ReturnService) createReturnTx(ctx context.Context, req CreateReturnRequest) (*CreateReturnResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, ErrInvalidOrderID
	}

	// Lock the order and load its lines so quantities can't shift under us.
	ordered, err := s.loadOrderedLines(ctx, store, req.OrderKind, orderID)
	if err != nil {
		return nil, err
	}

	// Subtract quantities already returned on prior returns.
	prior, err := store.SumReturnedQuantities(ctx, database.SumReturnedQuantitiesParams{
		OrderKind: req.OrderKind,
		OrderID:   orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("sum returned: %w", err)
	}
	remaining := make(map[uuid.UUID]int64, len(ordered))
	for pid, line := range ordered {
		remaining[pid] = int64(line.quantity)
	}
	for _, row := range prior {
		remaining[row.ProductID] -= row.TotalQuantity
	}

	refund := decimal.Zero
	var itemParams []database.CreateReturnItemParams

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		line, ok := ordered[productID]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotOnOrder)
		}
		if int64(item.Quantity) > remaining[productID] {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrReturnExceedsOrder)
		}
		remaining[productID] -= int64(item.Quantity)

		itemSubtotal := line.unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		refund = refund.Add(itemSubtotal)

		itemParams = append(itemParams, database.CreateReturnItemParams{
			ProductID: productID,
			Quantity:  item.Quantity,
			UnitPrice: decimalToNumeric(line.unitPrice),
			Subtotal:  decimalToNumeric(itemSubtotal),
		})
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	returnNumber, err := nextDocumentNumber(ctx, settings.ReturnPrefix, func(start, end time.Time) (int64, error) {
		return store.CountReturnsInRange(ctx, database.CountReturnsInRangeParams{Start: start, End: end})
	})
	if err != nil {
		return nil, fmt.Errorf("next return number: %w", err)
	}

	reason := pgtype.Text{}
	if req.Reason != "" {
		reason = pgtype.Text{String: req.Reason, Valid: true}
	}

	ret, err := store.CreateReturn(ctx, database.CreateReturnParams{
		ReturnNumber: returnNumber,
		OrderKind:    req.OrderKind,
		OrderID:      orderID,
		Reason:       reason,
		RefundAmount: decimalToNumeric(refund),
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create return: %w", err)
	}

	var items []database.ReturnItem
	for _, p := range itemParams {
		p.ReturnID = ret.ID
		item, err := store.CreateReturnItem(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create return item: %w", err)
		}
		items = append(items, item)

		if err := s.applyStockChange(ctx, store, req.OrderKind, item, ret.ID, req.CreatedBy, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateReturnResult{Return: ret, Items: items}, nil
}

// loadOrderedLines locks the originating order and returns its lines keyed
// by product. Refund prices come from the order's own snapshots.
func (s *ReturnService) loadOrderedLines(ctx context.Context, store ReturnStore, orderKind string, orderID uuid.UUID) (map[uuid.UUID]orderedLine, error) {
	ordered := make(map[uuid.UUID]orderedLine)

	switch orderKind {
	case enum.OrderKindSale:
		order, err := store.GetSalesOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("get sales order: %w", err)
		}
		if order.Status == enum.SalesOrderStatusCancelled {
			return nil, ErrOrderCancelled
		}
		items, err := store.ListSalesOrderItems(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		for _, it := range items {
			ordered[it.ProductID] = orderedLine{quantity: it.Quantity, unitPrice: numericToDecimal(it.UnitPrice)}
		}

	case enum.OrderKindPurchase:
		order, err := store.GetPurchaseOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("get purchase order: %w", err)
		}
		if order.Status == enum.PurchaseOrderStatusCancelled {
			return nil, ErrOrderCancelled
		}
		if order.Status != enum.PurchaseOrderStatusReceived {
			return nil, ErrPurchaseNotReceived
		}
		items, err := store.ListPurchaseOrderItems(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		for _, it := range items {
			ordered[it.ProductID] = orderedLine{quantity: it.Quantity, unitPrice: numericToDecimal(it.UnitCost)}
		}
	}

	return ordered, nil
}

// applyStockChange applies (or reverses) the stock effect of one return
// item. The sign depends on the order kind: sale returns add stock back,
// purchase returns remove it.
func (s *ReturnService) applyStockChange(ctx context.Context, store ReturnStore, orderKind string, item database.ReturnItem, refID, actor uuid.UUID, reverse bool) error {
	delta := item.Quantity
	movementType := enum.MovementSaleReturn
	if orderKind == enum.OrderKindPurchase {
		delta = -delta
		movementType = enum.MovementPurchaseReturn
	}
	if reverse {
		delta = -delta
		movementType = enum.MovementReturnCancel
	}

	product, err := store.GetProductForUpdate(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("lock product: %w", err)
	}
	if delta < 0 && product.StockQuantity < -delta {
		return fmt.Errorf("%s: %w", product.Sku, ErrInsufficientStock)
	}

	if _, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
		QuantityChange: delta,
		ID:             item.ProductID,
	}); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		ProductID:      item.ProductID,
		QuantityChange: delta,
		MovementType:   movementType,
		ReferenceID:    pgtype.UUID{Bytes: refID, Valid: true},
		CreatedBy:      actor,
	}); err != nil {
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// CancelReturn reverses the return's stock adjustments and marks it
// CANCELLED, all in one transaction.
func (s *ReturnService) CancelReturn(ctx context.Context, returnID, cancelledBy uuid.UUID) (*database.Return, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ret, err := store.GetReturnForUpdate(ctx, returnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReturnNotFound
		}
		return nil, fmt.Errorf("get return: %w", err)
	}
	if ret.Status == enum.ReturnStatusCancelled {
		return nil, ErrReturnCancelled
	}

	rows, err := store.ListReturnItems(ctx, returnID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	for _, row := range rows {
		item := database.ReturnItem{
			ID:        row.ID,
			ReturnID:  row.ReturnID,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			UnitPrice: row.UnitPrice,
			Subtotal:  row.Subtotal,
		}
		if err := s.applyStockChange(ctx, store, ret.OrderKind, item, ret.ID, cancelledBy, true); err != nil {
			return nil, err
		}
	}

	cancelled, err := store.CancelReturn(ctx, returnID)
	if err != nil {
		return nil, fmt.Errorf("cancel return: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}
