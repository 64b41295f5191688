package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
)

type mockReturnStore struct {
	getSettingsFn            func(ctx context.Context) (database.Setting, error)
	countReturnsFn           func(ctx context.Context, arg database.CountReturnsInRangeParams) (int64, error)
	getSalesOrderForUpdateFn func(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	getPurchaseForUpdateFn   func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	listSalesItemsFn         func(ctx context.Context, orderID uuid.UUID) ([]database.ListSalesOrderItemsRow, error)
	listPurchaseItemsFn      func(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error)
	sumReturnedFn            func(ctx context.Context, arg database.SumReturnedQuantitiesParams) ([]database.SumReturnedQuantitiesRow, error)
	getProductForUpdateFn    func(ctx context.Context, id uuid.UUID) (database.Product, error)
	adjustStockFn            func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	createMovementFn         func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	createReturnFn           func(ctx context.Context, arg database.CreateReturnParams) (database.Return, error)
	createItemFn             func(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error)
	getReturnForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.Return, error)
	listReturnItemsFn        func(ctx context.Context, returnID uuid.UUID) ([]database.ListReturnItemsRow, error)
	cancelReturnFn           func(ctx context.Context, id uuid.UUID) (database.Return, error)
}

func (m *mockReturnStore) GetSettings(ctx context.Context) (database.Setting, error) {
	return m.getSettingsFn(ctx)
}
func (m *mockReturnStore) CountReturnsInRange(ctx context.Context, arg database.CountReturnsInRangeParams) (int64, error) {
	return m.countReturnsFn(ctx, arg)
}
func (m *mockReturnStore) GetSalesOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SalesOrder, error) {
	return m.getSalesOrderForUpdateFn(ctx, id)
}
func (m *mockReturnStore) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return m.getPurchaseForUpdateFn(ctx, id)
}
func (m *mockReturnStore) ListSalesOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListSalesOrderItemsRow, error) {
	return m.listSalesItemsFn(ctx, orderID)
}
func (m *mockReturnStore) ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
	return m.listPurchaseItemsFn(ctx, orderID)
}
func (m *mockReturnStore) SumReturnedQuantities(ctx context.Context, arg database.SumReturnedQuantitiesParams) ([]database.SumReturnedQuantitiesRow, error) {
	return m.sumReturnedFn(ctx, arg)
}
func (m *mockReturnStore) GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductForUpdateFn(ctx, id)
}
func (m *mockReturnStore) AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
	return m.adjustStockFn(ctx, arg)
}
func (m *mockReturnStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	return m.createMovementFn(ctx, arg)
}
func (m *mockReturnStore) CreateReturn(ctx context.Context, arg database.CreateReturnParams) (database.Return, error) {
	return m.createReturnFn(ctx, arg)
}
func (m *mockReturnStore) CreateReturnItem(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error) {
	return m.createItemFn(ctx, arg)
}
func (m *mockReturnStore) GetReturnForUpdate(ctx context.Context, id uuid.UUID) (database.Return, error) {
	return m.getReturnForUpdateFn(ctx, id)
}
func (m *mockReturnStore) ListReturnItems(ctx context.Context, returnID uuid.UUID) ([]database.ListReturnItemsRow, error) {
	return m.listReturnItemsFn(ctx, returnID)
}
func (m *mockReturnStore) CancelReturn(ctx context.Context, id uuid.UUID) (database.Return, error) {
	return m.cancelReturnFn(ctx, id)
}

// defaultReturnStore wires up a COMPLETED sale of 5 widgets at 25.00 with
// nothing returned yet.
func defaultReturnStore(orderID, productID uuid.UUID) *mockReturnStore {
	return &mockReturnStore{
		getSettingsFn: func(ctx context.Context) (database.Setting, error) {
			return testSettings(), nil
		},
		countReturnsFn: func(ctx context.Context, arg database.CountReturnsInRangeParams) (int64, error) {
			return 0, nil
		},
		getSalesOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.SalesOrder, error) {
			if id == orderID {
				return database.SalesOrder{ID: orderID, Status: enum.SalesOrderStatusCompleted}, nil
			}
			return database.SalesOrder{}, pgx.ErrNoRows
		},
		listSalesItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.ListSalesOrderItemsRow, error) {
			return []database.ListSalesOrderItemsRow{
				{ProductID: productID, Quantity: 5, UnitPrice: makeNumeric("25.00")},
			}, nil
		},
		sumReturnedFn: func(ctx context.Context, arg database.SumReturnedQuantitiesParams) ([]database.SumReturnedQuantitiesRow, error) {
			return nil, nil
		},
		getProductForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			return database.Product{ID: productID, Sku: "WIDGET-1", StockQuantity: 50}, nil
		},
		adjustStockFn: func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
			return database.Product{ID: arg.ID}, nil
		},
		createMovementFn: func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
			return database.StockMovement{ID: uuid.New()}, nil
		},
		createReturnFn: func(ctx context.Context, arg database.CreateReturnParams) (database.Return, error) {
			return database.Return{
				ID:           uuid.New(),
				ReturnNumber: arg.ReturnNumber,
				OrderKind:    arg.OrderKind,
				OrderID:      arg.OrderID,
				RefundAmount: arg.RefundAmount,
				Status:       enum.ReturnStatusCompleted,
			}, nil
		},
		createItemFn: func(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error) {
			return database.ReturnItem{
				ID:        uuid.New(),
				ReturnID:  arg.ReturnID,
				ProductID: arg.ProductID,
				Quantity:  arg.Quantity,
				UnitPrice: arg.UnitPrice,
				Subtotal:  arg.Subtotal,
			}, nil
		},
	}
}

func newReturnService(store *mockReturnStore) *ReturnService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	return NewReturnService(pool, func(db database.DBTX) ReturnStore { return store })
}

func TestCreateReturn_SaleRestocksAndRefunds(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(orderID, productID)

	var adjusted []database.AdjustProductStockParams
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjusted = append(adjusted, arg)
		return database.Product{ID: arg.ID}, nil
	}
	var movements []database.CreateStockMovementParams
	store.createMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return database.StockMovement{ID: uuid.New()}, nil
	}

	svc := newReturnService(store)
	result, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindSale,
		OrderID:   orderID.String(),
		Reason:    "damaged in transit",
		Items:     []CreateReturnItemRequest{{ProductID: productID.String(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	// Refund comes from the order's snapshot price: 2 x 25.00 = 50.00.
	if !numericEquals(result.Return.RefundAmount, "50.00") {
		t.Errorf("refund: got %v, want 50.00", numericToDecimal(result.Return.RefundAmount))
	}

	wantNumber := fmt.Sprintf("RT%s001", time.Now().Format("20060102"))
	if result.Return.ReturnNumber != wantNumber {
		t.Errorf("return number: got %q, want %q", result.Return.ReturnNumber, wantNumber)
	}

	if len(adjusted) != 1 || adjusted[0].QuantityChange != 2 {
		t.Errorf("expected restock of +2, got %+v", adjusted)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementSaleReturn {
		t.Errorf("expected SALE_RETURN movement, got %+v", movements)
	}
}

func TestCreateReturn_ExceedsRemaining(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(orderID, productID)

	// 4 of the 5 ordered units were already returned.
	store.sumReturnedFn = func(ctx context.Context, arg database.SumReturnedQuantitiesParams) ([]database.SumReturnedQuantitiesRow, error) {
		return []database.SumReturnedQuantitiesRow{
			{ProductID: productID, TotalQuantity: 4},
		}, nil
	}

	svc := newReturnService(store)
	_, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindSale,
		OrderID:   orderID.String(),
		Items:     []CreateReturnItemRequest{{ProductID: productID.String(), Quantity: 2}},
	})
	if !errors.Is(err, ErrReturnExceedsOrder) {
		t.Errorf("got %v, want ErrReturnExceedsOrder", err)
	}
}

func TestCreateReturn_ProductNotOnOrder(t *testing.T) {
	orderID := uuid.New()
	store := defaultReturnStore(orderID, uuid.New())

	svc := newReturnService(store)
	_, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindSale,
		OrderID:   orderID.String(),
		Items:     []CreateReturnItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotOnOrder) {
		t.Errorf("got %v, want ErrProductNotOnOrder", err)
	}
}

func TestCreateReturn_InvalidOrderKind(t *testing.T) {
	svc := newReturnService(defaultReturnStore(uuid.New(), uuid.New()))
	_, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: "LEASE",
		OrderID:   uuid.New().String(),
		Items:     []CreateReturnItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
	})
	if err != ErrInvalidOrderKind {
		t.Errorf("got %v, want ErrInvalidOrderKind", err)
	}
}

func TestCreateReturn_PurchaseRemovesStock(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(orderID, productID)

	store.getPurchaseForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusReceived}, nil
	}
	store.listPurchaseItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10, UnitCost: makeNumeric("9.00")},
		}, nil
	}

	var adjusted []database.AdjustProductStockParams
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjusted = append(adjusted, arg)
		return database.Product{ID: arg.ID}, nil
	}
	var movements []database.CreateStockMovementParams
	store.createMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return database.StockMovement{ID: uuid.New()}, nil
	}

	svc := newReturnService(store)
	result, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindPurchase,
		OrderID:   orderID.String(),
		Items:     []CreateReturnItemRequest{{ProductID: productID.String(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	// Refund from the purchase cost snapshot: 3 x 9.00 = 27.00.
	if !numericEquals(result.Return.RefundAmount, "27.00") {
		t.Errorf("refund: got %v, want 27.00", numericToDecimal(result.Return.RefundAmount))
	}
	if len(adjusted) != 1 || adjusted[0].QuantityChange != -3 {
		t.Errorf("expected stock removal of -3, got %+v", adjusted)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementPurchaseReturn {
		t.Errorf("expected PURCHASE_RETURN movement, got %+v", movements)
	}
}

func TestCreateReturn_PurchaseNotReceived(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(orderID, productID)
	store.getPurchaseForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusOrdered}, nil
	}

	svc := newReturnService(store)
	_, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindPurchase,
		OrderID:   orderID.String(),
		Items:     []CreateReturnItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	if err != ErrPurchaseNotReceived {
		t.Errorf("got %v, want ErrPurchaseNotReceived", err)
	}
}

func TestCreateReturn_PurchaseInsufficientStock(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(orderID, productID)

	store.getPurchaseForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusReceived}, nil
	}
	store.listPurchaseItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10, UnitCost: makeNumeric("9.00")},
		}, nil
	}
	// Only 2 units on hand, cannot send 3 back to the vendor.
	store.getProductForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{ID: productID, Sku: "WIDGET-1", StockQuantity: 2}, nil
	}

	svc := newReturnService(store)
	_, err := svc.CreateReturn(context.Background(), CreateReturnRequest{
		CreatedBy: uuid.New(),
		OrderKind: enum.OrderKindPurchase,
		OrderID:   orderID.String(),
		Items:     []CreateReturnItemRequest{{ProductID: productID.String(), Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("got %v, want ErrInsufficientStock", err)
	}
}

func TestCancelReturn_ReversesSaleRestock(t *testing.T) {
	returnID := uuid.New()
	productID := uuid.New()
	store := defaultReturnStore(uuid.New(), productID)

	store.getReturnForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Return, error) {
		return database.Return{ID: returnID, OrderKind: enum.OrderKindSale, Status: enum.ReturnStatusCompleted}, nil
	}
	store.listReturnItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListReturnItemsRow, error) {
		return []database.ListReturnItemsRow{
			{ID: uuid.New(), ReturnID: returnID, ProductID: productID, Quantity: 2, UnitPrice: makeNumeric("25.00"), Subtotal: makeNumeric("50.00")},
		}, nil
	}
	store.cancelReturnFn = func(ctx context.Context, id uuid.UUID) (database.Return, error) {
		return database.Return{ID: id, Status: enum.ReturnStatusCancelled}, nil
	}

	var adjusted []database.AdjustProductStockParams
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjusted = append(adjusted, arg)
		return database.Product{ID: arg.ID}, nil
	}
	var movements []database.CreateStockMovementParams
	store.createMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return database.StockMovement{ID: uuid.New()}, nil
	}

	svc := newReturnService(store)
	cancelled, err := svc.CancelReturn(context.Background(), returnID, uuid.New())
	if err != nil {
		t.Fatalf("cancel return: %v", err)
	}
	if cancelled.Status != enum.ReturnStatusCancelled {
		t.Errorf("status: got %q, want CANCELLED", cancelled.Status)
	}
	// A sale return added 2 back; cancelling takes them out again.
	if len(adjusted) != 1 || adjusted[0].QuantityChange != -2 {
		t.Errorf("expected reversal of -2, got %+v", adjusted)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementReturnCancel {
		t.Errorf("expected RETURN_CANCEL movement, got %+v", movements)
	}
}

func TestCancelReturn_AlreadyCancelled(t *testing.T) {
	store := defaultReturnStore(uuid.New(), uuid.New())
	store.getReturnForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Return, error) {
		return database.Return{ID: id, Status: enum.ReturnStatusCancelled}, nil
	}

	svc := newReturnService(store)
	_, err := svc.CancelReturn(context.Background(), uuid.New(), uuid.New())
	if err != ErrReturnCancelled {
		t.Errorf("got %v, want ErrReturnCancelled", err)
	}
}
