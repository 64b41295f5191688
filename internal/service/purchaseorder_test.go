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

type mockPurchaseOrderStore struct {
	getSettingsFn             func(ctx context.Context) (database.Setting, error)
	countOrdersFn             func(ctx context.Context, arg database.CountPurchaseOrdersInRangeParams) (int64, error)
	getVendorFn               func(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	getProductFn              func(ctx context.Context, id uuid.UUID) (database.Product, error)
	getProductForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.Product, error)
	adjustStockFn             func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	updateCostPriceFn         func(ctx context.Context, arg database.UpdateProductCostPriceParams) (uuid.UUID, error)
	createMovementFn          func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	createOrderFn             func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error)
	createItemFn              func(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error)
	getOrderForUpdateFn       func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	listItemsFn               func(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error)
	markReceivedFn            func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	cancelOrderFn             func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	countCompletedReturnsByFn func(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error)
}

func (m *mockPurchaseOrderStore) GetSettings(ctx context.Context) (database.Setting, error) {
	return m.getSettingsFn(ctx)
}
func (m *mockPurchaseOrderStore) CountPurchaseOrdersInRange(ctx context.Context, arg database.CountPurchaseOrdersInRangeParams) (int64, error) {
	return m.countOrdersFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) GetVendor(ctx context.Context, id uuid.UUID) (database.Vendor, error) {
	return m.getVendorFn(ctx, id)
}
func (m *mockPurchaseOrderStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockPurchaseOrderStore) GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductForUpdateFn(ctx, id)
}
func (m *mockPurchaseOrderStore) AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
	return m.adjustStockFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) UpdateProductCostPrice(ctx context.Context, arg database.UpdateProductCostPriceParams) (uuid.UUID, error) {
	return m.updateCostPriceFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	return m.createMovementFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) CreatePurchaseOrder(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) CreatePurchaseOrderItem(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error) {
	return m.createItemFn(ctx, arg)
}
func (m *mockPurchaseOrderStore) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockPurchaseOrderStore) ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
	return m.listItemsFn(ctx, orderID)
}
func (m *mockPurchaseOrderStore) MarkPurchaseOrderReceived(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return m.markReceivedFn(ctx, id)
}
func (m *mockPurchaseOrderStore) CancelPurchaseOrder(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	return m.cancelOrderFn(ctx, id)
}
func (m *mockPurchaseOrderStore) CountCompletedReturnsByOrder(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error) {
	return m.countCompletedReturnsByFn(ctx, arg)
}

func defaultPurchaseStore(vendorID, productID uuid.UUID) *mockPurchaseOrderStore {
	return &mockPurchaseOrderStore{
		getSettingsFn: func(ctx context.Context) (database.Setting, error) {
			return testSettings(), nil
		},
		countOrdersFn: func(ctx context.Context, arg database.CountPurchaseOrdersInRangeParams) (int64, error) {
			return 4, nil
		},
		getVendorFn: func(ctx context.Context, id uuid.UUID) (database.Vendor, error) {
			if id == vendorID {
				return database.Vendor{ID: vendorID, Name: "Acme Supplies"}, nil
			}
			return database.Vendor{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			return database.Product{
				ID:            productID,
				Sku:           "WIDGET-1",
				CostPrice:     makeNumeric("10.00"),
				SellingPrice:  makeNumeric("25.00"),
				StockQuantity: 5,
			}, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreatePurchaseOrderParams) (database.PurchaseOrder, error) {
			return database.PurchaseOrder{
				ID:          uuid.New(),
				OrderNumber: arg.OrderNumber,
				VendorID:    arg.VendorID,
				Subtotal:    arg.Subtotal,
				TaxAmount:   arg.TaxAmount,
				TotalAmount: arg.TotalAmount,
				Status:      enum.PurchaseOrderStatusOrdered,
			}, nil
		},
		createItemFn: func(ctx context.Context, arg database.CreatePurchaseOrderItemParams) (database.PurchaseOrderItem, error) {
			return database.PurchaseOrderItem{
				ID:        uuid.New(),
				OrderID:   arg.OrderID,
				ProductID: arg.ProductID,
				Quantity:  arg.Quantity,
				UnitCost:  arg.UnitCost,
				Subtotal:  arg.Subtotal,
			}, nil
		},
	}
}

func newPurchaseService(store *mockPurchaseOrderStore) *PurchaseOrderService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	return NewPurchaseOrderService(pool, func(db database.DBTX) PurchaseOrderStore { return store })
}

func TestCreatePurchase_Basic(t *testing.T) {
	vendorID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(vendorID, productID)

	adjustCalled := false
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjustCalled = true
		return database.Product{}, nil
	}

	svc := newPurchaseService(store)
	result, err := svc.CreateOrder(context.Background(), CreatePurchaseRequest{
		CreatedBy: uuid.New(),
		VendorID:  vendorID.String(),
		Items: []CreatePurchaseItemRequest{
			{ProductID: productID.String(), Quantity: 10},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	// 10 x 10.00 cost = 100.00. Purchases carry no tax.
	if !numericEquals(result.Order.Subtotal, "100.00") {
		t.Errorf("subtotal: got %v, want 100.00", numericToDecimal(result.Order.Subtotal))
	}
	if !numericEquals(result.Order.TaxAmount, "0.00") {
		t.Errorf("tax: got %v, want 0.00", numericToDecimal(result.Order.TaxAmount))
	}
	if !numericEquals(result.Order.TotalAmount, "100.00") {
		t.Errorf("total: got %v, want 100.00", numericToDecimal(result.Order.TotalAmount))
	}

	// Sequence continues from the 4 orders already placed today.
	wantNumber := fmt.Sprintf("PO%s005", time.Now().Format("20060102"))
	if result.Order.OrderNumber != wantNumber {
		t.Errorf("order number: got %q, want %q", result.Order.OrderNumber, wantNumber)
	}

	// Stock moves on receive, not on create.
	if adjustCalled {
		t.Error("stock was adjusted during create")
	}
}

func TestCreatePurchase_VendorNotFound(t *testing.T) {
	store := defaultPurchaseStore(uuid.New(), uuid.New())
	svc := newPurchaseService(store)

	_, err := svc.CreateOrder(context.Background(), CreatePurchaseRequest{
		CreatedBy: uuid.New(),
		VendorID:  uuid.New().String(),
		Items:     []CreatePurchaseItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
	})
	if err != ErrVendorNotFound {
		t.Errorf("got %v, want ErrVendorNotFound", err)
	}
}

func TestCreatePurchase_UnitCostOverride(t *testing.T) {
	vendorID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(vendorID, productID)
	svc := newPurchaseService(store)

	result, err := svc.CreateOrder(context.Background(), CreatePurchaseRequest{
		CreatedBy: uuid.New(),
		VendorID:  vendorID.String(),
		Items: []CreatePurchaseItemRequest{
			{ProductID: productID.String(), Quantity: 2, UnitCost: "8.50"},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if !numericEquals(result.Order.TotalAmount, "17.00") {
		t.Errorf("total: got %v, want 17.00", numericToDecimal(result.Order.TotalAmount))
	}
}

func TestCreatePurchase_InvalidExpectedDate(t *testing.T) {
	vendorID := uuid.New()
	productID := uuid.New()
	svc := newPurchaseService(defaultPurchaseStore(vendorID, productID))

	_, err := svc.CreateOrder(context.Background(), CreatePurchaseRequest{
		CreatedBy:    uuid.New(),
		VendorID:     vendorID.String(),
		ExpectedDate: "next tuesday",
		Items:        []CreatePurchaseItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidExpectedDate) {
		t.Errorf("got %v, want ErrInvalidExpectedDate", err)
	}
}

func TestReceivePurchase_AdjustsStockAndCost(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(uuid.New(), productID)

	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusOrdered}, nil
	}
	store.listItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10, UnitCost: makeNumeric("9.00")},
		}, nil
	}
	store.getProductForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{ID: productID, StockQuantity: 5}, nil
	}
	store.markReceivedFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusReceived}, nil
	}

	var adjusted []database.AdjustProductStockParams
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjusted = append(adjusted, arg)
		return database.Product{ID: arg.ID}, nil
	}
	var costUpdates []database.UpdateProductCostPriceParams
	store.updateCostPriceFn = func(ctx context.Context, arg database.UpdateProductCostPriceParams) (uuid.UUID, error) {
		costUpdates = append(costUpdates, arg)
		return arg.ID, nil
	}
	var movements []database.CreateStockMovementParams
	store.createMovementFn = func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
		movements = append(movements, arg)
		return database.StockMovement{ID: uuid.New()}, nil
	}

	svc := newPurchaseService(store)
	received, err := svc.ReceiveOrder(context.Background(), orderID, uuid.New())
	if err != nil {
		t.Fatalf("receive order: %v", err)
	}
	if received.Status != enum.PurchaseOrderStatusReceived {
		t.Errorf("status: got %q, want RECEIVED", received.Status)
	}
	if len(adjusted) != 1 || adjusted[0].QuantityChange != 10 {
		t.Errorf("expected stock adjustment of +10, got %+v", adjusted)
	}
	if len(costUpdates) != 1 || !numericEquals(costUpdates[0].CostPrice, "9.00") {
		t.Errorf("expected cost price update to 9.00, got %+v", costUpdates)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementPurchase {
		t.Errorf("expected PURCHASE movement, got %+v", movements)
	}
	if ref := movements[0].ReferenceID; !ref.Valid || ref.Bytes != orderID {
		t.Errorf("movement reference: got %+v, want order id", ref)
	}
}

func TestReceivePurchase_NotOrdered(t *testing.T) {
	store := defaultPurchaseStore(uuid.New(), uuid.New())
	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusReceived}, nil
	}

	svc := newPurchaseService(store)
	_, err := svc.ReceiveOrder(context.Background(), uuid.New(), uuid.New())
	if err != ErrNotOrdered {
		t.Errorf("got %v, want ErrNotOrdered", err)
	}
}

func TestCancelPurchase_OrderedSkipsStock(t *testing.T) {
	store := defaultPurchaseStore(uuid.New(), uuid.New())
	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusOrdered}, nil
	}
	store.countCompletedReturnsByFn = func(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error) {
		return 0, nil
	}
	store.cancelOrderFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusCancelled}, nil
	}
	adjustCalled := false
	store.adjustStockFn = func(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error) {
		adjustCalled = true
		return database.Product{}, nil
	}

	svc := newPurchaseService(store)
	cancelled, err := svc.CancelOrder(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != enum.PurchaseOrderStatusCancelled {
		t.Errorf("status: got %q, want CANCELLED", cancelled.Status)
	}
	if adjustCalled {
		t.Error("stock was adjusted when cancelling an ORDERED order")
	}
}

func TestCancelPurchase_ReceivedReversesStock(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(uuid.New(), productID)

	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusReceived}, nil
	}
	store.countCompletedReturnsByFn = func(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error) {
		return 0, nil
	}
	store.listItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10},
		}, nil
	}
	store.getProductForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{ID: productID, Sku: "WIDGET-1", StockQuantity: 15}, nil
	}
	store.cancelOrderFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusCancelled}, nil
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

	svc := newPurchaseService(store)
	if _, err := svc.CancelOrder(context.Background(), orderID, uuid.New()); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if len(adjusted) != 1 || adjusted[0].QuantityChange != -10 {
		t.Errorf("expected stock reversal of -10, got %+v", adjusted)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementPurchaseCancel {
		t.Errorf("expected PURCHASE_CANCEL movement, got %+v", movements)
	}
}

func TestCancelPurchase_ReceivedSoftDeletedProductStillReversed(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(uuid.New(), productID)

	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusReceived}, nil
	}
	store.countCompletedReturnsByFn = func(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error) {
		return 0, nil
	}
	store.listItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10},
		}, nil
	}
	// The active-only lookup misses soft-deleted rows; the reversal must
	// still hit the underlying product.
	store.getProductForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{}, pgx.ErrNoRows
	}
	store.cancelOrderFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: id, Status: enum.PurchaseOrderStatusCancelled}, nil
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

	svc := newPurchaseService(store)
	if _, err := svc.CancelOrder(context.Background(), orderID, uuid.New()); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if len(adjusted) != 1 || adjusted[0].QuantityChange != -10 || adjusted[0].ID != productID {
		t.Errorf("expected stock reversal of -10 on %s, got %+v", productID, adjusted)
	}
	if len(movements) != 1 || movements[0].MovementType != enum.MovementPurchaseCancel {
		t.Errorf("expected PURCHASE_CANCEL movement, got %+v", movements)
	}
}

func TestCancelPurchase_StockBelowReceived(t *testing.T) {
	orderID := uuid.New()
	productID := uuid.New()
	store := defaultPurchaseStore(uuid.New(), productID)

	store.getOrderForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
		return database.PurchaseOrder{ID: orderID, Status: enum.PurchaseOrderStatusReceived}, nil
	}
	store.countCompletedReturnsByFn = func(ctx context.Context, arg database.CountCompletedReturnsByOrderParams) (int64, error) {
		return 0, nil
	}
	store.listItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error) {
		return []database.ListPurchaseOrderItemsRow{
			{ProductID: productID, Quantity: 10},
		}, nil
	}
	// 6 of the 10 received units were already sold.
	store.getProductForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Product, error) {
		return database.Product{ID: productID, Sku: "WIDGET-1", StockQuantity: 4}, nil
	}

	svc := newPurchaseService(store)
	_, err := svc.CancelOrder(context.Background(), orderID, uuid.New())
	if !errors.Is(err, ErrStockBelowReceived) {
		t.Errorf("got %v, want ErrStockBelowReceived", err)
	}
}
