package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/handler"
	"github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/ws"
)

type mockPaymentStore struct {
	salesOrders    map[uuid.UUID]database.SalesOrder
	purchaseOrders map[uuid.UUID]database.PurchaseOrder
	payments       []database.Payment
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{
		salesOrders:    make(map[uuid.UUID]database.SalesOrder),
		purchaseOrders: make(map[uuid.UUID]database.PurchaseOrder),
	}
}

func (m *mockPaymentStore) CreatePayment(_ context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	p := database.Payment{
		ID:              uuid.New(),
		OrderKind:       arg.OrderKind,
		OrderID:         arg.OrderID,
		Method:          arg.Method,
		Amount:          arg.Amount,
		ReferenceNumber: arg.ReferenceNumber,
		Notes:           arg.Notes,
		ReceivedBy:      arg.ReceivedBy,
		CreatedAt:       time.Now(),
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *mockPaymentStore) ListPaymentsByOrder(_ context.Context, arg database.ListPaymentsByOrderParams) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range m.payments {
		if p.OrderKind == arg.OrderKind && p.OrderID == arg.OrderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentStore) GetSalesOrderForUpdate(_ context.Context, id uuid.UUID) (database.SalesOrder, error) {
	o, ok := m.salesOrders[id]
	if !ok {
		return database.SalesOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockPaymentStore) UpdateSalesOrderPayment(_ context.Context, arg database.UpdateSalesOrderPaymentParams) (database.SalesOrder, error) {
	o, ok := m.salesOrders[arg.ID]
	if !ok {
		return database.SalesOrder{}, pgx.ErrNoRows
	}
	o.AmountPaid = arg.AmountPaid
	o.PaymentStatus = arg.PaymentStatus
	m.salesOrders[arg.ID] = o
	return o, nil
}

func (m *mockPaymentStore) GetPurchaseOrderForUpdate(_ context.Context, id uuid.UUID) (database.PurchaseOrder, error) {
	o, ok := m.purchaseOrders[id]
	if !ok {
		return database.PurchaseOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockPaymentStore) UpdatePurchaseOrderPayment(_ context.Context, arg database.UpdatePurchaseOrderPaymentParams) (database.PurchaseOrder, error) {
	o, ok := m.purchaseOrders[arg.ID]
	if !ok {
		return database.PurchaseOrder{}, pgx.ErrNoRows
	}
	o.AmountPaid = arg.AmountPaid
	o.PaymentStatus = arg.PaymentStatus
	m.purchaseOrders[arg.ID] = o
	return o, nil
}

func setupPaymentRouter(store *mockPaymentStore) http.Handler {
	h := handler.NewPaymentHandler(store, &mockPool{}, func(db database.DBTX) handler.PaymentStore {
		return store
	}, ws.NewHub())
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	h.RegisterRoutes(r)
	return r
}

func makeUnpaidSalesOrder(total string) database.SalesOrder {
	return database.SalesOrder{
		ID:            uuid.New(),
		OrderNumber:   "SO20260829001",
		Status:        enum.SalesOrderStatusCompleted,
		PaymentStatus: enum.PaymentStatusUnpaid,
		TotalAmount:   mustNumeric(total),
		AmountPaid:    mustNumeric("0.00"),
	}
}

func TestCreateSalesPayment_Partial(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	store.salesOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+order.ID.String()+"/payments", map[string]string{
		"method": "CASH",
		"amount": "40.00",
	}, staffClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["amount_paid"] != "40.00" {
		t.Errorf("amount_paid: got %v, want 40.00", resp["amount_paid"])
	}
	if resp["payment_status"] != "PARTIAL" {
		t.Errorf("payment_status: got %v, want PARTIAL", resp["payment_status"])
	}

	updated := store.salesOrders[order.ID]
	if updated.PaymentStatus != enum.PaymentStatusPartial {
		t.Errorf("order payment_status: got %q, want PARTIAL", updated.PaymentStatus)
	}
}

func TestCreateSalesPayment_SettlesInFull(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	order.AmountPaid = mustNumeric("60.00")
	order.PaymentStatus = enum.PaymentStatusPartial
	store.salesOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+order.ID.String()+"/payments", map[string]string{
		"method": "TRANSFER",
		"amount": "40.00",
	}, staffClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["payment_status"] != "PAID" {
		t.Errorf("payment_status: got %v, want PAID", resp["payment_status"])
	}
	if resp["amount_paid"] != "100.00" {
		t.Errorf("amount_paid: got %v, want 100.00", resp["amount_paid"])
	}
}

func TestCreateSalesPayment_Overpayment(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	store.salesOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+order.ID.String()+"/payments", map[string]string{
		"method": "CASH",
		"amount": "150.00",
	}, staffClaims())

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if len(store.payments) != 0 {
		t.Errorf("expected no payments, got %d", len(store.payments))
	}
}

func TestCreateSalesPayment_CancelledOrder(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	order.Status = enum.SalesOrderStatusCancelled
	store.salesOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+order.ID.String()+"/payments", map[string]string{
		"method": "CASH",
		"amount": "10.00",
	}, staffClaims())

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateSalesPayment_InvalidMethod(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	store.salesOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+order.ID.String()+"/payments", map[string]string{
		"method": "BARTER",
		"amount": "10.00",
	}, staffClaims())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateSalesPayment_OrderNotFound(t *testing.T) {
	r := setupPaymentRouter(newMockPaymentStore())

	rr := doAuthRequest(t, r, "POST", "/sales-orders/"+uuid.New().String()+"/payments", map[string]string{
		"method": "CASH",
		"amount": "10.00",
	}, staffClaims())

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCreatePurchasePayment(t *testing.T) {
	store := newMockPaymentStore()
	order := database.PurchaseOrder{
		ID:            uuid.New(),
		OrderNumber:   "PO20260829001",
		Status:        enum.PurchaseOrderStatusReceived,
		PaymentStatus: enum.PaymentStatusUnpaid,
		TotalAmount:   mustNumeric("250.00"),
		AmountPaid:    mustNumeric("0.00"),
	}
	store.purchaseOrders[order.ID] = order
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "POST", "/purchase-orders/"+order.ID.String()+"/payments", map[string]string{
		"method":           "TRANSFER",
		"amount":           "250.00",
		"reference_number": "TRX-991",
	}, staffClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["payment_status"] != "PAID" {
		t.Errorf("payment_status: got %v, want PAID", resp["payment_status"])
	}

	payment, ok := resp["payment"].(map[string]interface{})
	if !ok {
		t.Fatal("expected payment object in response")
	}
	if payment["reference_number"] != "TRX-991" {
		t.Errorf("reference_number: got %v, want TRX-991", payment["reference_number"])
	}
}

func TestListSalesPayments(t *testing.T) {
	store := newMockPaymentStore()
	order := makeUnpaidSalesOrder("100.00")
	store.salesOrders[order.ID] = order
	store.payments = append(store.payments, database.Payment{
		ID:        uuid.New(),
		OrderKind: enum.OrderKindSale,
		OrderID:   order.ID,
		Method:    enum.PaymentMethodCash,
		Amount:    mustNumeric("40.00"),
	})
	r := setupPaymentRouter(store)

	rr := doAuthRequest(t, r, "GET", "/sales-orders/"+order.ID.String()+"/payments", nil, staffClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}
