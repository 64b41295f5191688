package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/service"
	"github.com/simplestore/api/internal/ws"
)

// PaymentStore defines the database methods needed to record payments
// against sales and purchase orders.
type PaymentStore interface {
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, arg database.ListPaymentsByOrderParams) ([]database.Payment, error)
	GetSalesOrderForUpdate(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	UpdateSalesOrderPayment(ctx context.Context, arg database.UpdateSalesOrderPaymentParams) (database.SalesOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	UpdatePurchaseOrderPayment(ctx context.Context, arg database.UpdatePurchaseOrderPaymentParams) (database.PurchaseOrder, error)
}

// PaymentHandler records payments. The payment insert and the running
// amount_paid update on the order commit in one transaction.
type PaymentHandler struct {
	store    PaymentStore
	pool     service.TxBeginner
	newStore func(db database.DBTX) PaymentStore
	hub      *ws.Hub
}

func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore func(db database.DBTX) PaymentStore, hub *ws.Hub) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore, hub: hub}
}

func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales-orders/{id}/payments", h.ListSales)
	r.Post("/sales-orders/{id}/payments", h.CreateSales)
	r.Get("/purchase-orders/{id}/payments", h.ListPurchase)
	r.Post("/purchase-orders/{id}/payments", h.CreatePurchase)
}

type createPaymentRequest struct {
	Method          string `json:"method"`
	Amount          string `json:"amount"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderKind       string    `json:"order_kind"`
	OrderID         uuid.UUID `json:"order_id"`
	Method          string    `json:"method"`
	Amount          string    `json:"amount"`
	ReferenceNumber *string   `json:"reference_number"`
	Notes           *string   `json:"notes"`
	ReceivedBy      uuid.UUID `json:"received_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type createPaymentResponse struct {
	Payment       paymentResponse `json:"payment"`
	AmountPaid    string          `json:"amount_paid"`
	PaymentStatus string          `json:"payment_status"`
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		OrderKind:       p.OrderKind,
		OrderID:         p.OrderID,
		Method:          p.Method,
		Amount:          numericToString(p.Amount),
		ReferenceNumber: textPtr(p.ReferenceNumber),
		Notes:           textPtr(p.Notes),
		ReceivedBy:      p.ReceivedBy,
		CreatedAt:       p.CreatedAt,
	}
}

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

// derivePaymentStatus maps the running paid amount to UNPAID/PARTIAL/PAID.
func derivePaymentStatus(paid, total decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total) && total.IsPositive():
		return enum.PaymentStatusPaid
	case paid.IsPositive():
		return enum.PaymentStatusPartial
	default:
		return enum.PaymentStatusUnpaid
	}
}

func (h *PaymentHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, enum.OrderKindSale)
}

func (h *PaymentHandler) ListPurchase(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, enum.OrderKindPurchase)
}

func (h *PaymentHandler) list(w http.ResponseWriter, r *http.Request, kind string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), database.ListPaymentsByOrderParams{
		OrderKind: kind,
		OrderID:   id,
	})
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSales records a customer payment against a sales order.
func (h *PaymentHandler) CreateSales(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, enum.OrderKindSale)
}

// CreatePurchase records a payment made to a vendor against a purchase order.
func (h *PaymentHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, enum.OrderKindPurchase)
}

func (h *PaymentHandler) create(w http.ResponseWriter, r *http.Request, kind string) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isValidPaymentMethod(req.Method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method must be CASH, CARD or TRANSFER"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a positive number"})
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		log.Printf("ERROR: begin payment tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	// Lock the order, validate state, and compute the new running totals.
	var total, paid decimal.Decimal
	switch kind {
	case enum.OrderKindSale:
		order, err := store.GetSalesOrderForUpdate(ctx, id)
		if err != nil {
			writePaymentLookupError(w, err, "lock sales order")
			return
		}
		if order.Status == enum.SalesOrderStatusCancelled {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is cancelled"})
			return
		}
		total, _ = decimal.NewFromString(numericToString(order.TotalAmount))
		paid, _ = decimal.NewFromString(numericToString(order.AmountPaid))
	case enum.OrderKindPurchase:
		order, err := store.GetPurchaseOrderForUpdate(ctx, id)
		if err != nil {
			writePaymentLookupError(w, err, "lock purchase order")
			return
		}
		if order.Status == enum.PurchaseOrderStatusCancelled {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is cancelled"})
			return
		}
		total, _ = decimal.NewFromString(numericToString(order.TotalAmount))
		paid, _ = decimal.NewFromString(numericToString(order.AmountPaid))
	}

	newPaid := paid.Add(amount)
	if newPaid.GreaterThan(total) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "payment exceeds balance due"})
		return
	}

	newPaidNumeric := numericFromDecimal(newPaid)
	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderKind:       kind,
		OrderID:         id,
		Method:          req.Method,
		Amount:          numericFromDecimal(amount),
		ReferenceNumber: optText(req.ReferenceNumber),
		Notes:           optText(req.Notes),
		ReceivedBy:      claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	newStatus := derivePaymentStatus(newPaid, total)
	switch kind {
	case enum.OrderKindSale:
		if _, err := store.UpdateSalesOrderPayment(ctx, database.UpdateSalesOrderPaymentParams{
			AmountPaid:    newPaidNumeric,
			PaymentStatus: newStatus,
			ID:            id,
		}); err != nil {
			log.Printf("ERROR: update sales order payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	case enum.OrderKindPurchase:
		if _, err := store.UpdatePurchaseOrderPayment(ctx, database.UpdatePurchaseOrderPaymentParams{
			AmountPaid:    newPaidNumeric,
			PaymentStatus: newStatus,
			ID:            id,
		}); err != nil {
			log.Printf("ERROR: update purchase order payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("ERROR: commit payment tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := createPaymentResponse{
		Payment:       toPaymentResponse(payment),
		AmountPaid:    newPaid.StringFixed(2),
		PaymentStatus: newStatus,
	}

	if kind == enum.OrderKindSale && newStatus == enum.PaymentStatusPaid {
		h.hub.Broadcast("sales_order.paid", map[string]interface{}{
			"order_id":    id,
			"amount_paid": resp.AmountPaid,
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

func writePaymentLookupError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
