package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/pdf"
	"github.com/simplestore/api/internal/service"
	"github.com/simplestore/api/internal/ws"
)

// SalesOrderStore defines the read-side database methods needed by sales
// order handlers. Writes go through the service so they run in transactions.
type SalesOrderStore interface {
	ListSalesOrders(ctx context.Context, arg database.ListSalesOrdersParams) ([]database.SalesOrder, error)
	GetSalesOrder(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	ListSalesOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListSalesOrderItemsRow, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetSettings(ctx context.Context) (database.Setting, error)
}

type SalesOrderHandler struct {
	store   SalesOrderStore
	service *service.SalesOrderService
	hub     *ws.Hub
}

func NewSalesOrderHandler(store SalesOrderStore, svc *service.SalesOrderService, hub *ws.Hub) *SalesOrderHandler {
	return &SalesOrderHandler{store: store, service: svc, hub: hub}
}

func (h *SalesOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales-orders", h.List)
	r.Post("/sales-orders", h.Create)
	r.Get("/sales-orders/{id}", h.Get)
	r.Get("/sales-orders/{id}/pdf", h.PDF)
}

// RegisterAdminRoutes registers the cancel endpoint. Cancellation reverses
// stock, so staff accounts may not call it.
func (h *SalesOrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/sales-orders/{id}", h.Cancel)
}

type createSalesOrderRequest struct {
	CustomerID    string                  `json:"customer_id"`
	Notes         string                  `json:"notes"`
	DiscountType  string                  `json:"discount_type"`
	DiscountValue string                  `json:"discount_value"`
	Items         []salesOrderItemRequest `json:"items"`
}

type salesOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type salesOrderResponse struct {
	ID             uuid.UUID                `json:"id"`
	OrderNumber    string                   `json:"order_number"`
	CustomerID     *uuid.UUID               `json:"customer_id"`
	Status         string                   `json:"status"`
	PaymentStatus  string                   `json:"payment_status"`
	Subtotal       string                   `json:"subtotal"`
	DiscountType   *string                  `json:"discount_type"`
	DiscountValue  string                   `json:"discount_value"`
	DiscountAmount string                   `json:"discount_amount"`
	TaxAmount      string                   `json:"tax_amount"`
	TotalAmount    string                   `json:"total_amount"`
	AmountPaid     string                   `json:"amount_paid"`
	Notes          *string                  `json:"notes"`
	CreatedBy      uuid.UUID                `json:"created_by"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Items          []salesOrderItemResponse `json:"items,omitempty"`
}

type salesOrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ProductSku  string    `json:"product_sku,omitempty"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
}

func toSalesOrderResponse(o database.SalesOrder) salesOrderResponse {
	resp := salesOrderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		Subtotal:       numericToString(o.Subtotal),
		DiscountType:   textPtr(o.DiscountType),
		DiscountValue:  numericToString(o.DiscountValue),
		DiscountAmount: numericToString(o.DiscountAmount),
		TaxAmount:      numericToString(o.TaxAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		AmountPaid:     numericToString(o.AmountPaid),
		Notes:          textPtr(o.Notes),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CustomerID.Valid {
		cid := uuid.UUID(o.CustomerID.Bytes)
		resp.CustomerID = &cid
	}
	return resp
}

func (h *SalesOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params := database.ListSalesOrdersParams{
		Status:        optText(r.URL.Query().Get("status")),
		PaymentStatus: optText(r.URL.Query().Get("payment_status")),
		Start:         start,
		End:           end,
		Limit:         limit,
		Offset:        offset,
	}
	if s := r.URL.Query().Get("customer_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
			return
		}
		params.CustomerID = pgtype.UUID{Bytes: id, Valid: true}
	}

	orders, err := h.store.ListSalesOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list sales orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]salesOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toSalesOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SalesOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.store.GetSalesOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get sales order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSalesOrderItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list sales order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toSalesOrderResponse(order)
	for _, item := range items {
		resp.Items = append(resp.Items, salesOrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSku:  item.ProductSku,
			Quantity:    item.Quantity,
			UnitPrice:   numericToString(item.UnitPrice),
			Subtotal:    numericToString(item.Subtotal),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SalesOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req createSalesOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateOrderRequest{
		CreatedBy:     claims.UserID,
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	result, err := h.service.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeSalesOrderError(w, err)
		return
	}

	resp := toSalesOrderResponse(result.Order)
	for _, item := range result.Items {
		resp.Items = append(resp.Items, salesOrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: numericToString(item.UnitPrice),
			Subtotal:  numericToString(item.Subtotal),
		})
	}

	h.hub.Broadcast("sales_order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *SalesOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.service.CancelOrder(r.Context(), id, claims.UserID)
	if err != nil {
		writeSalesOrderError(w, err)
		return
	}

	resp := toSalesOrderResponse(*order)
	h.hub.Broadcast("sales_order.cancelled", resp)
	writeJSON(w, http.StatusOK, resp)
}

// PDF renders the order as a printable invoice.
func (h *SalesOrderHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx := r.Context()
	order, err := h.store.GetSalesOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get sales order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSalesOrderItems(ctx, id)
	if err != nil {
		log.Printf("ERROR: list sales order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	counterparty := "Walk-in customer"
	if order.CustomerID.Valid {
		customer, err := h.store.GetCustomer(ctx, uuid.UUID(order.CustomerID.Bytes))
		if err == nil {
			counterparty = customerDisplayBlock(customer)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: get customer: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	doc := pdf.Document{
		Store:        storeInfoFromSettings(settings),
		Title:        "INVOICE",
		Number:       order.OrderNumber,
		Date:         order.CreatedAt,
		Counterparty: counterparty,
		Subtotal:     numericToString(order.Subtotal),
		Tax:          numericToString(order.TaxAmount),
		Total:        numericToString(order.TotalAmount),
		AmountPaid:   numericToString(order.AmountPaid),
		Notes:        order.Notes.String,
	}
	if order.DiscountAmount.Valid {
		if s := numericToString(order.DiscountAmount); s != "0.00" {
			doc.Discount = s
		}
	}
	if order.PaymentStatus != enum.PaymentStatusPaid {
		doc.BalanceDue = balanceDue(order.TotalAmount, order.AmountPaid)
	}
	for _, item := range items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Sku:       item.ProductSku,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: numericToString(item.UnitPrice),
			Subtotal:  numericToString(item.Subtotal),
		})
	}

	out, err := pdf.Render(doc)
	if err != nil {
		log.Printf("ERROR: render invoice pdf: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", order.OrderNumber+".pdf"))
	w.Write(out) //nolint:errcheck
}

// writeSalesOrderError maps service errors to HTTP status codes.
func writeSalesOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidUnitPrice),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrInvalidDiscountValue):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderCancelled), errors.Is(err, service.ErrOrderHasReturns):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: sales order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- PDF helpers shared with purchase orders and returns ---

func storeInfoFromSettings(s database.Setting) pdf.StoreInfo {
	return pdf.StoreInfo{
		Name:     s.StoreName,
		Address:  s.Address.String,
		Phone:    s.Phone.String,
		Email:    s.Email.String,
		Currency: s.CurrencyCode,
	}
}

func customerDisplayBlock(c database.Customer) string {
	block := c.Name
	if c.Phone.Valid {
		block += "\n" + c.Phone.String
	}
	if c.Address.Valid {
		block += "\n" + c.Address.String
	}
	return block
}
