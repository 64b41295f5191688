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

// PurchaseOrderStore defines the read-side database methods needed by
// purchase order handlers.
type PurchaseOrderStore interface {
	ListPurchaseOrders(ctx context.Context, arg database.ListPurchaseOrdersParams) ([]database.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	ListPurchaseOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.ListPurchaseOrderItemsRow, error)
	GetVendor(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	GetSettings(ctx context.Context) (database.Setting, error)
}

type PurchaseOrderHandler struct {
	store   PurchaseOrderStore
	service *service.PurchaseOrderService
	hub     *ws.Hub
}

func NewPurchaseOrderHandler(store PurchaseOrderStore, svc *service.PurchaseOrderService, hub *ws.Hub) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{store: store, service: svc, hub: hub}
}

func (h *PurchaseOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/purchase-orders", h.List)
	r.Post("/purchase-orders", h.Create)
	r.Get("/purchase-orders/{id}", h.Get)
	r.Post("/purchase-orders/{id}/receive", h.Receive)
	r.Get("/purchase-orders/{id}/pdf", h.PDF)
}

// RegisterAdminRoutes registers the cancel endpoint. Cancellation can
// reverse received stock, so staff accounts may not call it.
func (h *PurchaseOrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/purchase-orders/{id}", h.Cancel)
}

type createPurchaseOrderRequest struct {
	VendorID     string                     `json:"vendor_id"`
	ExpectedDate string                     `json:"expected_date"`
	Notes        string                     `json:"notes"`
	Items        []purchaseOrderItemRequest `json:"items"`
}

type purchaseOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitCost  string `json:"unit_cost"`
}

type purchaseOrderResponse struct {
	ID            uuid.UUID                   `json:"id"`
	OrderNumber   string                      `json:"order_number"`
	VendorID      uuid.UUID                   `json:"vendor_id"`
	Status        string                      `json:"status"`
	PaymentStatus string                      `json:"payment_status"`
	Subtotal      string                      `json:"subtotal"`
	TaxAmount     string                      `json:"tax_amount"`
	TotalAmount   string                      `json:"total_amount"`
	AmountPaid    string                      `json:"amount_paid"`
	ExpectedDate  *time.Time                  `json:"expected_date"`
	ReceivedAt    *time.Time                  `json:"received_at"`
	Notes         *string                     `json:"notes"`
	CreatedBy     uuid.UUID                   `json:"created_by"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	Items         []purchaseOrderItemResponse `json:"items,omitempty"`
}

type purchaseOrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ProductSku  string    `json:"product_sku,omitempty"`
	Quantity    int32     `json:"quantity"`
	UnitCost    string    `json:"unit_cost"`
	Subtotal    string    `json:"subtotal"`
}

func toPurchaseOrderResponse(o database.PurchaseOrder) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		VendorID:      o.VendorID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Subtotal:      numericToString(o.Subtotal),
		TaxAmount:     numericToString(o.TaxAmount),
		TotalAmount:   numericToString(o.TotalAmount),
		AmountPaid:    numericToString(o.AmountPaid),
		Notes:         textPtr(o.Notes),
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ExpectedDate.Valid {
		t := o.ExpectedDate.Time
		resp.ExpectedDate = &t
	}
	if o.ReceivedAt.Valid {
		t := o.ReceivedAt.Time
		resp.ReceivedAt = &t
	}
	return resp
}

func (h *PurchaseOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params := database.ListPurchaseOrdersParams{
		Status:        optText(r.URL.Query().Get("status")),
		PaymentStatus: optText(r.URL.Query().Get("payment_status")),
		Start:         start,
		End:           end,
		Limit:         limit,
		Offset:        offset,
	}
	if s := r.URL.Query().Get("vendor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vendor_id"})
			return
		}
		params.VendorID = pgtype.UUID{Bytes: id, Valid: true}
	}

	orders, err := h.store.ListPurchaseOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list purchase orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]purchaseOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toPurchaseOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PurchaseOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.store.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get purchase order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListPurchaseOrderItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list purchase order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toPurchaseOrderResponse(order)
	for _, item := range items {
		resp.Items = append(resp.Items, purchaseOrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSku:  item.ProductSku,
			Quantity:    item.Quantity,
			UnitCost:    numericToString(item.UnitCost),
			Subtotal:    numericToString(item.Subtotal),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PurchaseOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req createPurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreatePurchaseRequest{
		CreatedBy:    claims.UserID,
		VendorID:     req.VendorID,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreatePurchaseItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		})
	}

	result, err := h.service.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writePurchaseOrderError(w, err)
		return
	}

	resp := toPurchaseOrderResponse(result.Order)
	for _, item := range result.Items {
		resp.Items = append(resp.Items, purchaseOrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  numericToString(item.UnitCost),
			Subtotal:  numericToString(item.Subtotal),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Receive marks an ORDERED purchase order RECEIVED, adds the items to stock
// and updates each product's cost price to the received unit cost.
func (h *PurchaseOrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.service.ReceiveOrder(r.Context(), id, claims.UserID)
	if err != nil {
		writePurchaseOrderError(w, err)
		return
	}

	resp := toPurchaseOrderResponse(*order)
	h.hub.Broadcast("purchase_order.received", resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *PurchaseOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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
		writePurchaseOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPurchaseOrderResponse(*order))
}

// PDF renders the purchase order for sending to the vendor.
func (h *PurchaseOrderHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx := r.Context()
	order, err := h.store.GetPurchaseOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get purchase order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListPurchaseOrderItems(ctx, id)
	if err != nil {
		log.Printf("ERROR: list purchase order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	vendor, err := h.store.GetVendor(ctx, order.VendorID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get vendor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	doc := pdf.Document{
		Store:        storeInfoFromSettings(settings),
		Title:        "PURCHASE ORDER",
		Number:       order.OrderNumber,
		Date:         order.CreatedAt,
		Counterparty: vendorDisplayBlock(vendor),
		Subtotal:     numericToString(order.Subtotal),
		Tax:          numericToString(order.TaxAmount),
		Total:        numericToString(order.TotalAmount),
		AmountPaid:   numericToString(order.AmountPaid),
		Notes:        order.Notes.String,
	}
	if order.PaymentStatus != enum.PaymentStatusPaid {
		doc.BalanceDue = balanceDue(order.TotalAmount, order.AmountPaid)
	}
	for _, item := range items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Sku:       item.ProductSku,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: numericToString(item.UnitCost),
			Subtotal:  numericToString(item.Subtotal),
		})
	}

	out, err := pdf.Render(doc)
	if err != nil {
		log.Printf("ERROR: render purchase order pdf: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", order.OrderNumber+".pdf"))
	w.Write(out) //nolint:errcheck
}

func writePurchaseOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidVendorID),
		errors.Is(err, service.ErrInvalidUnitCost),
		errors.Is(err, service.ErrInvalidExpectedDate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrVendorNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotOrdered),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrOrderHasReturns),
		errors.Is(err, service.ErrStockBelowReceived):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: purchase order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func vendorDisplayBlock(v database.Vendor) string {
	block := v.Name
	if v.ContactPerson.Valid {
		block += "\nAttn: " + v.ContactPerson.String
	}
	if v.Phone.Valid {
		block += "\n" + v.Phone.String
	}
	if v.Address.Valid {
		block += "\n" + v.Address.String
	}
	return block
}
