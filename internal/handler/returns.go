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
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/pdf"
	"github.com/simplestore/api/internal/service"
)

// ReturnReadStore defines the read-side database methods needed by return
// handlers.
type ReturnReadStore interface {
	ListReturns(ctx context.Context, arg database.ListReturnsParams) ([]database.Return, error)
	GetReturn(ctx context.Context, id uuid.UUID) (database.Return, error)
	ListReturnItems(ctx context.Context, returnID uuid.UUID) ([]database.ListReturnItemsRow, error)
	GetSalesOrder(ctx context.Context, id uuid.UUID) (database.SalesOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (database.PurchaseOrder, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetVendor(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	GetSettings(ctx context.Context) (database.Setting, error)
}

type ReturnHandler struct {
	store   ReturnReadStore
	service *service.ReturnService
}

func NewReturnHandler(store ReturnReadStore, svc *service.ReturnService) *ReturnHandler {
	return &ReturnHandler{store: store, service: svc}
}

func (h *ReturnHandler) RegisterRoutes(r chi.Router) {
	r.Get("/returns", h.List)
	r.Post("/returns", h.Create)
	r.Get("/returns/{id}", h.Get)
	r.Get("/returns/{id}/pdf", h.PDF)
}

// RegisterAdminRoutes registers the cancel endpoint, admin only.
func (h *ReturnHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/returns/{id}", h.Cancel)
}

type createReturnRequest struct {
	OrderKind string              `json:"order_kind"`
	OrderID   string              `json:"order_id"`
	Reason    string              `json:"reason"`
	Items     []returnItemRequest `json:"items"`
}

type returnItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type returnResponse struct {
	ID           uuid.UUID            `json:"id"`
	ReturnNumber string               `json:"return_number"`
	OrderKind    string               `json:"order_kind"`
	OrderID      uuid.UUID            `json:"order_id"`
	Status       string               `json:"status"`
	Reason       *string              `json:"reason"`
	RefundAmount string               `json:"refund_amount"`
	CreatedBy    uuid.UUID            `json:"created_by"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Items        []returnItemResponse `json:"items,omitempty"`
}

type returnItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ProductSku  string    `json:"product_sku,omitempty"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
}

func toReturnResponse(ret database.Return) returnResponse {
	return returnResponse{
		ID:           ret.ID,
		ReturnNumber: ret.ReturnNumber,
		OrderKind:    ret.OrderKind,
		OrderID:      ret.OrderID,
		Status:       ret.Status,
		Reason:       textPtr(ret.Reason),
		RefundAmount: numericToString(ret.RefundAmount),
		CreatedBy:    ret.CreatedBy,
		CreatedAt:    ret.CreatedAt,
		UpdatedAt:    ret.UpdatedAt,
	}
}

func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	kind := r.URL.Query().Get("order_kind")
	if kind != "" && kind != enum.OrderKindSale && kind != enum.OrderKindPurchase {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_kind must be SALE or PURCHASE"})
		return
	}

	returns, err := h.store.ListReturns(r.Context(), database.ListReturnsParams{
		OrderKind: optText(kind),
		Start:     start,
		End:       end,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list returns: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]returnResponse, 0, len(returns))
	for _, ret := range returns {
		resp = append(resp, toReturnResponse(ret))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReturnHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return id"})
		return
	}

	ret, err := h.store.GetReturn(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "return not found"})
			return
		}
		log.Printf("ERROR: get return: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListReturnItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list return items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toReturnResponse(ret)
	for _, item := range items {
		resp.Items = append(resp.Items, returnItemResponse{
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

func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateReturnRequest{
		CreatedBy: claims.UserID,
		OrderKind: req.OrderKind,
		OrderID:   req.OrderID,
		Reason:    req.Reason,
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateReturnItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.service.CreateReturn(r.Context(), svcReq)
	if err != nil {
		writeReturnError(w, err)
		return
	}

	resp := toReturnResponse(result.Return)
	for _, item := range result.Items {
		resp.Items = append(resp.Items, returnItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: numericToString(item.UnitPrice),
			Subtotal:  numericToString(item.Subtotal),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ReturnHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return id"})
		return
	}

	ret, err := h.service.CancelReturn(r.Context(), id, claims.UserID)
	if err != nil {
		writeReturnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReturnResponse(*ret))
}

// PDF renders the return as a credit note.
func (h *ReturnHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return id"})
		return
	}

	ctx := r.Context()
	ret, err := h.store.GetReturn(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "return not found"})
			return
		}
		log.Printf("ERROR: get return: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListReturnItems(ctx, id)
	if err != nil {
		log.Printf("ERROR: list return items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	counterparty, err := h.returnCounterparty(ctx, ret)
	if err != nil {
		log.Printf("ERROR: resolve return counterparty: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	doc := pdf.Document{
		Store:        storeInfoFromSettings(settings),
		Title:        "CREDIT NOTE",
		Number:       ret.ReturnNumber,
		Date:         ret.CreatedAt,
		Counterparty: counterparty,
		Subtotal:     numericToString(ret.RefundAmount),
		Total:        numericToString(ret.RefundAmount),
		Notes:        ret.Reason.String,
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
		log.Printf("ERROR: render credit note pdf: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ret.ReturnNumber+".pdf"))
	w.Write(out) //nolint:errcheck
}

// returnCounterparty resolves the customer or vendor block for the credit
// note from the originating order.
func (h *ReturnHandler) returnCounterparty(ctx context.Context, ret database.Return) (string, error) {
	switch ret.OrderKind {
	case enum.OrderKindSale:
		order, err := h.store.GetSalesOrder(ctx, ret.OrderID)
		if err != nil {
			return "", err
		}
		if !order.CustomerID.Valid {
			return "Walk-in customer", nil
		}
		customer, err := h.store.GetCustomer(ctx, uuid.UUID(order.CustomerID.Bytes))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "Walk-in customer", nil
			}
			return "", err
		}
		return customerDisplayBlock(customer), nil
	case enum.OrderKindPurchase:
		order, err := h.store.GetPurchaseOrder(ctx, ret.OrderID)
		if err != nil {
			return "", err
		}
		vendor, err := h.store.GetVendor(ctx, order.VendorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", nil
			}
			return "", err
		}
		return vendorDisplayBlock(vendor), nil
	}
	return "", nil
}

func writeReturnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidOrderKind),
		errors.Is(err, service.ErrInvalidOrderID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotOnOrder),
		errors.Is(err, service.ErrReturnExceedsOrder),
		errors.Is(err, service.ErrInsufficientStock):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrReturnNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrPurchaseNotReceived),
		errors.Is(err, service.ErrReturnCancelled):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: return: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
