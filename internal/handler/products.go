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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/enum"
	"github.com/simplestore/api/internal/middleware"
	"github.com/simplestore/api/internal/service"
)

// ProductStore defines the database methods needed by product handlers.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListLowStockProducts(ctx context.Context) ([]database.Product, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	ListStockMovementsByProduct(ctx context.Context, arg database.ListStockMovementsByProductParams) ([]database.StockMovement, error)
}

// ProductHandler handles product and stock endpoints. Stock adjustments run
// in a transaction so the product update and the movement row commit
// together, hence the pool + store factory.
type ProductHandler struct {
	store    ProductStore
	pool     service.TxBeginner
	newStore func(db database.DBTX) ProductStore
}

func NewProductHandler(store ProductStore, pool service.TxBeginner, newStore func(db database.DBTX) ProductStore) *ProductHandler {
	return &ProductHandler{store: store, pool: pool, newStore: newStore}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/low-stock", h.LowStock)
	r.Get("/products/{id}", h.Get)
	r.Put("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
	r.Post("/products/{id}/adjust-stock", h.AdjustStock)
	r.Get("/products/{id}/movements", h.Movements)
}

type productRequest struct {
	CategoryID        string `json:"category_id"`
	Sku               string `json:"sku"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	CostPrice         string `json:"cost_price"`
	SellingPrice      string `json:"selling_price"`
	StockQuantity     int32  `json:"stock_quantity"`
	LowStockThreshold *int32 `json:"low_stock_threshold"`
	Unit              string `json:"unit"`
}

// defaultLowStockThreshold applies when a product request omits the field.
const defaultLowStockThreshold int32 = 5

func lowStockThresholdOrDefault(v *int32) int32 {
	if v == nil {
		return defaultLowStockThreshold
	}
	return *v
}

type adjustStockRequest struct {
	QuantityChange int32  `json:"quantity_change"`
	Notes          string `json:"notes"`
}

type productResponse struct {
	ID                uuid.UUID `json:"id"`
	CategoryID        uuid.UUID `json:"category_id"`
	Sku               string    `json:"sku"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	CostPrice         string    `json:"cost_price"`
	SellingPrice      string    `json:"selling_price"`
	StockQuantity     int32     `json:"stock_quantity"`
	LowStockThreshold int32     `json:"low_stock_threshold"`
	Unit              *string   `json:"unit"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type stockMovementResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	QuantityChange int32      `json:"quantity_change"`
	MovementType   string     `json:"movement_type"`
	ReferenceID    *uuid.UUID `json:"reference_id"`
	Notes          *string    `json:"notes"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		CategoryID:        p.CategoryID,
		Sku:               p.Sku,
		Name:              p.Name,
		Description:       textPtr(p.Description),
		CostPrice:         numericToString(p.CostPrice),
		SellingPrice:      numericToString(p.SellingPrice),
		StockQuantity:     p.StockQuantity,
		LowStockThreshold: p.LowStockThreshold,
		Unit:              textPtr(p.Unit),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toStockMovementResponse(m database.StockMovement) stockMovementResponse {
	resp := stockMovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		QuantityChange: m.QuantityChange,
		MovementType:   m.MovementType,
		Notes:          textPtr(m.Notes),
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
	if m.ReferenceID.Valid {
		ref := uuid.UUID(m.ReferenceID.Bytes)
		resp.ReferenceID = &ref
	}
	return resp
}

// parseMoney parses a non-negative money amount from its string form.
func parseMoney(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errors.New("amount must not be negative")
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	params := database.ListProductsParams{
		Search: optText(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	}
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	products, err := h.store.ListProducts(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListLowStockProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list low stock products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Sku == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sku and name are required"})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}
	costPrice, err := parseMoney(req.CostPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
		return
	}
	sellingPrice, err := parseMoney(req.SellingPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid selling_price"})
		return
	}
	lowStock := lowStockThresholdOrDefault(req.LowStockThreshold)
	if req.StockQuantity < 0 || lowStock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock_quantity and low_stock_threshold must not be negative"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		CategoryID:        categoryID,
		Sku:               req.Sku,
		Name:              req.Name,
		Description:       optText(req.Description),
		CostPrice:         costPrice,
		SellingPrice:      sellingPrice,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: lowStock,
		Unit:              optText(req.Unit),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sku already in use"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Sku == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sku and name are required"})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}
	costPrice, err := parseMoney(req.CostPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
		return
	}
	sellingPrice, err := parseMoney(req.SellingPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid selling_price"})
		return
	}
	lowStock := lowStockThresholdOrDefault(req.LowStockThreshold)
	if lowStock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "low_stock_threshold must not be negative"})
		return
	}

	// stock_quantity is deliberately not updatable here. Stock changes go
	// through adjust-stock or order flows so every change leaves a movement.
	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		CategoryID:        categoryID,
		Sku:               req.Sku,
		Name:              req.Name,
		Description:       optText(req.Description),
		CostPrice:         costPrice,
		SellingPrice:      sellingPrice,
		LowStockThreshold: lowStock,
		Unit:              optText(req.Unit),
		ID:                id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sku already in use"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// AdjustStock applies a manual stock correction and records the movement in
// a single transaction.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.QuantityChange == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity_change must not be zero"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		log.Printf("ERROR: begin adjust stock tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(ctx)

	store := h.newStore(tx)

	product, err := store.GetProductForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: lock product for adjust: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if product.StockQuantity+req.QuantityChange < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "adjustment would make stock negative"})
		return
	}

	product, err = store.AdjustProductStock(ctx, database.AdjustProductStockParams{
		QuantityChange: req.QuantityChange,
		ID:             id,
	})
	if err != nil {
		log.Printf("ERROR: adjust product stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		ProductID:      id,
		QuantityChange: req.QuantityChange,
		MovementType:   enum.MovementAdjustment,
		Notes:          optText(req.Notes),
		CreatedBy:      claims.UserID,
	}); err != nil {
		log.Printf("ERROR: create stock movement: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("ERROR: commit adjust stock tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	limit, offset := parsePagination(r)

	movements, err := h.store.ListStockMovementsByProduct(r.Context(), database.ListStockMovementsByProductParams{
		ProductID: id,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list stock movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stockMovementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, toStockMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
