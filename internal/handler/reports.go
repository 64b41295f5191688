package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/simplestore/api/internal/database"
)

// ReportStore defines the aggregate queries behind the reporting endpoints.
type ReportStore interface {
	GetSalesSummary(ctx context.Context, arg database.GetSalesSummaryParams) (database.GetSalesSummaryRow, error)
	CountLowStockProducts(ctx context.Context) (int64, error)
	CountActiveProducts(ctx context.Context) (int64, error)
	GetReceivableTotal(ctx context.Context) (pgtype.Numeric, error)
	GetPayableTotal(ctx context.Context) (pgtype.Numeric, error)
	GetAccountsReceivable(ctx context.Context) ([]database.GetAccountsReceivableRow, error)
	GetAccountsPayable(ctx context.Context) ([]database.GetAccountsPayableRow, error)
	GetProfitLoss(ctx context.Context, arg database.GetProfitLossParams) (database.GetProfitLossRow, error)
	GetSalesReturnsTotal(ctx context.Context, arg database.GetSalesReturnsTotalParams) (pgtype.Numeric, error)
	GetInventoryValuation(ctx context.Context) ([]database.GetInventoryValuationRow, error)
	GetMonthlySales(ctx context.Context, arg database.GetMonthlySalesParams) ([]database.GetMonthlySalesRow, error)
}

type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints. The dashboard is open to all
// authenticated users; the financial reports are mounted behind the admin
// role check in the router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/dashboard", h.Dashboard)
}

// RegisterFinancialRoutes registers the admin-only financial reports.
func (h *ReportHandler) RegisterFinancialRoutes(r chi.Router) {
	r.Get("/reports/accounts-receivable", h.AccountsReceivable)
	r.Get("/reports/accounts-payable", h.AccountsPayable)
	r.Get("/reports/profit-loss", h.ProfitLoss)
	r.Get("/reports/inventory-valuation", h.InventoryValuation)
	r.Get("/reports/monthly-sales", h.MonthlySales)
}

// Dashboard returns today's headline numbers plus the open AR/AP totals.
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	summary, err := h.store.GetSalesSummary(ctx, database.GetSalesSummaryParams{Start: dayStart, End: dayEnd})
	if err != nil {
		log.Printf("ERROR: dashboard sales summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	lowStock, err := h.store.CountLowStockProducts(ctx)
	if err != nil {
		log.Printf("ERROR: dashboard low stock count: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	activeProducts, err := h.store.CountActiveProducts(ctx)
	if err != nil {
		log.Printf("ERROR: dashboard product count: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	receivable, err := h.store.GetReceivableTotal(ctx)
	if err != nil {
		log.Printf("ERROR: dashboard receivable total: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payable, err := h.store.GetPayableTotal(ctx)
	if err != nil {
		log.Printf("ERROR: dashboard payable total: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":               dayStart.Format("2006-01-02"),
		"orders_today":       summary.OrderCount,
		"revenue_today":      numericToString(summary.TotalRevenue),
		"low_stock_products": lowStock,
		"active_products":    activeProducts,
		"receivable_total":   numericToString(receivable),
		"payable_total":      numericToString(payable),
	})
}

type accountsReceivableRow struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	OpenOrders   int64     `json:"open_orders"`
	TotalBilled  string    `json:"total_billed"`
	TotalPaid    string    `json:"total_paid"`
	Outstanding  string    `json:"outstanding"`
}

// AccountsReceivable lists unpaid and partly paid sales orders grouped by
// customer.
func (h *ReportHandler) AccountsReceivable(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.GetAccountsReceivable(r.Context())
	if err != nil {
		log.Printf("ERROR: accounts receivable: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries := make([]accountsReceivableRow, 0, len(rows))
	total := decimal.Zero
	for _, row := range rows {
		outstanding := numericToString(row.Outstanding)
		d, _ := decimal.NewFromString(outstanding)
		total = total.Add(d)
		entries = append(entries, accountsReceivableRow{
			CustomerID:   row.CustomerID,
			CustomerName: row.CustomerName,
			OpenOrders:   row.OpenOrders,
			TotalBilled:  numericToString(row.TotalBilled),
			TotalPaid:    numericToString(row.TotalPaid),
			Outstanding:  outstanding,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":           entries,
		"total_outstanding": total.StringFixed(2),
	})
}

type accountsPayableRow struct {
	VendorID    uuid.UUID `json:"vendor_id"`
	VendorName  string    `json:"vendor_name"`
	OpenOrders  int64     `json:"open_orders"`
	TotalBilled string    `json:"total_billed"`
	TotalPaid   string    `json:"total_paid"`
	Outstanding string    `json:"outstanding"`
}

// AccountsPayable lists unpaid and partly paid purchase orders grouped by
// vendor.
func (h *ReportHandler) AccountsPayable(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.GetAccountsPayable(r.Context())
	if err != nil {
		log.Printf("ERROR: accounts payable: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries := make([]accountsPayableRow, 0, len(rows))
	total := decimal.Zero
	for _, row := range rows {
		outstanding := numericToString(row.Outstanding)
		d, _ := decimal.NewFromString(outstanding)
		total = total.Add(d)
		entries = append(entries, accountsPayableRow{
			VendorID:    row.VendorID,
			VendorName:  row.VendorName,
			OpenOrders:  row.OpenOrders,
			TotalBilled: numericToString(row.TotalBilled),
			TotalPaid:   numericToString(row.TotalPaid),
			Outstanding: outstanding,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":           entries,
		"total_outstanding": total.StringFixed(2),
	})
}

// ProfitLoss reports revenue, cost of goods sold and gross profit over a
// date range. Cost comes from the per-item cost snapshots, so later cost
// price changes do not rewrite history.
func (h *ReportHandler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	row, err := h.store.GetProfitLoss(ctx, database.GetProfitLossParams{Start: start, End: end})
	if err != nil {
		log.Printf("ERROR: profit loss: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	returnsTotal, err := h.store.GetSalesReturnsTotal(ctx, database.GetSalesReturnsTotalParams{Start: start, End: end})
	if err != nil {
		log.Printf("ERROR: sales returns total: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	revenue, _ := decimal.NewFromString(numericToString(row.Revenue))
	cogs, _ := decimal.NewFromString(numericToString(row.Cogs))
	refunds, _ := decimal.NewFromString(numericToString(returnsTotal))
	netRevenue := revenue.Sub(refunds)
	grossProfit := netRevenue.Sub(cogs)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start_date":    start.Format("2006-01-02"),
		"end_date":      end.AddDate(0, 0, -1).Format("2006-01-02"),
		"order_count":   row.OrderCount,
		"gross_revenue": revenue.StringFixed(2),
		"sales_returns": refunds.StringFixed(2),
		"net_revenue":   netRevenue.StringFixed(2),
		"cogs":          cogs.StringFixed(2),
		"gross_profit":  grossProfit.StringFixed(2),
	})
}

type inventoryValuationRow struct {
	ProductID     uuid.UUID `json:"product_id"`
	Sku           string    `json:"sku"`
	Name          string    `json:"name"`
	StockQuantity int32     `json:"stock_quantity"`
	CostPrice     string    `json:"cost_price"`
	SellingPrice  string    `json:"selling_price"`
	CostValue     string    `json:"cost_value"`
	RetailValue   string    `json:"retail_value"`
}

// InventoryValuation values current stock at cost and at retail.
func (h *ReportHandler) InventoryValuation(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.GetInventoryValuation(r.Context())
	if err != nil {
		log.Printf("ERROR: inventory valuation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	entries := make([]inventoryValuationRow, 0, len(rows))
	totalCost := decimal.Zero
	totalRetail := decimal.Zero
	for _, row := range rows {
		costValue := numericToString(row.CostValue)
		retailValue := numericToString(row.RetailValue)
		cd, _ := decimal.NewFromString(costValue)
		rd, _ := decimal.NewFromString(retailValue)
		totalCost = totalCost.Add(cd)
		totalRetail = totalRetail.Add(rd)
		entries = append(entries, inventoryValuationRow{
			ProductID:     row.ProductID,
			Sku:           row.Sku,
			Name:          row.Name,
			StockQuantity: row.StockQuantity,
			CostPrice:     numericToString(row.CostPrice),
			SellingPrice:  numericToString(row.SellingPrice),
			CostValue:     costValue,
			RetailValue:   retailValue,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":            entries,
		"total_cost_value":   totalCost.StringFixed(2),
		"total_retail_value": totalRetail.StringFixed(2),
	})
}

type monthlySalesRow struct {
	Month        int32  `json:"month"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

// MonthlySales returns per-month revenue for the requested year, with zero
// rows for months that had no sales.
func (h *ReportHandler) MonthlySales(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := now.Year()
	if s := r.URL.Query().Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 2000 || v > now.Year()+1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
			return
		}
		year = v
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(1, 0, 0)

	rows, err := h.store.GetMonthlySales(r.Context(), database.GetMonthlySalesParams{Start: start, End: end})
	if err != nil {
		log.Printf("ERROR: monthly sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	months := make([]monthlySalesRow, 12)
	for i := range months {
		months[i] = monthlySalesRow{Month: int32(i + 1), TotalRevenue: "0.00"}
	}
	for _, row := range rows {
		if row.Month >= 1 && row.Month <= 12 {
			months[row.Month-1] = monthlySalesRow{
				Month:        row.Month,
				OrderCount:   row.OrderCount,
				TotalRevenue: numericToString(row.TotalRevenue),
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":   year,
		"months": months,
	})
}
