package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/simplestore/api/internal/database"
)

// SettingsStore defines the database methods needed by settings handlers.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.Setting, error)
	UpsertSettings(ctx context.Context, arg database.UpsertSettingsParams) (database.Setting, error)
}

// SettingsHandler manages the store profile singleton. Updates are admin
// only; reads are open so the UI can show prefixes and currency.
type SettingsHandler struct {
	store SettingsStore
}

func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Document prefixes end up in order numbers, so they are restricted to
// short uppercase alphanumerics.
var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,5}$`)

func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
}

// RegisterAdminRoutes registers the admin-only update endpoint.
func (h *SettingsHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/settings", h.Update)
}

type settingsRequest struct {
	StoreName      string `json:"store_name"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	CurrencyCode   string `json:"currency_code"`
	SalesPrefix    string `json:"sales_prefix"`
	PurchasePrefix string `json:"purchase_prefix"`
	ReturnPrefix   string `json:"return_prefix"`
	TaxRatePercent string `json:"tax_rate_percent"`
}

type settingsResponse struct {
	StoreName      string    `json:"store_name"`
	Address        *string   `json:"address"`
	Phone          *string   `json:"phone"`
	Email          *string   `json:"email"`
	CurrencyCode   string    `json:"currency_code"`
	SalesPrefix    string    `json:"sales_prefix"`
	PurchasePrefix string    `json:"purchase_prefix"`
	ReturnPrefix   string    `json:"return_prefix"`
	TaxRatePercent string    `json:"tax_rate_percent"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toSettingsResponse(s database.Setting) settingsResponse {
	return settingsResponse{
		StoreName:      s.StoreName,
		Address:        textPtr(s.Address),
		Phone:          textPtr(s.Phone),
		Email:          textPtr(s.Email),
		CurrencyCode:   s.CurrencyCode,
		SalesPrefix:    s.SalesPrefix,
		PurchasePrefix: s.PurchasePrefix,
		ReturnPrefix:   s.ReturnPrefix,
		TaxRatePercent: numericToString(s.TaxRatePercent),
		UpdatedAt:      s.UpdatedAt,
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not configured"})
			return
		}
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.StoreName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "store_name is required"})
		return
	}
	if req.CurrencyCode == "" || req.SalesPrefix == "" || req.PurchasePrefix == "" || req.ReturnPrefix == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "currency_code and document prefixes are required"})
		return
	}
	for _, prefix := range []string{req.SalesPrefix, req.PurchasePrefix, req.ReturnPrefix} {
		if !prefixPattern.MatchString(prefix) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document prefixes must be 1-5 uppercase letters or digits"})
			return
		}
	}

	taxRate, err := decimal.NewFromString(req.TaxRatePercent)
	if err != nil || taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_rate_percent must be between 0 and 100"})
		return
	}

	settings, err := h.store.UpsertSettings(r.Context(), database.UpsertSettingsParams{
		StoreName:      req.StoreName,
		Address:        optText(req.Address),
		Phone:          optText(req.Phone),
		Email:          optText(req.Email),
		CurrencyCode:   req.CurrencyCode,
		SalesPrefix:    req.SalesPrefix,
		PurchasePrefix: req.PurchasePrefix,
		ReturnPrefix:   req.ReturnPrefix,
		TaxRatePercent: numericFromDecimal(taxRate),
	})
	if err != nil {
		log.Printf("ERROR: upsert settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}
