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
	"github.com/simplestore/api/internal/database"
)

// VendorStore defines the database methods needed by vendor handlers.
type VendorStore interface {
	ListVendors(ctx context.Context, arg database.ListVendorsParams) ([]database.Vendor, error)
	GetVendor(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	CreateVendor(ctx context.Context, arg database.CreateVendorParams) (database.Vendor, error)
	UpdateVendor(ctx context.Context, arg database.UpdateVendorParams) (database.Vendor, error)
	SoftDeleteVendor(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type VendorHandler struct {
	store VendorStore
}

func NewVendorHandler(store VendorStore) *VendorHandler {
	return &VendorHandler{store: store}
}

func (h *VendorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/vendors", h.List)
	r.Post("/vendors", h.Create)
	r.Get("/vendors/{id}", h.Get)
	r.Put("/vendors/{id}", h.Update)
	r.Delete("/vendors/{id}", h.Delete)
}

type vendorRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

type vendorResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ContactPerson *string   `json:"contact_person"`
	Phone         *string   `json:"phone"`
	Email         *string   `json:"email"`
	Address       *string   `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toVendorResponse(v database.Vendor) vendorResponse {
	return vendorResponse{
		ID:            v.ID,
		Name:          v.Name,
		ContactPerson: textPtr(v.ContactPerson),
		Phone:         textPtr(v.Phone),
		Email:         textPtr(v.Email),
		Address:       textPtr(v.Address),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (h *VendorHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	vendors, err := h.store.ListVendors(r.Context(), database.ListVendorsParams{
		Search: optText(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list vendors: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]vendorResponse, 0, len(vendors))
	for _, v := range vendors {
		resp = append(resp, toVendorResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *VendorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vendor id"})
		return
	}

	vendor, err := h.store.GetVendor(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vendor not found"})
			return
		}
		log.Printf("ERROR: get vendor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	vendor, err := h.store.CreateVendor(r.Context(), database.CreateVendorParams{
		Name:          req.Name,
		ContactPerson: optText(req.ContactPerson),
		Phone:         optText(req.Phone),
		Email:         optText(req.Email),
		Address:       optText(req.Address),
	})
	if err != nil {
		log.Printf("ERROR: create vendor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *VendorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vendor id"})
		return
	}

	var req vendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	vendor, err := h.store.UpdateVendor(r.Context(), database.UpdateVendorParams{
		Name:          req.Name,
		ContactPerson: optText(req.ContactPerson),
		Phone:         optText(req.Phone),
		Email:         optText(req.Email),
		Address:       optText(req.Address),
		ID:            id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vendor not found"})
			return
		}
		log.Printf("ERROR: update vendor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vendor id"})
		return
	}

	if _, err := h.store.SoftDeleteVendor(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vendor not found"})
			return
		}
		log.Printf("ERROR: delete vendor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
