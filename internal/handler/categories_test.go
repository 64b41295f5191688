package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/simplestore/api/internal/database"
	"github.com/simplestore/api/internal/handler"
)

type mockCategoryStore struct {
	categories map[uuid.UUID]database.Category
}

func newMockCategoryStore() *mockCategoryStore {
	return &mockCategoryStore{categories: make(map[uuid.UUID]database.Category)}
}

func (m *mockCategoryStore) ListCategories(_ context.Context) ([]database.Category, error) {
	var out []database.Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryStore) GetCategory(_ context.Context, id uuid.UUID) (database.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, arg database.CreateCategoryParams) (database.Category, error) {
	c := database.Category{
		ID:          uuid.New(),
		Name:        arg.Name,
		Description: arg.Description,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) UpdateCategory(_ context.Context, arg database.UpdateCategoryParams) (database.Category, error) {
	c, ok := m.categories[arg.ID]
	if !ok {
		return database.Category{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.Description = arg.Description
	m.categories[arg.ID] = c
	return c, nil
}

func (m *mockCategoryStore) SoftDeleteCategory(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.categories[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.categories, id)
	return id, nil
}

func newCategoryRouter(store *mockCategoryStore) http.Handler {
	h := handler.NewCategoryHandler(store)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestCreateCategory(t *testing.T) {
	store := newMockCategoryStore()
	r := newCategoryRouter(store)

	rr := postJSON(t, r, "/categories", map[string]string{
		"name":        "Beverages",
		"description": "Drinks and juices",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["name"] != "Beverages" {
		t.Errorf("name: got %v, want Beverages", resp["name"])
	}
	if resp["description"] != "Drinks and juices" {
		t.Errorf("description: got %v, want Drinks and juices", resp["description"])
	}
}

func TestCreateCategory_MissingName(t *testing.T) {
	r := newCategoryRouter(newMockCategoryStore())

	rr := postJSON(t, r, "/categories", map[string]string{"description": "no name"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetCategory_NotFound(t *testing.T) {
	r := newCategoryRouter(newMockCategoryStore())

	req := httptest.NewRequest("GET", "/categories/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetCategory_InvalidID(t *testing.T) {
	r := newCategoryRouter(newMockCategoryStore())

	req := httptest.NewRequest("GET", "/categories/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDeleteCategory(t *testing.T) {
	store := newMockCategoryStore()
	c, _ := store.CreateCategory(context.Background(), database.CreateCategoryParams{Name: "Snacks"})
	r := newCategoryRouter(store)

	req := httptest.NewRequest("DELETE", "/categories/"+c.ID.String(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if _, ok := store.categories[c.ID]; ok {
		t.Error("category still present after delete")
	}
}

// Empty description round-trips as JSON null, not an empty string.
func TestCreateCategory_EmptyDescriptionIsNull(t *testing.T) {
	r := newCategoryRouter(newMockCategoryStore())

	rr := postJSON(t, r, "/categories", map[string]string{"name": "Misc"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}

	resp := decodeResponse(t, rr)
	if resp["description"] != nil {
		t.Errorf("description: got %v, want null", resp["description"])
	}
}
