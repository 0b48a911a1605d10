package suppliers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/compliance/suppliers"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
)

type fakeRepo struct {
	byID   map[int64]suppliers.Supplier
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]suppliers.Supplier), nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, tenantID int64, _ csh.ListFilters) ([]suppliers.Supplier, int, error) {
	var out []suppliers.Supplier
	for _, s := range f.byID {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(_ context.Context, tenantID, id int64) (suppliers.Supplier, error) {
	s, ok := f.byID[id]
	if !ok || s.TenantID != tenantID {
		return suppliers.Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) Create(_ context.Context, s suppliers.Supplier) (suppliers.Supplier, error) {
	for _, existing := range f.byID {
		if existing.TenantID == s.TenantID && existing.Code == s.Code {
			return suppliers.Supplier{}, shared.ErrConflict
		}
	}
	s.ID = f.nextID
	f.nextID++
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeRepo) Update(_ context.Context, s suppliers.Supplier) (suppliers.Supplier, error) {
	existing, ok := f.byID[s.ID]
	if !ok || existing.TenantID != s.TenantID {
		return suppliers.Supplier{}, shared.ErrNotFound
	}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeRepo) Delete(_ context.Context, tenantID, id int64) error {
	s, ok := f.byID[id]
	if !ok || s.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// grantedRouter mounts the supplier routes behind an engine that grants the
// test user full supplier access in tenant 2 only.
func grantedRouter(t *testing.T, repo *fakeRepo) http.Handler {
	t.Helper()
	ctx := context.Background()
	engine, err := policy.NewEngine(ctx, policy.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:5", Domain: "2"}))
	for _, action := range []string{"read", "write"} {
		require.NoError(t, engine.AddPolicy(ctx, policy.Policy{
			Role: "role:5", Domain: "2", Resource: "api:suppliers", Action: action,
		}))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := suppliers.NewHandler(logger, suppliers.NewService(repo), rbac.Middleware{Engine: engine})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			identity := &shared.Identity{UserID: 1, TenantID: 2}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithIdentity(req.Context(), identity)))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestCreateAndListScopedToTenant(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[99] = suppliers.Supplier{ID: 99, TenantID: 7, Code: "OTHER", Name: "Foreign tenant"}
	repo.nextID = 100
	router := grantedRouter(t, repo)

	body, _ := json.Marshal(map[string]string{"code": "SUP-1", "name": "Cocoa Farms Ltd", "country": "GH"})
	req := httptest.NewRequest(http.MethodPost, "/suppliers", bytes.NewReader(body))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code)

	var created suppliers.Supplier
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, int64(2), created.TenantID)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/suppliers", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var page struct {
		Items []suppliers.Supplier `json:"items"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "SUP-1", page.Items[0].Code)
}

func TestGetForeignTenantSupplierIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[99] = suppliers.Supplier{ID: 99, TenantID: 7, Code: "OTHER", Name: "Foreign tenant"}
	router := grantedRouter(t, repo)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/suppliers/99", nil))
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCreateDuplicateCodeConflicts(t *testing.T) {
	router := grantedRouter(t, newFakeRepo())

	body, _ := json.Marshal(map[string]string{"code": "SUP-1", "name": "Cocoa Farms Ltd"})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/suppliers", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/suppliers", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestCreateMissingNameRejected(t *testing.T) {
	router := grantedRouter(t, newFakeRepo())

	body, _ := json.Marshal(map[string]string{"code": "SUP-1"})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/suppliers", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
