package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
)

type stubRoles struct {
	roles []string
}

func (s stubRoles) RolesOf(subject, domain string) []string {
	return s.roles
}

func authRouter(svc *auth.Service, sess *shared.Session, identity *shared.Identity) http.Handler {
	h := auth.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, nil, stubRoles{roles: []string{"role:member"}})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if sess != nil {
				ctx = shared.ContextWithSession(ctx, sess)
			}
			if identity != nil {
				ctx = shared.ContextWithIdentity(ctx, identity)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginEstablishesSession(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	svc := newService(repo, newStubTenants(tenants.Tenant{ID: 1, Name: "acme"}), &stubAssigner{})
	sess := &shared.Session{ID: "pre-login"}

	res := postJSON(t, authRouter(svc, sess, nil), "/auth/login", map[string]string{
		"username": "alice",
		"password": "s3cret-pw",
	})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(7), sess.User())
	assert.Equal(t, int64(1), sess.Tenant())
	assert.NotEqual(t, "pre-login", sess.ID)

	var payload struct {
		ID    int64    `json:"id"`
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, int64(7), payload.ID)
	assert.Equal(t, []string{"role:member"}, payload.Roles)
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	svc := newService(repo, newStubTenants(), &stubAssigner{})
	sess := &shared.Session{}

	res := postJSON(t, authRouter(svc, sess, nil), "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, int64(0), sess.User())
	assert.NotContains(t, res.Body.String(), "password")
	assert.NotContains(t, res.Body.String(), "alice")
}

func TestLoginValidationHidesRequestInternals(t *testing.T) {
	svc := newService(newStubRepo(), newStubTenants(), &stubAssigner{})

	res := postJSON(t, authRouter(svc, &shared.Session{}, nil), "/auth/login", map[string]string{
		"username": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "password must satisfy required")
	assert.NotContains(t, res.Body.String(), "loginRequest")
	assert.NotContains(t, res.Body.String(), "Password")
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc := newService(newStubRepo(), newStubTenants(), &stubAssigner{})
	sess := &shared.Session{}
	sess.SetUser(7)
	router := authRouter(svc, sess, nil)

	res := postJSON(t, router, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.True(t, sess.Destroyed())

	// Without any session at all logout still succeeds.
	res = postJSON(t, authRouter(svc, nil, nil), "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestRegisterConflict(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	svc := newService(repo, newStubTenants(tenants.Tenant{ID: 1, Name: "acme"}), &stubAssigner{})

	res := postJSON(t, authRouter(svc, &shared.Session{}, nil), "/auth/register", map[string]string{
		"username": "Alice",
		"password": "longenoughpw",
		"email":    "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestMeRequiresIdentity(t *testing.T) {
	svc := newService(newStubRepo(), newStubTenants(), &stubAssigner{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	authRouter(svc, nil, nil).ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeReturnsIdentityWithRoles(t *testing.T) {
	svc := newService(newStubRepo(), newStubTenants(), &stubAssigner{})
	identity := &shared.Identity{UserID: 7, Username: "alice", TenantID: 1, TenantName: "acme"}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	authRouter(svc, nil, identity).ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		UserID     int64    `json:"user_id"`
		TenantName string   `json:"tenant_name"`
		Roles      []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, int64(7), payload.UserID)
	assert.Equal(t, "acme", payload.TenantName)
	assert.Equal(t, []string{"role:member"}, payload.Roles)
}

func TestSwitchTenantForbiddenOutsideHome(t *testing.T) {
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"}, tenants.Tenant{ID: 2, Name: "globex"})
	svc := newService(newStubRepo(), dir, &stubAssigner{})
	sess := &shared.Session{}
	sess.SetTenant(1)
	identity := &shared.Identity{UserID: 7, HomeTenantID: 1, TenantID: 1}

	res := postJSON(t, authRouter(svc, sess, identity), "/auth/switch-tenant", map[string]int64{"tenant_id": 2})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, int64(1), sess.Tenant())
}

func TestSwitchTenantSuperAdmin(t *testing.T) {
	dir := newStubTenants(tenants.Tenant{ID: 2, Name: "globex"})
	svc := newService(newStubRepo(), dir, &stubAssigner{})
	sess := &shared.Session{}
	identity := &shared.Identity{UserID: 7, HomeTenantID: 1, IsSuperAdmin: true}

	res := postJSON(t, authRouter(svc, sess, identity), "/auth/switch-tenant", map[string]int64{"tenant_id": 2})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(2), sess.Tenant())
}
