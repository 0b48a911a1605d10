package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
)

type stubVerifier struct {
	subject string
	err     error
}

func (v stubVerifier) Verify(context.Context, string) (string, error) {
	return v.subject, v.err
}

func emptyEngine(t *testing.T) *policy.Engine {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.NewMemoryStore())
	require.NoError(t, err)
	return engine
}

// resolve runs a request through the resolver and returns the identity seen
// by the inner handler.
func resolve(t *testing.T, rs *auth.Resolver, sess *shared.Session, header http.Header) *shared.Identity {
	t.Helper()
	var seen *shared.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rs.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestResolverAttachesSessionIdentity(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"})
	rs := &auth.Resolver{Repo: repo, Tenants: dir, Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(7)

	identity := resolve(t, rs, sess, nil)
	require.NotNil(t, identity)
	assert.Equal(t, int64(7), identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, int64(1), identity.TenantID)
	assert.Equal(t, "acme", identity.TenantName)
}

func TestResolverDestroysSessionOfMissingUser(t *testing.T) {
	rs := &auth.Resolver{Repo: newStubRepo(), Tenants: newStubTenants(), Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(42)

	identity := resolve(t, rs, sess, nil)
	assert.Nil(t, identity)
	assert.True(t, sess.Destroyed())
}

func TestResolverDestroysSessionOfInactiveUser(t *testing.T) {
	user := activeUser(t, 7, "alice", "s3cret-pw")
	user.IsActive = false
	rs := &auth.Resolver{Repo: newStubRepo(user), Tenants: newStubTenants(), Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(7)

	identity := resolve(t, rs, sess, nil)
	assert.Nil(t, identity)
	assert.True(t, sess.Destroyed())
}

func TestResolverUpgradesBearerToSession(t *testing.T) {
	user := activeUser(t, 7, "alice", "s3cret-pw")
	subject := "idp|alice"
	user.ExternalID = &subject
	repo := newStubRepo(user)
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"})
	rs := &auth.Resolver{
		Repo:     repo,
		Tenants:  dir,
		Engine:   emptyEngine(t),
		Verifier: stubVerifier{subject: subject},
	}

	sess := &shared.Session{}
	header := http.Header{"Authorization": []string{"Bearer sometoken"}}

	identity := resolve(t, rs, sess, header)
	require.NotNil(t, identity)
	assert.Equal(t, int64(7), identity.UserID)
	assert.Equal(t, int64(7), sess.User())
	assert.Equal(t, []int64{7}, repo.lastLogins)
}

func TestResolverRejectsInvalidBearer(t *testing.T) {
	rs := &auth.Resolver{
		Repo:     newStubRepo(),
		Tenants:  newStubTenants(),
		Engine:   emptyEngine(t),
		Verifier: stubVerifier{err: errors.New("expired")},
	}

	identity := resolve(t, rs, &shared.Session{}, http.Header{"Authorization": []string{"Bearer bad"}})
	assert.Nil(t, identity)
}

func TestResolverSessionTenantOverridesHome(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"}, tenants.Tenant{ID: 2, Name: "globex"})
	rs := &auth.Resolver{Repo: repo, Tenants: dir, Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(7)
	sess.SetTenant(2)

	identity := resolve(t, rs, sess, nil)
	require.NotNil(t, identity)
	assert.Equal(t, int64(2), identity.TenantID)
	assert.Equal(t, "globex", identity.TenantName)
	assert.Equal(t, int64(1), identity.HomeTenantID)
}

func TestResolverFallsBackToHomeWhenSessionTenantVanishes(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"})
	rs := &auth.Resolver{Repo: repo, Tenants: dir, Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(7)
	sess.SetTenant(9)

	identity := resolve(t, rs, sess, nil)
	require.NotNil(t, identity)
	assert.Equal(t, int64(1), identity.TenantID)
	assert.Equal(t, "acme", identity.TenantName)
	assert.Equal(t, int64(1), sess.Tenant())
}

func TestResolverClearsTenantWhenHomeVanishesToo(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	rs := &auth.Resolver{Repo: repo, Tenants: newStubTenants(), Engine: emptyEngine(t)}

	sess := &shared.Session{}
	sess.SetUser(7)
	sess.SetTenant(9)

	identity := resolve(t, rs, sess, nil)
	require.NotNil(t, identity)
	assert.Zero(t, identity.TenantID)
	assert.Zero(t, sess.Tenant())
}

func TestResolverMarksSuperAdminFromPolicy(t *testing.T) {
	ctx := context.Background()
	engine := emptyEngine(t)
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{
		Member: policy.UserSubject(7),
		Role:   policy.SuperAdminRole,
		Domain: policy.Wildcard,
	}))

	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"})
	rs := &auth.Resolver{Repo: repo, Tenants: dir, Engine: engine}

	sess := &shared.Session{}
	sess.SetUser(7)

	identity := resolve(t, rs, sess, nil)
	require.NotNil(t, identity)
	assert.True(t, identity.IsSuperAdmin)
}

func TestRequireUserBlocksAnonymous(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res := httptest.NewRecorder()
	auth.RequireUser(next).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), &shared.Identity{UserID: 7}))
	auth.RequireUser(next).ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}
