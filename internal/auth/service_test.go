package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/password"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
)

type stubRepo struct {
	users      map[int64]*auth.User
	nextID     int64
	lastLogins []int64
	linked     map[int64]string
}

func newStubRepo(users ...*auth.User) *stubRepo {
	r := &stubRepo{users: make(map[int64]*auth.User), nextID: 1, linked: make(map[int64]string)}
	for _, u := range users {
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) FindByExternalID(_ context.Context, externalID string) (*auth.User, error) {
	for _, u := range r.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, shared.ErrConflict
		}
	}
	copied := *user
	copied.ID = r.nextID
	r.nextID++
	r.users[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (r *stubRepo) LinkExternalID(_ context.Context, userID int64, externalID string) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.ExternalID = &externalID
	r.linked[userID] = externalID
	return nil
}

func (r *stubRepo) TouchLastLogin(_ context.Context, userID int64) error {
	r.lastLogins = append(r.lastLogins, userID)
	return nil
}

type stubTenants struct {
	byID   map[int64]tenants.Tenant
	byName map[string]tenants.Tenant
}

func newStubTenants(list ...tenants.Tenant) *stubTenants {
	s := &stubTenants{byID: make(map[int64]tenants.Tenant), byName: make(map[string]tenants.Tenant)}
	for _, t := range list {
		s.byID[t.ID] = t
		s.byName[t.Name] = t
	}
	return s
}

func (s *stubTenants) Get(_ context.Context, id int64) (tenants.Tenant, error) {
	if t, ok := s.byID[id]; ok {
		return t, nil
	}
	return tenants.Tenant{}, shared.ErrNotFound
}

func (s *stubTenants) GetByName(_ context.Context, name string) (tenants.Tenant, error) {
	if t, ok := s.byName[name]; ok {
		return t, nil
	}
	return tenants.Tenant{}, shared.ErrNotFound
}

type stubAssigner struct {
	calls [][2]int64
}

func (a *stubAssigner) AssignDefaultRole(_ context.Context, userID, tenantID int64) error {
	a.calls = append(a.calls, [2]int64{userID, tenantID})
	return nil
}

func newService(repo *stubRepo, dir *stubTenants, assigner *stubAssigner) *auth.Service {
	return auth.NewService(repo, dir, assigner, "acme", nil)
}

func activeUser(t *testing.T, id int64, username, pw string) *auth.User {
	t.Helper()
	hash, err := password.Hash(pw)
	require.NoError(t, err)
	tenant := int64(1)
	return &auth.User{ID: id, Username: username, PasswordHash: hash, TenantID: &tenant, IsActive: true}
}

func TestAuthenticateSuccessTouchesLastLogin(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	svc := newService(repo, newStubTenants(), &stubAssigner{})

	user, err := svc.Authenticate(context.Background(), "Alice", "s3cret-pw")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, []int64{7}, repo.lastLogins)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	inactive := activeUser(t, 9, "bob", "s3cret-pw")
	inactive.IsActive = false
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"), inactive)
	svc := newService(repo, newStubTenants(), &stubAssigner{})

	cases := map[string][2]string{
		"wrong password":   {"alice", "not-the-password"},
		"unknown username": {"nobody", "s3cret-pw"},
		"inactive account": {"bob", "s3cret-pw"},
	}
	for name, creds := range cases {
		_, err := svc.Authenticate(context.Background(), creds[0], creds[1])
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, name)
	}
	assert.Empty(t, repo.lastLogins)
}

func TestRegisterCreatesUserWithDefaultRole(t *testing.T) {
	repo := newStubRepo()
	assigner := &stubAssigner{}
	svc := newService(repo, newStubTenants(tenants.Tenant{ID: 3, Name: "acme"}), assigner)

	user, err := svc.Register(context.Background(), auth.RegisterInput{
		Username: "  Carol ",
		Password: "longenoughpw",
		Email:    "carol@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	require.NotNil(t, user.TenantID)
	assert.Equal(t, int64(3), *user.TenantID)
	assert.True(t, user.IsActive)
	require.Len(t, assigner.calls, 1)
	assert.Equal(t, [2]int64{user.ID, 3}, assigner.calls[0])
}

func TestRegisterRejectsEmptyCredentials(t *testing.T) {
	svc := newService(newStubRepo(), newStubTenants(tenants.Tenant{ID: 3, Name: "acme"}), &stubAssigner{})

	_, err := svc.Register(context.Background(), auth.RegisterInput{Username: "dave"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestEnsureExternalUserLinksExistingUsername(t *testing.T) {
	repo := newStubRepo(activeUser(t, 7, "alice", "s3cret-pw"))
	svc := newService(repo, newStubTenants(tenants.Tenant{ID: 3, Name: "acme"}), &stubAssigner{})

	user, err := svc.EnsureExternalUser(context.Background(), &auth.TokenClaims{
		Subject:  "idp|abc123",
		Username: "Alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "idp|abc123", repo.linked[7])
}

func TestEnsureExternalUserProvisionsNewAccount(t *testing.T) {
	repo := newStubRepo()
	assigner := &stubAssigner{}
	svc := newService(repo, newStubTenants(tenants.Tenant{ID: 3, Name: "acme"}), assigner)

	user, err := svc.EnsureExternalUser(context.Background(), &auth.TokenClaims{
		Subject: "idp|new",
		Email:   "Eve@Example.com",
		Name:    "Eve Example",
	})
	require.NoError(t, err)
	assert.Equal(t, "eve@example.com", user.Username)
	require.NotNil(t, user.ExternalID)
	assert.Equal(t, "idp|new", *user.ExternalID)
	require.Len(t, assigner.calls, 1)
}

func TestEnsureExternalUserReturnsLinkedAccount(t *testing.T) {
	linked := activeUser(t, 5, "frank", "s3cret-pw")
	subject := "idp|frank"
	linked.ExternalID = &subject
	repo := newStubRepo(linked)
	svc := newService(repo, newStubTenants(), &stubAssigner{})

	user, err := svc.EnsureExternalUser(context.Background(), &auth.TokenClaims{Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, int64(5), user.ID)
	assert.Equal(t, []int64{5}, repo.lastLogins)
}

func TestSwitchTenantHomeOnlyForRegularUsers(t *testing.T) {
	dir := newStubTenants(tenants.Tenant{ID: 1, Name: "acme"}, tenants.Tenant{ID: 2, Name: "globex"})
	svc := newService(newStubRepo(), dir, &stubAssigner{})

	identity := &shared.Identity{UserID: 7, HomeTenantID: 1}
	_, err := svc.SwitchTenant(context.Background(), identity, 2)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	tenant, err := svc.SwitchTenant(context.Background(), identity, 1)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)
}

func TestSwitchTenantSuperAdminAnyExistingTenant(t *testing.T) {
	dir := newStubTenants(tenants.Tenant{ID: 2, Name: "globex"})
	svc := newService(newStubRepo(), dir, &stubAssigner{})

	identity := &shared.Identity{UserID: 7, HomeTenantID: 1, IsSuperAdmin: true}
	tenant, err := svc.SwitchTenant(context.Background(), identity, 2)
	require.NoError(t, err)
	assert.Equal(t, "globex", tenant.Name)

	_, err = svc.SwitchTenant(context.Background(), identity, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
