package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/users"
)

type fakeRepo struct {
	byID   map[int64]users.User
	hashes map[int64]string
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]users.User), hashes: make(map[int64]string), nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, tenantID *int64) ([]users.User, error) {
	var out []users.User
	for _, u := range f.byID {
		if tenantID == nil || (u.TenantID != nil && *u.TenantID == *tenantID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) Create(_ context.Context, user users.User, hash string) (users.User, error) {
	for _, u := range f.byID {
		if u.Username == user.Username {
			return users.User{}, shared.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.byID[user.ID] = user
	f.hashes[user.ID] = hash
	return user, nil
}

func (f *fakeRepo) Update(_ context.Context, user users.User) (users.User, error) {
	existing, ok := f.byID[user.ID]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	existing.Email = user.Email
	existing.DisplayName = user.DisplayName
	f.byID[user.ID] = existing
	return existing, nil
}

func (f *fakeRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := f.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	f.byID[id] = u
	return nil
}

func (f *fakeRepo) SetSuperAdmin(_ context.Context, id int64, super bool) error {
	u, ok := f.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsSuperAdmin = super
	f.byID[id] = u
	return nil
}

type countingSync struct {
	calls int
}

func (c *countingSync) Sync(context.Context) error {
	c.calls++
	return nil
}

func TestCreateHashesPasswordAndNormalizesUsername(t *testing.T) {
	repo := newFakeRepo()
	svc := users.NewService(repo, nil, &countingSync{})

	user, err := svc.Create(context.Background(), users.CreateInput{
		Username: "  Greta ",
		Password: "longenoughpw",
		Email:    "greta@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "greta", user.Username)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, repo.hashes[user.ID])
	assert.NotContains(t, repo.hashes[user.ID], "longenoughpw")
}

func TestCreateRequiresCredentials(t *testing.T) {
	svc := users.NewService(newFakeRepo(), nil, &countingSync{})

	_, err := svc.Create(context.Background(), users.CreateInput{Username: "greta"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateSuperAdminResyncs(t *testing.T) {
	sync := &countingSync{}
	svc := users.NewService(newFakeRepo(), nil, sync)

	_, err := svc.Create(context.Background(), users.CreateInput{
		Username:     "root",
		Password:     "longenoughpw",
		IsSuperAdmin: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sync.calls)
}

func TestAuthorizationTogglesResync(t *testing.T) {
	repo := newFakeRepo()
	sync := &countingSync{}
	svc := users.NewService(repo, nil, sync)

	user, err := svc.Create(context.Background(), users.CreateInput{Username: "greta", Password: "longenoughpw"})
	require.NoError(t, err)
	require.Equal(t, 0, sync.calls)

	require.NoError(t, svc.SetSuperAdmin(context.Background(), user.ID, true))
	assert.Equal(t, 1, sync.calls)
	assert.True(t, repo.byID[user.ID].IsSuperAdmin)

	require.NoError(t, svc.SetActive(context.Background(), user.ID, false))
	assert.Equal(t, 2, sync.calls)
	assert.False(t, repo.byID[user.ID].IsActive)
}

func TestSetActiveUnknownUser(t *testing.T) {
	sync := &countingSync{}
	svc := users.NewService(newFakeRepo(), nil, sync)

	err := svc.SetActive(context.Background(), 99, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 0, sync.calls)
}
