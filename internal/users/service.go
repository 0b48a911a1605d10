package users

import (
	"context"
	"fmt"

	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/password"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
)

// Resyncer rebuilds the policy engine from the credential store.
type Resyncer interface {
	Sync(ctx context.Context) error
}

// RoleSource lists a user's role assignments.
type RoleSource interface {
	ListUserRoles(ctx context.Context, userID int64) ([]rbac.UserRole, error)
}

// Service handles user management. Changes that affect authorization, such
// as the super-admin flag or deactivation, re-sync the policy engine before
// returning.
type Service struct {
	repo  Repository
	roles RoleSource
	sync  Resyncer
}

// NewService constructs a Service.
func NewService(repo Repository, roles RoleSource, sync Resyncer) *Service {
	return &Service{repo: repo, roles: roles, sync: sync}
}

// List returns users, optionally scoped to a tenant.
func (s *Service) List(ctx context.Context, tenantID *int64) ([]User, error) {
	return s.repo.List(ctx, tenantID)
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Roles returns the user's role assignments across tenants.
func (s *Service) Roles(ctx context.Context, userID int64) ([]rbac.UserRole, error) {
	if s.roles == nil {
		return nil, nil
	}
	return s.roles.ListUserRoles(ctx, userID)
}

// CreateInput carries an admin-provisioned account.
type CreateInput struct {
	Username     string
	Password     string
	Email        string
	DisplayName  string
	TenantID     *int64
	IsSuperAdmin bool
}

// Create provisions an account on behalf of an administrator.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	username := auth.NormalizeUsername(in.Username)
	if username == "" || in.Password == "" {
		return User{}, fmt.Errorf("username and password required: %w", shared.ErrValidation)
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, User{
		Username:     username,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		TenantID:     in.TenantID,
		IsSuperAdmin: in.IsSuperAdmin,
		IsActive:     true,
	}, hash)
	if err != nil {
		return User{}, err
	}
	if user.IsSuperAdmin {
		if err := s.sync.Sync(ctx); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// Update rewrites the user's profile fields.
func (s *Service) Update(ctx context.Context, user User) (User, error) {
	return s.repo.Update(ctx, user)
}

// SetActive activates or deactivates an account. Deactivation takes effect
// on the user's next request; their session is rejected by the resolver.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// SetSuperAdmin grants or revokes the super-admin flag.
func (s *Service) SetSuperAdmin(ctx context.Context, id int64, super bool) error {
	if err := s.repo.SetSuperAdmin(ctx, id, super); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}
