package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/verdantis/verdantis/internal/password"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
)

// TenantDirectory is the slice of the tenant store the auth layer needs.
type TenantDirectory interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
	GetByName(ctx context.Context, name string) (tenants.Tenant, error)
}

// DefaultRoleAssigner grants a freshly registered user the default role in
// their home tenant and re-syncs the policy engine.
type DefaultRoleAssigner interface {
	AssignDefaultRole(ctx context.Context, userID, tenantID int64) error
}

// Service wraps authentication business rules.
type Service struct {
	repo          Repository
	tenantDir     TenantDirectory
	roleAssigner  DefaultRoleAssigner
	defaultTenant string
	logger        *slog.Logger
}

// NewService constructs a Service. defaultTenant is the tenant name new
// registrations land in.
func NewService(repo Repository, tenantDir TenantDirectory, roleAssigner DefaultRoleAssigner, defaultTenant string, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		tenantDir:     tenantDir,
		roleAssigner:  roleAssigner,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// NormalizeUsername applies NFKC and lowercasing so visually equivalent
// usernames collide at the uniqueness check instead of coexisting.
func NormalizeUsername(username string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(username)))
}

// Authenticate validates username/password credentials. Every failure mode
// collapses into ErrInvalidCredentials: callers learn nothing about whether
// the username exists or the account is disabled.
func (s *Service) Authenticate(ctx context.Context, username, pw string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		// Burn comparable time on a throwaway verification so a missing
		// username is not distinguishable by response latency.
		password.Verify(pw, dummyHash)
		return nil, shared.ErrInvalidCredentials
	}
	if !password.Verify(pw, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil && s.logger != nil {
		s.logger.Warn("touch last login", slog.Any("error", err))
	}
	return user, nil
}

// dummyHash is a syntactically valid stored hash derived from an
// unguessable throwaway input, used only to equalize timing.
const dummyHash = "0000000000000000000000000000000000000000000000000000000000000000.00000000000000000000000000000000"

// RegisterInput carries the registration payload.
type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

// Register creates a user in the default tenant with the default role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username := NormalizeUsername(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("username and password required: %w", shared.ErrValidation)
	}

	home, err := s.tenantDir.GetByName(ctx, s.defaultTenant)
	if err != nil {
		return nil, fmt.Errorf("default tenant %q: %w", s.defaultTenant, err)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Create(ctx, &User{
		Username:     username,
		PasswordHash: hash,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		TenantID:     &home.ID,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.roleAssigner.AssignDefaultRole(ctx, user.ID, home.ID); err != nil {
		// The account exists but carries no grants; the next admin sync or
		// manual assignment resolves it. Registration still succeeds.
		if s.logger != nil {
			s.logger.Error("assign default role", slog.Int64("user", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// EnsureExternalUser finds or provisions the local account for a verified
// identity provider subject. An existing account with a matching username is
// linked rather than duplicated.
func (s *Service) EnsureExternalUser(ctx context.Context, claims *TokenClaims) (*User, error) {
	user, err := s.repo.FindByExternalID(ctx, claims.Subject)
	if err == nil {
		if !user.IsActive {
			return nil, shared.ErrInvalidCredentials
		}
		if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil && s.logger != nil {
			s.logger.Warn("touch last login", slog.Any("error", err))
		}
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	username := NormalizeUsername(claims.Username)
	if username == "" {
		username = NormalizeUsername(claims.Email)
	}
	if username == "" {
		return nil, fmt.Errorf("identity token carries no usable username: %w", shared.ErrValidation)
	}

	if existing, err := s.repo.FindByUsername(ctx, username); err == nil {
		if !existing.IsActive {
			return nil, shared.ErrInvalidCredentials
		}
		if err := s.repo.LinkExternalID(ctx, existing.ID, claims.Subject); err != nil {
			return nil, err
		}
		subject := claims.Subject
		existing.ExternalID = &subject
		return existing, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	home, err := s.tenantDir.GetByName(ctx, s.defaultTenant)
	if err != nil {
		return nil, fmt.Errorf("default tenant %q: %w", s.defaultTenant, err)
	}
	subject := claims.Subject
	user, err = s.repo.Create(ctx, &User{
		Username:    username,
		Email:       claims.Email,
		DisplayName: claims.Name,
		ExternalID:  &subject,
		TenantID:    &home.ID,
		IsActive:    true,
	})
	if err != nil {
		return nil, err
	}
	if err := s.roleAssigner.AssignDefaultRole(ctx, user.ID, home.ID); err != nil && s.logger != nil {
		s.logger.Error("assign default role", slog.Int64("user", user.ID), slog.Any("error", err))
	}
	return user, nil
}

// SwitchTenant validates and performs a tenant switch for the user. Super
// admins may switch to any existing tenant; everyone else only to their home
// tenant.
func (s *Service) SwitchTenant(ctx context.Context, user *shared.Identity, targetID int64) (tenants.Tenant, error) {
	if !user.IsSuperAdmin && targetID != user.HomeTenantID {
		return tenants.Tenant{}, shared.ErrForbidden
	}
	tenant, err := s.tenantDir.Get(ctx, targetID)
	if err != nil {
		return tenants.Tenant{}, err
	}
	return tenant, nil
}
