package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantis/verdantis/internal/shared"
)

// Service handles tenant administration.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all tenants.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Get fetches a tenant by ID.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a tenant after validating its name.
func (s *Service) Create(ctx context.Context, t Tenant) (Tenant, error) {
	t.Name = strings.TrimSpace(strings.ToLower(t.Name))
	if t.Name == "" {
		return Tenant{}, fmt.Errorf("tenant name required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, t)
}

// Update changes a tenant's display fields. There is no delete: tenants are
// permanent once created.
func (s *Service) Update(ctx context.Context, t Tenant) (Tenant, error) {
	return s.repo.Update(ctx, t)
}
