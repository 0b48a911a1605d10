package suppliers

import (
	"context"
	"fmt"
	"strings"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/shared"
)

// Service handles supplier business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, tenantID, filters)
}

func (s *Service) Get(ctx context.Context, tenantID, id int64) (Supplier, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) Create(ctx context.Context, sup Supplier) (Supplier, error) {
	if err := validate(&sup); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, sup)
}

func (s *Service) Update(ctx context.Context, sup Supplier) (Supplier, error) {
	if err := validate(&sup); err != nil {
		return Supplier{}, err
	}
	return s.repo.Update(ctx, sup)
}

func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

func validate(s *Supplier) error {
	s.Code = strings.TrimSpace(s.Code)
	s.Name = strings.TrimSpace(s.Name)
	if s.Code == "" || s.Name == "" {
		return fmt.Errorf("code and name required: %w", shared.ErrValidation)
	}
	return nil
}
