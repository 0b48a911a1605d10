package declarations

import (
	"context"
	"fmt"
	"strings"
	"time"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/shared"
)

// Service handles declaration business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Declaration, int, error) {
	return s.repo.List(ctx, tenantID, filters)
}

func (s *Service) Get(ctx context.Context, tenantID, id int64) (Declaration, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) Create(ctx context.Context, d Declaration) (Declaration, error) {
	if err := normalize(&d); err != nil {
		return Declaration{}, err
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Update(ctx context.Context, d Declaration) (Declaration, error) {
	if err := normalize(&d); err != nil {
		return Declaration{}, err
	}
	return s.repo.Update(ctx, d)
}

func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

// normalize validates presence and stamps submitted_at the first time a
// declaration reaches the submitted status.
func normalize(d *Declaration) error {
	d.Reference = strings.TrimSpace(d.Reference)
	if d.Reference == "" || d.SupplierID < 1 {
		return fmt.Errorf("reference and supplier_id required: %w", shared.ErrValidation)
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if d.Status != StatusDraft && d.SubmittedAt == nil {
		now := time.Now().UTC()
		d.SubmittedAt = &now
	}
	return nil
}
