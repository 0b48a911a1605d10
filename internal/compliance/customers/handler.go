package customers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
)

var sortable = map[string]bool{"name": true, "code": true, "country": true, "created_at": true}

// Service handles customer business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, tenantID, filters)
}

func (s *Service) Get(ctx context.Context, tenantID, id int64) (Customer, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	if err := validate(&c); err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, c Customer) (Customer, error) {
	if err := validate(&c); err != nil {
		return Customer{}, err
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

func validate(c *Customer) error {
	c.Code = strings.TrimSpace(c.Code)
	c.Name = strings.TrimSpace(c.Name)
	if c.Code == "" || c.Name == "" {
		return fmt.Errorf("code and name required: %w", shared.ErrValidation)
	}
	return nil
}

// Handler exposes the customer endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validate: validator.New()}
}

// MountRoutes registers the /customers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:customers", "read"))
		r.Get("/customers", h.list)
		r.Get("/customers/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:customers", "write"))
		r.Post("/customers", h.create)
		r.Put("/customers/{id}", h.update)
		r.Delete("/customers/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := csh.ParseFilters(r, sortable, "name")
	items, total, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	if items == nil {
		items = []Customer{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  filters.Page,
		"limit": filters.Limit,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type customerRequest struct {
	Code    string `json:"code" validate:"required,max=50"`
	Name    string `json:"name" validate:"required,max=200"`
	Country string `json:"country" validate:"max=2"`
	Address string `json:"address" validate:"max=500"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.Create(r.Context(), Customer{
		TenantID: shared.TenantFromContext(r.Context()),
		Code:     req.Code,
		Name:     req.Name,
		Country:  req.Country,
		Address:  req.Address,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.Update(r.Context(), Customer{
		ID:       id,
		TenantID: shared.TenantFromContext(r.Context()),
		Code:     req.Code,
		Name:     req.Name,
		Country:  req.Country,
		Address:  req.Address,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.TenantFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, httpx.ValidationMessage(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid id")
		return 0, false
	}
	return id, true
}
