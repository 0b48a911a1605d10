package assessments

import (
	"context"
	"encoding/json"
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

var sortable = map[string]bool{"counterparty": true, "risk_level": true, "created_at": true}

// Service handles assessment business logic.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Assessment, int, error) {
	return s.repo.List(ctx, tenantID, filters)
}

func (s *Service) Get(ctx context.Context, tenantID, id int64) (Assessment, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) Create(ctx context.Context, a Assessment) (Assessment, error) {
	if err := validate(&a); err != nil {
		return Assessment{}, err
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Update(ctx context.Context, a Assessment) (Assessment, error) {
	if err := validate(&a); err != nil {
		return Assessment{}, err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

func validate(a *Assessment) error {
	a.Counterparty = strings.TrimSpace(a.Counterparty)
	if a.Counterparty == "" {
		return fmt.Errorf("counterparty required: %w", shared.ErrValidation)
	}
	if len(a.Answers) == 0 {
		a.Answers = json.RawMessage(`{}`)
	}
	return nil
}

// Handler exposes the assessment endpoints.
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

// MountRoutes registers the /assessments routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:assessments", "read"))
		r.Get("/assessments", h.list)
		r.Get("/assessments/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:assessments", "write"))
		r.Post("/assessments", h.create)
		r.Put("/assessments/{id}", h.update)
		r.Delete("/assessments/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := csh.ParseFilters(r, sortable, "created_at")
	items, total, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "list assessments", err)
		return
	}
	if items == nil {
		items = []Assessment{}
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
	a, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get assessment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

type assessmentRequest struct {
	Counterparty string          `json:"counterparty" validate:"required,max=200"`
	Answers      json.RawMessage `json:"answers"`
	RiskLevel    string          `json:"risk_level" validate:"omitempty,oneof=low medium high"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.Create(r.Context(), Assessment{
		TenantID:     shared.TenantFromContext(r.Context()),
		Counterparty: req.Counterparty,
		Answers:      req.Answers,
		RiskLevel:    req.RiskLevel,
	})
	if err != nil {
		h.fail(w, "create assessment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assessmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.Update(r.Context(), Assessment{
		ID:           id,
		TenantID:     shared.TenantFromContext(r.Context()),
		Counterparty: req.Counterparty,
		Answers:      req.Answers,
		RiskLevel:    req.RiskLevel,
	})
	if err != nil {
		h.fail(w, "update assessment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.TenantFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete assessment", err)
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
