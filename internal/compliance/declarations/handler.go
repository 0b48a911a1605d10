package declarations

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
)

var sortable = map[string]bool{"reference": true, "status": true, "submitted_at": true, "created_at": true}

// Handler exposes the declaration endpoints.
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

// MountRoutes registers the /declarations routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:declarations", "read"))
		r.Get("/declarations", h.list)
		r.Get("/declarations/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:declarations", "write"))
		r.Post("/declarations", h.create)
		r.Put("/declarations/{id}", h.update)
		r.Delete("/declarations/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := csh.ParseFilters(r, sortable, "created_at")
	items, total, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "list declarations", err)
		return
	}
	if items == nil {
		items = []Declaration{}
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
	d, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

type declarationRequest struct {
	Reference   string     `json:"reference" validate:"required,max=100"`
	SupplierID  int64      `json:"supplier_id" validate:"required,min=1"`
	Commodity   string     `json:"commodity" validate:"max=100"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft submitted verified rejected"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req declarationRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.Create(r.Context(), Declaration{
		TenantID:    shared.TenantFromContext(r.Context()),
		Reference:   req.Reference,
		SupplierID:  req.SupplierID,
		Commodity:   req.Commodity,
		Status:      req.Status,
		SubmittedAt: req.SubmittedAt,
	})
	if err != nil {
		h.fail(w, "create declaration", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req declarationRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.Update(r.Context(), Declaration{
		ID:          id,
		TenantID:    shared.TenantFromContext(r.Context()),
		Reference:   req.Reference,
		SupplierID:  req.SupplierID,
		Commodity:   req.Commodity,
		Status:      req.Status,
		SubmittedAt: req.SubmittedAt,
	})
	if err != nil {
		h.fail(w, "update declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.TenantFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete declaration", err)
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
