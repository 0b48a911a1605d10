package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/rbac"
)

// Handler exposes the user management endpoints.
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

// MountRoutes registers the /users routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:users", "read"))
		r.Get("/users", h.list)
		r.Get("/users/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:users", "admin"))
		r.Post("/users", h.create)
		r.Put("/users/{id}", h.update)
		r.Post("/users/{id}/activate", h.activate)
		r.Post("/users/{id}/deactivate", h.deactivate)
		r.Post("/users/{id}/super-admin", h.setSuperAdmin)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var tenantID *int64
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid tenant_id")
			return
		}
		tenantID = &id
	}
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type detailPayload struct {
	User
	Roles []rbac.UserRole `json:"roles"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	roles, err := h.service.Roles(r.Context(), id)
	if err != nil {
		h.fail(w, "list user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detailPayload{User: user, Roles: roles})
}

type createRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=1024"`
	Email        string `json:"email" validate:"required,email,max=255"`
	DisplayName  string `json:"display_name" validate:"max=200"`
	TenantID     *int64 `json:"tenant_id"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Username:     req.Username,
		Password:     req.Password,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		TenantID:     req.TenantID,
		IsSuperAdmin: req.IsSuperAdmin,
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type updateRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	DisplayName string `json:"display_name" validate:"max=200"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Update(r.Context(), User{ID: id, Email: req.Email, DisplayName: req.DisplayName})
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, false)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.SetActive(r.Context(), id, active); err != nil {
		h.fail(w, "toggle user active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type superAdminRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) setSuperAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req superAdminRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SetSuperAdmin(r.Context(), id, req.Enabled); err != nil {
		h.fail(w, "set super admin", err)
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
