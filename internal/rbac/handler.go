package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/verdantis/verdantis/internal/platform/httpx"
)

// ResyncEnqueuer schedules an asynchronous policy rebuild on the job queue.
type ResyncEnqueuer interface {
	EnqueuePolicyResync(ctx context.Context) error
}

// Handler exposes the administrative RBAC endpoints. All routes sit behind
// the authorization middleware for the matching api resource.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       Middleware
	resync   ResyncEnqueuer
	validate *validator.Validate
}

// NewHandler constructs a Handler. resync may be nil; the resync endpoint
// then rebuilds the policy set inline instead of queueing it.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware, resync ResyncEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, resync: resync, validate: validator.New()}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:roles", "read"))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}", h.getRole)
		r.Get("/roles/{id}/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:roles", "admin"))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Post("/permissions", h.createPermission)
		r.Delete("/permissions/{id}", h.deletePermission)
		r.Post("/user-roles", h.assignRole)
		r.Delete("/user-roles", h.unassignRole)
		r.Post("/policy/resync", h.resyncPolicies)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:resources", "read"))
		r.Get("/resources", h.listResources)
		r.Get("/actions", h.listActions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require("api:resources", "admin"))
		r.Post("/resources", h.createResource)
		r.Delete("/resources/{id}", h.deleteResource)
		r.Post("/actions", h.createAction)
		r.Delete("/actions/{id}", h.deleteAction)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type roleRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	DisplayName  string `json:"display_name" validate:"max=200"`
	Description  string `json:"description" validate:"max=1000"`
	TenantID     *int64 `json:"tenant_id"`
	ParentRoleID *int64 `json:"parent_role_id"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), Role{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		TenantID:     req.TenantID,
		ParentRoleID: req.ParentRoleID,
	})
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), Role{
		ID:           id,
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		ParentRoleID: req.ParentRoleID,
	})
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.ListResources(r.Context())
	if err != nil {
		h.fail(w, "list resources", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resources)
}

type resourceRequest struct {
	Type        string `json:"type" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	DisplayName string `json:"display_name" validate:"max=200"`
	Description string `json:"description" validate:"max=1000"`
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.CreateResource(r.Context(), Resource{
		Type:        req.Type,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "create resource", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteResource(r.Context(), id); err != nil {
		h.fail(w, "delete resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.ListActions(r.Context())
	if err != nil {
		h.fail(w, "list actions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, actions)
}

type actionRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	DisplayName string `json:"display_name" validate:"max=200"`
	Description string `json:"description" validate:"max=1000"`
}

func (h *Handler) createAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !h.decode(w, r, &req) {
		return
	}
	act, err := h.service.CreateAction(r.Context(), Action{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "create action", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, act)
}

func (h *Handler) deleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAction(r.Context(), id); err != nil {
		h.fail(w, "delete action", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.ListPermissions(r.Context(), id)
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type permissionRequest struct {
	RoleID     int64  `json:"role_id" validate:"required"`
	ResourceID int64  `json:"resource_id" validate:"required"`
	ActionID   int64  `json:"action_id" validate:"required"`
	TenantID   *int64 `json:"tenant_id"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), Permission{
		RoleID:     req.RoleID,
		ResourceID: req.ResourceID,
		ActionID:   req.ActionID,
		TenantID:   req.TenantID,
	})
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userRoleRequest struct {
	UserID   int64 `json:"user_id" validate:"required"`
	RoleID   int64 `json:"role_id" validate:"required"`
	TenantID int64 `json:"tenant_id" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req userRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), UserRole(req)); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassignRole(w http.ResponseWriter, r *http.Request) {
	var req userRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UnassignRole(r.Context(), UserRole(req)); err != nil {
		h.fail(w, "unassign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resyncPolicies(w http.ResponseWriter, r *http.Request) {
	if h.resync != nil {
		if err := h.resync.EnqueuePolicyResync(r.Context()); err != nil {
			h.fail(w, "enqueue policy resync", err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	if err := h.service.Resync(r.Context()); err != nil {
		h.fail(w, "policy resync", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
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
