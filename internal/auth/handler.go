package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/shared"
)

const sessionStateKey = "oauth_state"

// RoleLister reports the roles a subject holds in a domain.
type RoleLister interface {
	RolesOf(subject, domain string) []string
}

// Handler exposes the authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	oidc     *OIDCClient
	roles    RoleLister
	validate *validator.Validate
}

// NewHandler constructs a Handler. oidc may be nil when no identity provider
// is configured; the provider routes then answer 404.
func NewHandler(logger *slog.Logger, service *Service, oidc *OIDCClient, roles RoleLister) *Handler {
	return &Handler{logger: logger, service: service, oidc: oidc, roles: roles, validate: validator.New()}
}

// MountRoutes registers the /auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.login)
		r.With(httprate.LimitByIP(5, time.Minute)).Post("/register", h.register)
		r.Post("/logout", h.logout)
		r.With(RequireUser).Get("/me", h.me)
		r.With(RequireUser).Post("/switch-tenant", h.switchTenant)
		if h.oidc != nil {
			r.Get("/signin", h.signin)
			r.Get("/callback", h.callback)
			r.With(httprate.LimitByIP(10, time.Minute)).Post("/refresh", h.refresh)
		}
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.Rotate()
		sess.SetUser(user.ID)
		if user.TenantID != nil {
			sess.SetTenant(*user.TenantID)
		}
	}
	httpx.JSON(w, http.StatusOK, h.userPayload(user))
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	Email       string `json:"email" validate:"required,email,max=255"`
	DisplayName string `json:"display_name" validate:"max=200"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.userPayload(user))
}

// logout destroys the session if one exists. Logging out without a session
// is not an error.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Destroy()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, h.identityPayload(identity))
}

type switchTenantRequest struct {
	TenantID int64 `json:"tenant_id" validate:"required,min=1"`
}

func (h *Handler) switchTenant(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	var req switchTenantRequest
	if !h.decode(w, r, &req) {
		return
	}
	tenant, err := h.service.SwitchTenant(r.Context(), identity, req.TenantID)
	if err != nil {
		h.fail(w, "switch tenant", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetTenant(tenant.ID)
	}
	httpx.JSON(w, http.StatusOK, tenant)
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeServerError, "")
		return
	}
	state := uuid.NewString()
	sess.Set(sessionStateKey, state)
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Get(sessionStateKey) == "" || sess.Get(sessionStateKey) != r.URL.Query().Get("state") {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "state mismatch")
		return
	}
	sess.Delete(sessionStateKey)

	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "missing authorization code")
		return
	}
	claims, _, err := h.oidc.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oidc exchange", slog.Any("error", err))
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	user, err := h.service.EnsureExternalUser(r.Context(), claims)
	if err != nil {
		h.fail(w, "provision external user", err)
		return
	}
	sess.Rotate()
	sess.SetUser(user.ID)
	if user.TenantID != nil {
		sess.SetTenant(*user.TenantID)
	}
	httpx.JSON(w, http.StatusOK, h.userPayload(user))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.oidc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Warn("oidc refresh", slog.Any("error", err))
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.Expiry,
	})
}

type userPayload struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	TenantID    *int64   `json:"tenant_id"`
	Roles       []string `json:"roles"`
}

func (h *Handler) userPayload(user *User) userPayload {
	p := userPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		TenantID:    user.TenantID,
		Roles:       []string{},
	}
	domain := policy.Wildcard
	if user.TenantID != nil {
		domain = policy.Domain(*user.TenantID)
	}
	if roles := h.roles.RolesOf(policy.UserSubject(user.ID), domain); roles != nil {
		p.Roles = roles
	}
	return p
}

type identityPayload struct {
	UserID       int64    `json:"user_id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	IsSuperAdmin bool     `json:"is_super_admin"`
	TenantID     int64    `json:"tenant_id,omitempty"`
	TenantName   string   `json:"tenant_name,omitempty"`
	Roles        []string `json:"roles"`
}

func (h *Handler) identityPayload(identity *shared.Identity) identityPayload {
	p := identityPayload{
		UserID:       identity.UserID,
		Username:     identity.Username,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		IsSuperAdmin: identity.IsSuperAdmin,
		TenantID:     identity.TenantID,
		TenantName:   identity.TenantName,
		Roles:        []string{},
	}
	domain := policy.Wildcard
	if identity.TenantID != 0 {
		domain = policy.Domain(identity.TenantID)
	}
	if roles := h.roles.RolesOf(policy.UserSubject(identity.UserID), domain); roles != nil {
		p.Roles = roles
	}
	return p
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
