// Package handler exposes principal creation, password update and the caller's profile over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"client-connect/backend/internal/platform/httpx"
	"client-connect/backend/internal/platform/rbac"
	"client-connect/backend/internal/policy/engine"
	"client-connect/backend/internal/user/domain"
	"client-connect/backend/internal/user/service"
)

const (
	msgUserCreated     = "User created successfully"
	msgPasswordUpdated = "Password updated successfully."
	msgAdminRequired   = "Only admins can add new users into system."
)

// Principals is the principal management consumed by Handler.
type Principals interface {
	CreatePrincipal(ctx context.Context, in service.CreateInput) (*domain.User, error)
	ChangePassword(ctx context.Context, username, newPassword string) error
}

var errorMappings = []httpx.ErrorMapping{
	{Err: service.ErrAdminAlreadyExists, Status: http.StatusConflict, Code: "ADMIN_ALREADY_EXISTS"},
	{Err: service.ErrDuplicateUsername, Status: http.StatusConflict, Code: "DUPLICATE_USERNAME"},
	{Err: service.ErrRoleNotFound, Status: http.StatusBadRequest, Code: "ROLE_NOT_FOUND"},
	{Err: service.ErrPrincipalNotFound, Status: http.StatusNotFound, Code: "PRINCIPAL_NOT_FOUND"},
	{Err: service.ErrInvalidPrincipal, Status: http.StatusBadRequest, Code: httpx.CodeValidation},
	{Err: rbac.ErrUnauthenticated, Status: http.StatusUnauthorized, Code: httpx.CodeUnauth},
	{Err: rbac.ErrForbidden, Status: http.StatusForbidden, Code: httpx.CodeForbidden},
}

type createPrincipalRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=20"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8,max=20,strongpassword"`
	Roles    []string `json:"roles" validate:"required,min=1,dive,required"`
}

type updatePasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=20,strongpassword"`
}

// PrincipalResponse is the caller's profile. It never carries the password hash.
type PrincipalResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Roles           []string   `json:"roles"`
	PasswordLastSet *time.Time `json:"password_last_set,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Handler serves principal management endpoints.
type Handler struct {
	principals Principals
	users      rbac.PrincipalGetter
	policy     engine.Evaluator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewHandler returns a Handler. users is the store the caller's roles are re-read from on every request.
func NewHandler(principals Principals, users rbac.PrincipalGetter, policy engine.Evaluator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		principals: principals,
		users:      users,
		policy:     policy,
		validator:  httpx.NewValidator(),
		logger:     logger.Named("user"),
	}
}

// MountPublic attaches the bootstrap route.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/addAdmin", h.addAdmin)
}

// MountProtected attaches routes that expect an authenticated subject in the context.
func (h *Handler) MountProtected(r chi.Router) {
	r.Post("/admin/adduser", h.addUser)
	r.Put("/user/update-password", h.updatePassword)
	r.Get("/user/me", h.me)
}

func (h *Handler) addAdmin(w http.ResponseWriter, r *http.Request) {
	var req createPrincipalRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := toCreateInput(req)
	if !domain.ContainsRole(in.Roles, domain.RoleAdmin) {
		httpx.Problem(w, http.StatusBadRequest, "ADMIN_ROLE_REQUIRED", msgAdminRequired)
		return
	}
	h.create(w, r, in)
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.Authorize(r.Context(), h.policy, h.users, engine.ActionPrincipalCreate, ""); err != nil {
		h.respondError(w, err)
		return
	}
	var req createPrincipalRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.create(w, r, toCreateInput(req))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, in service.CreateInput) {
	if _, err := h.principals.CreatePrincipal(r.Context(), in); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusCreated, msgUserCreated)
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	target := strings.TrimSpace(req.Username)
	if _, err := rbac.Authorize(r.Context(), h.policy, h.users, engine.ActionPasswordUpdate, target); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.principals.ChangePassword(r.Context(), target, req.NewPassword); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, msgPasswordUpdated)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := rbac.Authorize(r.Context(), h.policy, h.users, engine.ActionPrincipalReadSelf, "")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, PrincipalResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Roles:           u.RoleStrings(),
		PasswordLastSet: u.PasswordLastSet,
		CreatedAt:       u.CreatedAt,
	})
}

func toCreateInput(req createPrincipalRequest) service.CreateInput {
	roles := make([]domain.RoleName, len(req.Roles))
	for i, r := range req.Roles {
		roles[i] = domain.RoleName(strings.ToUpper(strings.TrimSpace(r)))
	}
	return service.CreateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    roles,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, httpx.CodeValidation, httpx.ValidationDetail(err))
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrRoleNotFound) {
		// The detail names the unknown role.
		httpx.Problem(w, http.StatusBadRequest, "ROLE_NOT_FOUND", err.Error())
		return
	}
	httpx.RespondError(w, err, errorMappings, h.logger)
}
