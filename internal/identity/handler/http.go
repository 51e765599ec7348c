// Package handler exposes login, OTP verification, token refresh and password change over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"client-connect/backend/internal/devotp"
	"client-connect/backend/internal/identity/service"
	mfaservice "client-connect/backend/internal/mfa/service"
	"client-connect/backend/internal/platform/httpx"
	"client-connect/backend/internal/security"
	sessionservice "client-connect/backend/internal/session/service"
	userservice "client-connect/backend/internal/user/service"
)

// Response messages.
const (
	msgOTPSent         = "OTP has been sent to your email."
	msgTokensCreated   = "Access Token and Refresh Token are created"
	msgTokenRefreshed  = "New Access Token has been generated."
	msgPasswordChanged = "Password changed successfully"
)

// Authenticator is the login protocol consumed by Handler.
type Authenticator interface {
	BeginLogin(ctx context.Context, username, password string) (*service.LoginChallenge, error)
	CompleteLogin(ctx context.Context, username, code string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error
}

// errorMappings are the failure kinds this handler reports.
var errorMappings = []httpx.ErrorMapping{
	{Err: service.ErrInvalidCredentials, Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS"},
	{Err: service.ErrPasswordExpired, Status: http.StatusForbidden, Code: "PASSWORD_EXPIRED"},
	{Err: service.ErrNotificationFailed, Status: http.StatusBadGateway, Code: "NOTIFICATION_FAILED"},
	{Err: mfaservice.ErrOTPNotFound, Status: http.StatusBadRequest, Code: "OTP_NOT_FOUND"},
	{Err: mfaservice.ErrOTPExpired, Status: http.StatusBadRequest, Code: "OTP_EXPIRED"},
	{Err: mfaservice.ErrOTPMismatch, Status: http.StatusUnauthorized, Code: "OTP_MISMATCH"},
	{Err: sessionservice.ErrRefreshTokenNotFound, Status: http.StatusUnauthorized, Code: "REFRESH_TOKEN_NOT_FOUND"},
	{Err: sessionservice.ErrRefreshTokenExpired, Status: http.StatusUnauthorized, Code: "REFRESH_TOKEN_EXPIRED"},
	{Err: security.ErrTokenInvalid, Status: http.StatusUnauthorized, Code: "TOKEN_INVALID"},
	{Err: security.ErrTokenExpired, Status: http.StatusUnauthorized, Code: "TOKEN_EXPIRED"},
	{Err: userservice.ErrPrincipalNotFound, Status: http.StatusNotFound, Code: "PRINCIPAL_NOT_FOUND"},
	{Err: userservice.ErrInvalidPrincipal, Status: http.StatusBadRequest, Code: httpx.CodeValidation},
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyOTPRequest struct {
	Username string `json:"username" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
}

type refreshRequest struct {
	Token string `json:"token" validate:"required"`
}

type changePasswordRequest struct {
	Username        string `json:"username" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=20,strongpassword"`
}

// TokenResponse is returned by /verify-otp and /refreshToken.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Message      string `json:"message"`
}

type devOTPResponse struct {
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler serves the public authentication endpoints.
type Handler struct {
	auth      Authenticator
	devOTP    devotp.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHandler returns a Handler. devOTP is non-nil only in dev OTP mode; it enables GET /dev/otp.
func NewHandler(auth Authenticator, devOTP devotp.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		auth:      auth,
		devOTP:    devOTP,
		validator: httpx.NewValidator(),
		logger:    logger.Named("identity"),
	}
}

// MountRoutes attaches the public auth routes. limit wraps the credential endpoints (nil for none).
func (h *Handler) MountRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/login", h.login)
		r.Post("/verify-otp", h.verifyOTP)
		r.Post("/refreshToken", h.refresh)
		r.Put("/change-password", h.changePassword)
	})
	if h.devOTP != nil {
		r.Get("/dev/otp", h.getDevOTP)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.auth.BeginLogin(r.Context(), strings.TrimSpace(req.Username), req.Password); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, msgOTPSent)
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.CompleteLogin(r.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.OTP))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Message:      msgTokensCreated,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.Refresh(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Message:      msgTokenRefreshed,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), strings.TrimSpace(req.Username), req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, msgPasswordChanged)
}

func (h *Handler) getDevOTP(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		httpx.Problem(w, http.StatusBadRequest, httpx.CodeValidation, "username is required")
		return
	}
	otp, expiresAt, ok := h.devOTP.Get(r.Context(), username)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "OTP_NOT_FOUND", "no OTP for this user")
		return
	}
	httpx.JSON(w, http.StatusOK, devOTPResponse{OTP: otp, ExpiresAt: expiresAt})
}

// decode reads and validates the body into dst. It writes a 400 problem and returns false on failure.
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
	httpx.RespondError(w, err, errorMappings, h.logger)
}
