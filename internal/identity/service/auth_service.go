// Package service implements the two-step password + OTP login, access token refresh and
// self-service password change.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"client-connect/backend/internal/audit"
	"client-connect/backend/internal/devotp"
	mfaservice "client-connect/backend/internal/mfa/service"
	"client-connect/backend/internal/notify"
	sessiondomain "client-connect/backend/internal/session/domain"
	sessionservice "client-connect/backend/internal/session/service"
	"client-connect/backend/internal/telemetry"
	telemetrydomain "client-connect/backend/internal/telemetry/domain"
	telemetryotel "client-connect/backend/internal/telemetry/otel"
)

// ErrNotificationFailed wraps a Notifier error during begin-login. The challenge is discarded.
var ErrNotificationFailed = errors.New("failed to deliver OTP")

const (
	otpSubject = "Your OTP Code"
	otpBodyFmt = "Your OTP code is: %s"
)

// LoginState is a step of the login protocol.
type LoginState string

const (
	StateStart         LoginState = "START"
	StatePasswordOK    LoginState = "PASSWORD_OK"
	StateOTPIssued     LoginState = "OTP_ISSUED"
	StateAuthenticated LoginState = "AUTHENTICATED"
	StateRejected      LoginState = "REJECTED"
)

// Challenges issues and redeems OTP challenges.
type Challenges interface {
	Issue(ctx context.Context, username string) (code string, expiresAt time.Time, err error)
	Verify(ctx context.Context, username, code string) error
	Discard(ctx context.Context, username string) error
}

// AccessTokens issues signed access tokens.
type AccessTokens interface {
	IssueAccess(ctx context.Context, subject string) (token string, expiresAt time.Time, err error)
}

// RefreshTokens manages the per-user refresh token.
type RefreshTokens interface {
	IssueOrRotate(ctx context.Context, username string) (*sessiondomain.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*sessiondomain.RefreshToken, error)
	VerifyExpiration(ctx context.Context, t *sessiondomain.RefreshToken) (*sessiondomain.RefreshToken, error)
}

// PasswordChanger replaces a user's password.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, username, newPassword string) error
}

// LoginChallenge is the result of BeginLogin.
type LoginChallenge struct {
	Username  string
	State     LoginState
	ExpiresAt time.Time
}

// AuthResult holds the tokens returned by CompleteLogin and Refresh.
type AuthResult struct {
	Username         string
	State            LoginState
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService composes credential verification, password ageing, OTP challenges and token issuance
// into the login and refresh protocols.
type AuthService struct {
	verifier    *CredentialVerifier
	policy      *PasswordPolicy
	challenges  Challenges
	tokens      AccessTokens
	refresh     RefreshTokens
	passwords   PasswordChanger
	notifier    notify.Notifier
	devOTPStore devotp.Store
	auditLogger audit.AuditLogger
	emitter     telemetry.EventEmitter
	metrics     *telemetryotel.AuthMetrics
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
// When devOTPStore is non-nil, codes are stored there for GET /dev/otp instead of being sent through notifier.
// A nil notifier fails every begin-login with notify.ErrNotConfigured. devOTPStore, auditLogger and logger may be nil.
func NewAuthService(
	verifier *CredentialVerifier,
	policy *PasswordPolicy,
	challenges Challenges,
	tokens AccessTokens,
	refresh RefreshTokens,
	passwords PasswordChanger,
	notifier notify.Notifier,
	devOTPStore devotp.Store,
	auditLogger audit.AuditLogger,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Disabled
	}
	return &AuthService{
		verifier:    verifier,
		policy:      policy,
		challenges:  challenges,
		tokens:      tokens,
		refresh:     refresh,
		passwords:   passwords,
		notifier:    notifier,
		devOTPStore: devOTPStore,
		auditLogger: auditLogger,
		tracer:      otel.Tracer("client-connect/identity"),
		logger:      logger.Named("auth"),
	}
}

// SetTelemetry attaches the event emitter and counters. Either may be nil.
func (s *AuthService) SetTelemetry(emitter telemetry.EventEmitter, metrics *telemetryotel.AuthMetrics) {
	s.emitter = emitter
	s.metrics = metrics
}

// BeginLogin verifies the password, enforces password age, then issues an OTP and delivers it to
// the principal's email. A delivery failure discards the challenge and fails the login.
func (s *AuthService) BeginLogin(ctx context.Context, username, password string) (_ *LoginChallenge, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.BeginLogin", trace.WithAttributes(attribute.String("auth.username", username)))
	outcome := "error"
	defer func() {
		s.finish(ctx, span, telemetrydomain.EventLoginAttempt, username, outcome, err)
		s.metrics.LoginAttempt(ctx, outcome)
	}()

	u, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			outcome = "invalid_credentials"
			s.audit(ctx, username, audit.ActionLoginFailed, "reason=invalid_credentials")
		}
		return nil, err
	}
	if err := s.policy.CheckFreshness(u); err != nil {
		outcome = "password_expired"
		s.audit(ctx, username, audit.ActionLoginFailed, "reason=password_expired")
		return nil, err
	}
	s.logger.Debug("password verified", zap.String("username", username), zap.String("state", string(StatePasswordOK)))

	code, expiresAt, err := s.challenges.Issue(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	if s.devOTPStore != nil {
		s.devOTPStore.Put(ctx, u.Username, code, expiresAt)
	} else if err := s.notifier.Send(ctx, u.Email, otpSubject, fmt.Sprintf(otpBodyFmt, code)); err != nil {
		outcome = "notify_failed"
		if derr := s.challenges.Discard(ctx, u.Username); derr != nil {
			s.logger.Warn("discard undelivered challenge", zap.String("username", username), zap.Error(derr))
		}
		return nil, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	outcome = "otp_sent"
	s.audit(ctx, u.Username, audit.ActionLoginOTPSent, "")
	return &LoginChallenge{Username: u.Username, State: StateOTPIssued, ExpiresAt: expiresAt}, nil
}

// CompleteLogin redeems the OTP and returns a fresh access token and the rotated refresh token.
// Any earlier refresh token of the user stops resolving.
func (s *AuthService) CompleteLogin(ctx context.Context, username, code string) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.CompleteLogin", trace.WithAttributes(attribute.String("auth.username", username)))
	outcome := "error"
	defer func() {
		s.finish(ctx, span, telemetrydomain.EventOTPVerification, username, outcome, err)
		s.metrics.OTPVerification(ctx, outcome)
	}()

	if err := s.challenges.Verify(ctx, username, code); err != nil {
		switch {
		case errors.Is(err, mfaservice.ErrOTPNotFound):
			outcome = "otp_not_found"
		case errors.Is(err, mfaservice.ErrOTPExpired):
			outcome = "otp_expired"
		case errors.Is(err, mfaservice.ErrOTPMismatch):
			outcome = "otp_mismatch"
		default:
			return nil, err
		}
		s.audit(ctx, username, audit.ActionLoginFailed, "reason="+outcome)
		return nil, err
	}

	access, accessExp, err := s.tokens.IssueAccess(ctx, username)
	if err != nil {
		return nil, err
	}
	rt, err := s.refresh.IssueOrRotate(ctx, username)
	if err != nil {
		return nil, err
	}

	outcome = "success"
	s.audit(ctx, username, audit.ActionLoginSuccess, "")
	return &AuthResult{
		Username:         username,
		State:            StateAuthenticated,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rt.Token,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The same refresh token is
// returned; redemption does not rotate it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	outcome := "error"
	var username string
	defer func() {
		s.finish(ctx, span, telemetrydomain.EventRefresh, username, outcome, err)
		s.metrics.Refresh(ctx, outcome)
	}()

	rt, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		outcome = "not_found"
		s.audit(ctx, "", audit.ActionRefreshFailed, "reason=not_found")
		return nil, sessionservice.ErrRefreshTokenNotFound
	}
	username = rt.Username
	rt, err = s.refresh.VerifyExpiration(ctx, rt)
	if err != nil {
		if errors.Is(err, sessionservice.ErrRefreshTokenExpired) {
			outcome = "expired"
			s.audit(ctx, username, audit.ActionRefreshFailed, "reason=expired")
		}
		return nil, err
	}

	access, accessExp, err := s.tokens.IssueAccess(ctx, username)
	if err != nil {
		return nil, err
	}
	outcome = "success"
	s.audit(ctx, username, audit.ActionTokenRefreshed, "")
	return &AuthResult{
		Username:         username,
		State:            StateAuthenticated,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// ChangePassword verifies currentPassword and sets newPassword. Password age is not enforced here
// so a principal rejected with ErrPasswordExpired can still rotate.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword", trace.WithAttributes(attribute.String("auth.username", username)))
	defer span.End()

	if _, err := s.verifier.Verify(ctx, username, currentPassword); err != nil {
		recordSpanError(span, err)
		return err
	}
	if err := s.passwords.ChangePassword(ctx, username, newPassword); err != nil {
		recordSpanError(span, err)
		return err
	}
	telemetry.EmitAsync(ctx, s.emitter, telemetrydomain.NewEvent(telemetrydomain.EventPasswordChanged, username, "success"), s.logger)
	return nil
}

func (s *AuthService) finish(ctx context.Context, span trace.Span, eventType, username, outcome string, err error) {
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		recordSpanError(span, err)
	}
	span.End()
	if outcome == "error" && err != nil {
		s.logger.Error("auth operation failed", zap.String("event_type", eventType), zap.String("username", username), zap.Error(err))
	} else {
		s.logger.Info("auth event", zap.String("event_type", eventType), zap.String("username", username), zap.String("outcome", outcome))
	}
	telemetry.EmitAsync(ctx, s.emitter, telemetrydomain.NewEvent(eventType, username, outcome), s.logger)
}

func (s *AuthService) audit(ctx context.Context, actor, action, metadata string) {
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, actor, action, audit.ResourceSession, metadata)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
