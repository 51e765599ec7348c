// Package service creates principals and manages their passwords.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"client-connect/backend/internal/audit"
	"client-connect/backend/internal/notify"
	"client-connect/backend/internal/security"
	"client-connect/backend/internal/user/domain"
	"client-connect/backend/internal/user/repository"
)

// Sentinel errors for principal management; handlers map them to status codes.
var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrPrincipalNotFound = errors.New("user not found")
	ErrInvalidPrincipal  = errors.New("invalid principal")
)

const credentialsSubject = "Your Account Credentials"

// CreateInput is the request for CreatePrincipal. Password is plaintext and is never stored or logged.
type CreateInput struct {
	Username string
	Email    string
	Password string
	Roles    []domain.RoleName
}

// Service implements create-principal and change-password.
type Service struct {
	repo        repository.Repository
	guard       *AdminGuard
	hasher      *security.Hasher
	credentials notify.Notifier
	auditLogger audit.AuditLogger
	logger      *zap.Logger
	now         func() time.Time
}

// NewService returns a Service. credentials may be nil, in which case no credential mail is sent;
// auditLogger may be nil.
func NewService(repo repository.Repository, hasher *security.Hasher, credentials notify.Notifier, auditLogger audit.AuditLogger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		guard:       NewAdminGuard(repo),
		hasher:      hasher,
		credentials: credentials,
		auditLogger: auditLogger,
		logger:      logger.Named("principal"),
		now:         time.Now,
	}
}

// CreatePrincipal persists a new principal with the requested roles and mails its credentials.
// Mail delivery is best-effort: its failure is logged and the principal stays created.
func (s *Service) CreatePrincipal(ctx context.Context, in CreateInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" || len(in.Roles) == 0 {
		return nil, ErrInvalidPrincipal
	}
	if err := s.guard.CheckCanCreate(ctx, in.Roles); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	missing, err := s.repo.MissingRoles(ctx, in.Roles)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, missing[0])
	}

	now := s.now().UTC()
	u := &domain.User{
		ID:              uuid.New().String(),
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    hash,
		PasswordLastSet: &now,
		Roles:           dedupeRoles(in.Roles),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrDuplicateUsername
		case errors.Is(err, repository.ErrAdminExists):
			return nil, ErrAdminAlreadyExists
		}
		return nil, err
	}

	s.audit(ctx, u.Username, audit.ActionPrincipalCreated, "roles="+strings.Join(u.RoleStrings(), ","))
	s.logger.Info("principal created", zap.String("username", u.Username), zap.Strings("roles", u.RoleStrings()))
	s.sendCredentials(ctx, u, in.Password)
	return u, nil
}

func (s *Service) sendCredentials(ctx context.Context, u *domain.User, password string) {
	if s.credentials == nil {
		return
	}
	body := fmt.Sprintf("Username: %s\nPassword: %s", u.Username, password)
	if err := s.credentials.Send(ctx, u.Email, credentialsSubject, body); err != nil {
		s.logger.Warn("credential mail not delivered", zap.String("username", u.Username), zap.Error(err))
	}
}

// ChangePassword replaces username's password and resets its age. It does not revoke refresh tokens.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidPrincipal
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrPrincipalNotFound
	}
	return s.setPassword(ctx, u, newPassword)
}

func (s *Service) setPassword(ctx context.Context, u *domain.User, newPassword string) error {
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	ok, err := s.repo.UpdatePassword(ctx, u.ID, hash, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrPrincipalNotFound
	}
	s.audit(ctx, u.Username, audit.ActionPasswordChanged, "")
	return nil
}

func (s *Service) audit(ctx context.Context, actor, action, metadata string) {
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, actor, action, audit.ResourcePrincipal, metadata)
	}
}

// GetByUsername returns the principal or ErrPrincipalNotFound.
func (s *Service) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrPrincipalNotFound
	}
	return u, nil
}

func dedupeRoles(roles []domain.RoleName) []domain.RoleName {
	out := make([]domain.RoleName, 0, len(roles))
	for _, r := range roles {
		if !domain.ContainsRole(out, r) {
			out = append(out, r)
		}
	}
	return out
}
