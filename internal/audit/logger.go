// Package audit records security-relevant events to the audit_logs table.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"client-connect/backend/internal/audit/domain"
	auditrepo "client-connect/backend/internal/audit/repository"
)

// UnknownIP is recorded when the client address is not available.
const UnknownIP = "unknown"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actor, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log.Named("audit"), now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actor, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := UnknownIP
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("failed to log event", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}

type ipKey struct{}

// WithClientIP returns ctx carrying ip for IPFromContext.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// IPFromContext is an IPExtractor reading the value stored by WithClientIP.
func IPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}

// ClientIP returns the request's remote host. Proxy headers are expected to have been applied to
// RemoteAddr by middleware (chi's RealIP) before this runs.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Middleware stores the client IP of each request in its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIP(r))))
	})
}
