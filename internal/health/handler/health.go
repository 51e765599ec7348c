// Package handler serves liveness and readiness over HTTP and mirrors readiness into the gRPC
// health service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"client-connect/backend/internal/platform/httpx"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "clientconnect.auth"

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler runs readiness checks. Nil dependencies are skipped.
type Handler struct {
	pinger        Pinger
	policyChecker PolicyChecker
	timeout       time.Duration
	logger        *zap.Logger
}

// NewHandler returns a Handler. pinger and policyChecker may be nil.
func NewHandler(pinger Pinger, policyChecker PolicyChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pinger:        pinger,
		policyChecker: policyChecker,
		timeout:       2 * time.Second,
		logger:        logger.Named("health"),
	}
}

// MountRoutes attaches /healthz and /readyz.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/healthz", h.live)
	r.Get("/readyz", h.ready)
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.Check(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Checks: checks})
		return
	}
	httpx.JSON(w, http.StatusOK, statusResponse{Status: "ok", Checks: checks})
}

// Check runs every configured check and reports per-check results and whether all passed.
func (h *Handler) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	checks := make(map[string]string, 2)
	ok := true
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			h.logger.Warn("database not ready", zap.Error(err))
			checks["database"] = "unavailable"
			ok = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policyChecker != nil {
		if err := h.policyChecker.HealthCheck(ctx); err != nil {
			h.logger.Warn("policy engine not ready", zap.Error(err))
			checks["policy"] = "unavailable"
			ok = false
		} else {
			checks["policy"] = "ok"
		}
	}
	return checks, ok
}

// Watch sets the serving status of hs from Check every interval until ctx is done, then marks it
// NOT_SERVING.
func (h *Handler) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if _, ok := h.Check(ctx); !ok {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}
	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
