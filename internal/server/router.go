// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"client-connect/backend/internal/audit"
	healthhandler "client-connect/backend/internal/health/handler"
	identityhandler "client-connect/backend/internal/identity/handler"
	"client-connect/backend/internal/platform/httpx"
	"client-connect/backend/internal/server/interceptors"
	userhandler "client-connect/backend/internal/user/handler"
)

// RouterDeps holds the handlers and settings for NewRouter.
type RouterDeps struct {
	Identity *identityhandler.Handler
	Users    *userhandler.Handler
	Health   *healthhandler.Handler
	// Tokens validates bearer tokens on protected routes.
	Tokens interceptors.TokenValidator
	Logger *zap.Logger
	// LoginRateLimit is requests per minute per client IP on the credential endpoints; 0 disables it.
	LoginRateLimit int
	// RequestTimeout bounds each request; 0 means 30s.
	RequestTimeout time.Duration
	// Production enables HTTPS redirects and HSTS.
	Production bool
}

// NewRouter returns the HTTP API with the shared middleware stack.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           d.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            stsSeconds(d.Production),
		STSIncludeSubdomains:  d.Production,
		IsDevelopment:         !d.Production,
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		interceptors.AccessLog(logger, map[string]bool{"/healthz": true, "/readyz": true}),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", zap.Error(err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		audit.Middleware,
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "NOT_FOUND", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
	})

	if d.Health != nil {
		d.Health.MountRoutes(r)
	}

	var limit func(http.Handler) http.Handler
	if d.LoginRateLimit > 0 {
		limit = httprate.Limit(d.LoginRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			}),
		)
	}
	if d.Identity != nil {
		d.Identity.MountRoutes(r, limit)
	}
	if d.Users != nil {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			d.Users.MountPublic(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(interceptors.RequireBearer(d.Tokens, logger))
			d.Users.MountProtected(r)
		})
	}

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
	)
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}
