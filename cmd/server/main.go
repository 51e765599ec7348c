// server runs the HTTP auth API and the gRPC health service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"client-connect/backend/internal/audit"
	auditrepo "client-connect/backend/internal/audit/repository"
	"client-connect/backend/internal/config"
	"client-connect/backend/internal/db"
	"client-connect/backend/internal/devotp"
	healthhandler "client-connect/backend/internal/health/handler"
	identityhandler "client-connect/backend/internal/identity/handler"
	identityservice "client-connect/backend/internal/identity/service"
	"client-connect/backend/internal/jobs"
	mfarepo "client-connect/backend/internal/mfa/repository"
	mfaservice "client-connect/backend/internal/mfa/service"
	"client-connect/backend/internal/notify"
	"client-connect/backend/internal/platform/cache"
	"client-connect/backend/internal/platform/logger"
	"client-connect/backend/internal/policy/engine"
	"client-connect/backend/internal/security"
	"client-connect/backend/internal/server"
	sessionrepo "client-connect/backend/internal/session/repository"
	sessionservice "client-connect/backend/internal/session/service"
	"client-connect/backend/internal/telemetry"
	telemetryotel "client-connect/backend/internal/telemetry/otel"
	"client-connect/backend/internal/telemetry/producer"
	userhandler "client-connect/backend/internal/user/handler"
	userrepo "client-connect/backend/internal/user/repository"
	userservice "client-connect/backend/internal/user/service"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthWatchInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	emitters := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafka := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); kafka != nil {
		emitters = append(emitters, kafka)
		defer func() {
			time.Sleep(telemetry.ShutdownDrainDuration)
			if err := kafka.Close(); err != nil {
				log.Warn("kafka producer close", zap.Error(err))
			}
		}()
		log.Info("publishing auth events to kafka", zap.String("topic", cfg.TelemetryKafkaTopic))
	}
	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("telemetry metrics: %w", err)
	}

	// Stores.
	var (
		users       userrepo.Repository
		refreshRepo sessionrepo.Repository
		auditLogger audit.AuditLogger
		pinger      healthhandler.Pinger
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer closeDB(conn, log)
		users = userrepo.NewPostgresRepository(conn)
		refreshRepo = sessionrepo.NewPostgresRepository(conn)
		auditLogger = audit.NewLogger(auditrepo.NewPostgresRepository(conn), audit.IPFromContext, log)
		pinger = conn
	} else {
		if !cfg.IsDevelopment() {
			return errors.New("DATABASE_URL is required outside development")
		}
		log.Warn("DATABASE_URL not set; using in-memory stores")
		users = userrepo.NewMemoryRepository()
		refreshRepo = sessionrepo.NewMemoryRepository()
	}

	var otpStore mfarepo.Store
	switch cfg.OTPStore {
	case "redis":
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		otpStore = mfarepo.NewRedisStore(client, "otp:", cfg.OTPRetention())
	default:
		mem := mfarepo.NewMemoryStore(cfg.OTPRetention())
		go mem.RunJanitor(ctx, cfg.OTPSweepInterval(), func(removed int) {
			log.Debug("otp janitor", zap.Int("removed", removed))
		})
		otpStore = mem
	}

	secrets, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	tokens := security.NewTokenIssuer(secrets, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	// Notifiers.
	var smtpNotifier notify.Notifier
	if cfg.SMTPAddr != "" {
		smtpNotifier = notify.NewBreakerNotifier(notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:        cfg.SMTPAddr,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			ImplicitTLS: cfg.SMTPImplicitTLS,
		}), log)
	}
	var devStore devotp.Store
	if cfg.OTPReturnToClient && cfg.IsDevelopment() {
		devStore = devotp.NewMemoryStore()
		log.Warn("dev OTP mode enabled; codes are served from GET /dev/otp")
	}
	otpNotifier := smtpNotifier
	if otpNotifier == nil {
		otpNotifier = notify.Disabled
	}

	credentials := smtpNotifier
	if cfg.RedisAddr != "" {
		queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = queue.Close() }()
		credentials = jobs.NewQueueNotifier(queue)
	} else if credentials == nil && cfg.IsDevelopment() {
		credentials = notify.LogNotifier{Logger: log}
	}

	// Services.
	principals := userservice.NewService(users, hasher, credentials, auditLogger, log)
	refresh := sessionservice.NewManager(refreshRepo, users, cfg.RefreshTTL())
	challenges := mfaservice.NewChallengeService(otpStore, cfg.OTPTTL(), cfg.OTPMaxAttempts)
	auth := identityservice.NewAuthService(
		identityservice.NewCredentialVerifier(users, hasher),
		identityservice.NewPasswordPolicy(cfg.PasswordMaxAgeDuration()),
		challenges,
		tokens,
		refresh,
		principals,
		otpNotifier,
		devStore,
		auditLogger,
		log,
	)
	auth.SetTelemetry(emitters, metrics)

	policy, err := engine.NewOPAEvaluator(ctx, "")
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	healthH := healthhandler.NewHandler(pinger, policy, log)
	router := server.NewRouter(server.RouterDeps{
		Identity:       identityhandler.NewHandler(auth, devStore, log),
		Users:          userhandler.NewHandler(principals, users, policy, log),
		Health:         healthH,
		Tokens:         tokens,
		Logger:         log,
		LoginRateLimit: cfg.LoginRateLimit,
		Production:     cfg.Env == "production",
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	var (
		hs  *health.Server
		lis net.Listener
	)
	if cfg.GRPCAddr != "" {
		hs = health.NewServer()
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if lis != nil {
		grpcSrv := server.NewGRPCServer(hs)
		g.Go(func() error {
			healthH.Watch(gctx, hs, healthWatchInterval)
			return nil
		})
		g.Go(func() error {
			log.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down grpc server")
			grpcSrv.GracefulStop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func closeDB(conn *sql.DB, log *zap.Logger) {
	if err := conn.Close(); err != nil {
		log.Warn("db close", zap.Error(err))
	}
}
