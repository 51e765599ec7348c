// seed creates the bootstrap administrator from BOOTSTRAP_ADMIN_USERNAME, BOOTSTRAP_ADMIN_EMAIL and
// BOOTSTRAP_ADMIN_PASSWORD. Idempotent: an existing administrator means the database is already seeded.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"client-connect/backend/internal/audit"
	auditrepo "client-connect/backend/internal/audit/repository"
	"client-connect/backend/internal/config"
	"client-connect/backend/internal/db"
	"client-connect/backend/internal/platform/logger"
	"client-connect/backend/internal/security"
	"client-connect/backend/internal/user/domain"
	userrepo "client-connect/backend/internal/user/repository"
	userservice "client-connect/backend/internal/user/service"
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

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if cfg.BootstrapAdminUsername == "" || cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		log.Fatal("BOOTSTRAP_ADMIN_USERNAME, BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil, log)
	principals := userservice.NewService(userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), nil, auditLogger, log)

	u, err := principals.CreatePrincipal(ctx, userservice.CreateInput{
		Username: cfg.BootstrapAdminUsername,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		Roles:    []domain.RoleName{domain.RoleAdmin},
	})
	switch {
	case errors.Is(err, userservice.ErrAdminAlreadyExists):
		log.Info("administrator already exists; already seeded")
	case err != nil:
		log.Fatal("seed administrator", zap.Error(err))
	default:
		log.Info("administrator created", zap.String("username", u.Username))
	}
}
