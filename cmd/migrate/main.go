// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"client-connect/backend/internal/config"
	"client-connect/backend/internal/db/migrate"
	"client-connect/backend/internal/platform/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	status := flag.Bool("status", false, "Print the current schema version and exit")
	flag.Parse()

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

	if *status {
		version, dirty, err := migrate.Status(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("migrate status", zap.Error(err))
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Fatal("migrate", zap.String("direction", *direction), zap.Error(err))
	}
	version, dirty, err := migrate.Status(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("migrate status", zap.Error(err))
	}
	log.Info("migrations applied", zap.String("direction", *direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
}
