// worker runs the asynq background jobs: credential mail delivery (mail:send) and the periodic
// purge of expired refresh tokens (refresh:sweep). Requires REDIS_ADDR; the sweep also needs DATABASE_URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"client-connect/backend/internal/config"
	"client-connect/backend/internal/db"
	"client-connect/backend/internal/jobs"
	"client-connect/backend/internal/notify"
	"client-connect/backend/internal/platform/logger"
	sessionrepo "client-connect/backend/internal/session/repository"
	sessionservice "client-connect/backend/internal/session/service"
	userrepo "client-connect/backend/internal/user/repository"
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

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mailer notify.Notifier = notify.Disabled
	if cfg.SMTPAddr != "" {
		mailer = notify.NewBreakerNotifier(notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:        cfg.SMTPAddr,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			ImplicitTLS: cfg.SMTPImplicitTLS,
		}), log)
	} else {
		log.Warn("SMTP_ADDR not set; mail:send tasks will be dropped")
	}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailJob(mailer, log).Handle},
	}
	var cron []jobs.CronRegistration

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db", zap.Error(err))
		}
		defer conn.Close()
		manager := sessionservice.NewManager(sessionrepo.NewPostgresRepository(conn), userrepo.NewPostgresRepository(conn), cfg.RefreshTTL())
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskTypeRefreshSweep,
			Handler: jobs.NewRefreshSweepJob(manager, log).Handle,
		})
		cron = append(cron, jobs.CronRegistration{Spec: cfg.RefreshSweepCron, Task: jobs.NewRefreshSweepTask()})
	} else {
		log.Warn("DATABASE_URL not set; refresh:sweep disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    log,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		log.Fatal("worker", zap.Error(err))
	}
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("worker stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
