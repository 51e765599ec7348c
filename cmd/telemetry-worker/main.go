// telemetry-worker consumes auth events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"client-connect/backend/internal/config"
	"client-connect/backend/internal/platform/logger"
	"client-connect/backend/internal/telemetry/loki"
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
	log = log.Named("telemetry-worker")

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := loki.NewClient(cfg.LokiURL)
	log.Info("consuming",
		zap.String("topic", cfg.TelemetryKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL),
	)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("stopped")
				return
			}
			log.Warn("kafka read failed", zap.Error(err))
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.PushEventJSON(pushCtx, msg.Value); err != nil {
			log.Warn("loki push failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		cancel()
	}
}
