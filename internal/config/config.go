// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty the server runs on in-memory stores (development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address used by the shared OTP store and the job queue.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// JWTSecret is the HS256 signing secret: inline value, "base64:<data>" or "file:<path>".
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "30m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// RefreshSweepCron is the asynq cron spec for purging expired refresh tokens.
	RefreshSweepCron string `mapstructure:"REFRESH_SWEEP_CRON"`
	// PasswordMaxAge is how long a password stays valid after it was last set (e.g. "2160h").
	PasswordMaxAge string `mapstructure:"PASSWORD_MAX_AGE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPStore selects the OTP challenge backend: "memory" or "redis".
	OTPStore string `mapstructure:"OTP_STORE"`
	// OTPTTLRaw is the OTP challenge lifetime (e.g. "5m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts bounds wrong guesses per challenge; 0 means unlimited.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPRetentionRaw is how long an expired challenge is kept so it reports expired instead of not found.
	OTPRetentionRaw string `mapstructure:"OTP_RETENTION"`
	// OTPSweepIntervalRaw is the memory store janitor period.
	OTPSweepIntervalRaw string `mapstructure:"OTP_SWEEP_INTERVAL"`
	// OTPReturnToClient when true enables dev OTP mode: codes are recorded for GET /dev/otp instead of mailed.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// SMTPAddr is host:port of the outbound mail relay. Empty leaves the notifier unconfigured.
	SMTPAddr     string `mapstructure:"SMTP_ADDR"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// SMTPFrom is the envelope and header sender.
	SMTPFrom string `mapstructure:"SMTP_FROM"`
	// SMTPImplicitTLS selects SMTPS (port 465 style) instead of STARTTLS.
	SMTPImplicitTLS bool `mapstructure:"SMTP_IMPLICIT_TLS"`

	// LoginRateLimit is the number of requests per minute per IP on the public auth routes.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, auth events are also published to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Seed-only: bootstrap administrator created by cmd/seed.
	BootstrapAdminUsername string `mapstructure:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminEmail    string `mapstructure:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("REFRESH_SWEEP_CRON", "@every 1h")
	v.SetDefault("PASSWORD_MAX_AGE", "2160h") // 90d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_STORE", "memory")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RETENTION", "1h")
	v.SetDefault("OTP_SWEEP_INTERVAL", "1m")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("SMTP_ADDR", "")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@client-connect.local")
	v.SetDefault("SMTP_IMPLICIT_TLS", false)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "client-connect")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "client-connect-auth-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "client-connect-telemetry-worker")
	v.SetDefault("BOOTSTRAP_ADMIN_USERNAME", "")
	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	switch cfg.OTPStore {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when OTP_STORE=redis")
		}
	default:
		return nil, errors.New("config: OTP_STORE must be memory or redis")
	}
	if cfg.OTPMaxAttempts < 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must not be negative")
	}

	return &cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.Env == "development"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 30*time.Minute)
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.RefreshTokenTTL, 168*time.Hour)
}

// PasswordMaxAgeDuration returns the password age limit. Returns 90 days if unset or invalid.
func (c *Config) PasswordMaxAgeDuration() time.Duration {
	return parseDuration(c.PasswordMaxAge, 90*24*time.Hour)
}

// OTPTTL returns the OTP challenge lifetime. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseDuration(c.OTPTTLRaw, 5*time.Minute)
}

// OTPRetention returns the grace period an expired challenge is kept. Returns 1h if unset or invalid.
func (c *Config) OTPRetention() time.Duration {
	return parseDuration(c.OTPRetentionRaw, time.Hour)
}

// OTPSweepInterval returns the memory store janitor period. Returns 1m if unset or invalid.
func (c *Config) OTPSweepInterval() time.Duration {
	return parseDuration(c.OTPSweepIntervalRaw, time.Minute)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
