package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTAccessTTL != "30m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "30m")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPStore != "memory" {
		t.Errorf("OTPStore = %q, want memory", cfg.OTPStore)
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Errorf("OTPMaxAttempts = %d, want 5", cfg.OTPMaxAttempts)
	}
	if cfg.LoginRateLimit != 10 {
		t.Errorf("LoginRateLimit = %d, want 10", cfg.LoginRateLimit)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", cfg.AccessTTL())
	}
	if cfg.PasswordMaxAgeDuration() != 90*24*time.Hour {
		t.Errorf("PasswordMaxAgeDuration = %v, want 90 days", cfg.PasswordMaxAgeDuration())
	}
	if cfg.OTPTTL() != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", cfg.OTPTTL())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9999")
	os.Setenv("JWT_ACCESS_TTL", "10m")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("SMTP_IMPLICIT_TLS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9999")
	}
	if cfg.AccessTTL() != 10*time.Minute {
		t.Errorf("AccessTTL = %v, want 10m", cfg.AccessTTL())
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if !cfg.SMTPImplicitTLS {
		t.Error("SMTPImplicitTLS should be true")
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production guard message", err.Error())
	}
}

func TestLoad_OTPReturnToClientDevelopment(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment should be true")
	}
}

func TestLoad_OTPStore(t *testing.T) {
	testCases := []struct {
		name  string
		store string
		redis string
		err   bool
	}{
		{"memory", "memory", "", false},
		{"redis with addr", "redis", "localhost:6379", false},
		{"redis without addr", "redis", "", true},
		{"unknown", "etcd", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("OTP_STORE", tc.store)
			if tc.redis != "" {
				os.Setenv("REDIS_ADDR", tc.redis)
			}
			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_NegativeOTPMaxAttempts(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_MAX_ATTEMPTS", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject negative OTP_MAX_ATTEMPTS")
	}
}

func TestDurations_InvalidFallBack(t *testing.T) {
	cfg := &Config{
		JWTAccessTTL:        "invalid",
		RefreshTokenTTL:     "0",
		PasswordMaxAge:      "-1h",
		OTPTTLRaw:           "",
		OTPRetentionRaw:     "x",
		OTPSweepIntervalRaw: "0s",
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", got)
	}
	if got := cfg.PasswordMaxAgeDuration(); got != 2160*time.Hour {
		t.Errorf("PasswordMaxAgeDuration = %v, want 2160h", got)
	}
	if got := cfg.OTPTTL(); got != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", got)
	}
	if got := cfg.OTPRetention(); got != time.Hour {
		t.Errorf("OTPRetention = %v, want 1h", got)
	}
	if got := cfg.OTPSweepInterval(); got != time.Minute {
		t.Errorf("OTPSweepInterval = %v, want 1m", got)
	}
}

func TestRefreshTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("REFRESH_TOKEN_TTL", "336h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", ttl, 14*24*time.Hour)
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("TelemetryKafkaBrokersList = %v, want [a:9092 b:9092]", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
