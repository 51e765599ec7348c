package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds the counters recorded by the login orchestrator.
type AuthMetrics struct {
	loginAttempts    metric.Int64Counter
	otpVerifications metric.Int64Counter
	refreshes        metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on provider's meter.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter(instrumentationName)
	login, err := meter.Int64Counter("auth.login.attempts", metric.WithDescription("Password login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	otp, err := meter.Int64Counter("auth.otp.verifications", metric.WithDescription("OTP verifications by outcome"))
	if err != nil {
		return nil, err
	}
	refresh, err := meter.Int64Counter("auth.refresh", metric.WithDescription("Refresh token redemptions by outcome"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{loginAttempts: login, otpVerifications: otp, refreshes: refresh}, nil
}

// LoginAttempt counts one begin-login call.
func (m *AuthMetrics) LoginAttempt(ctx context.Context, outcome string) {
	if m != nil {
		m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// OTPVerification counts one complete-login call.
func (m *AuthMetrics) OTPVerification(ctx context.Context, outcome string) {
	if m != nil {
		m.otpVerifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// Refresh counts one refresh call.
func (m *AuthMetrics) Refresh(ctx context.Context, outcome string) {
	if m != nil {
		m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
