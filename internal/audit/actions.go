package audit

// Audit actions recorded by the auth flows.
const (
	ActionLoginOTPSent     = "login_otp_sent"
	ActionLoginFailed      = "login_failed"
	ActionLoginSuccess     = "login_success"
	ActionTokenRefreshed   = "token_refreshed"
	ActionRefreshFailed    = "refresh_failed"
	ActionPasswordChanged  = "password_changed"
	ActionPrincipalCreated = "principal_created"
)

// Audit resources.
const (
	ResourceSession   = "session"
	ResourcePrincipal = "principal"
)
