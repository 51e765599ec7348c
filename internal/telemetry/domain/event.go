package domain

import "time"

// Event types emitted by the auth flows.
const (
	EventLoginAttempt     = "auth.login.attempt"
	EventOTPVerification  = "auth.otp.verification"
	EventRefresh          = "auth.refresh"
	EventPasswordChanged  = "auth.password.changed"
	EventPrincipalCreated = "auth.principal.created"
)

// Source is the value of Event.Source for events produced by this service.
const Source = "client-connect-auth"

// Event is an auth telemetry event. It is serialized as JSON for Kafka and Loki; the Username is
// included but secrets (passwords, codes, tokens) never are.
type Event struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Username  string            `json:"username,omitempty"`
	Outcome   string            `json:"outcome"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent returns an event stamped with Source and the current UTC time.
func NewEvent(eventType, username, outcome string) *Event {
	return &Event{
		EventType: eventType,
		Source:    Source,
		Username:  username,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
}
