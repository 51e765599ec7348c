package domain

import "time"

// AuditLog represents a security-relevant event attributed to an actor (a username, or empty
// when the actor is unknown).
type AuditLog struct {
	ID        string
	Actor     string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
