// Package engine evaluates access decisions for authenticated requests.
package engine

import "context"

// Actions checked by the HTTP layer.
const (
	ActionPrincipalCreate   = "principal.create"
	ActionPasswordUpdate    = "password.update"
	ActionPrincipalReadSelf = "principal.read_self"
)

// Input is the subject, its roles and the target of an action.
type Input struct {
	Action  string
	Subject string
	Roles   []string
	// Target is the username the action applies to, when there is one.
	Target string
}

// Evaluator decides whether an action is allowed.
type Evaluator interface {
	Allow(ctx context.Context, in Input) (bool, error)
}
