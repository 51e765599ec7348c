package engine

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.clientconnect.authz.allow"

//go:embed authz.rego
var defaultRegoPolicy string

// OPAEvaluator evaluates the embedded Rego authorization policy.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (the embedded default when empty) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates the policy for in. An undefined result is a deny.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	roles := make([]interface{}, len(in.Roles))
	for i, r := range in.Roles {
		roles[i] = r
	}
	input := map[string]interface{}{
		"action":  in.Action,
		"subject": in.Subject,
		"roles":   roles,
		"target":  in.Target,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("policy: eval: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck evaluates a request the policy must deny and one it must allow.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	ok, err := e.Allow(ctx, Input{Action: ActionPrincipalReadSelf, Subject: "healthcheck"})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy: health check request denied")
	}
	if ok, err = e.Allow(ctx, Input{Action: ActionPrincipalCreate}); err != nil || ok {
		return fmt.Errorf("policy: anonymous create allowed (err=%v)", err)
	}
	return nil
}
