// Package policy evaluates access policy for inbound messaging events.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions the policy can return.
const (
	DecisionAllow  = "allow"
	DecisionIgnore = "ignore"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.relay_access.decision"),
		rego.Module("relay_access.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the access policy. Input carries chat_type, sender_id and
// allowed_senders. An event that does not evaluate to "allow" is ignored.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionIgnore, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionIgnore, nil
}

// DefaultPolicy admits private chats only. An empty allowlist admits every
// sender; a non-empty one restricts to its members.
const DefaultPolicy = `
package relay_access

import rego.v1

default decision := "ignore"

decision := "allow" if {
	input.chat_type == "private"
	count(input.allowed_senders) == 0
}

decision := "allow" if {
	input.chat_type == "private"
	input.sender_id in input.allowed_senders
}
`
