// Package security provides authorization policies evaluated against the
// authenticated actor.
package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"stockflow/internal/core/apperror"
)

// DefaultTransitionPolicy lets only managers and admins finish, fail or
// cancel a document. Every other move is open to any authenticated actor.
const DefaultTransitionPolicy = `!(to in ["done", "failed", "canceled"]) || role in ["manager", "admin"]`

// TransitionRequest describes a requested status change.
type TransitionRequest struct {
	ActorID string
	Role    string
	Kind    string
	From    string
	To      string
}

func (r TransitionRequest) vars() map[string]any {
	return map[string]any{
		"actor": r.ActorID,
		"role":  r.Role,
		"kind":  r.Kind,
		"from":  r.From,
		"to":    r.To,
	}
}

// TransitionPolicy decides whether an actor may request a status change.
type TransitionPolicy interface {
	// Authorize returns a forbidden error when the request is denied.
	Authorize(ctx context.Context, req TransitionRequest) error
}

// CELPolicy evaluates a boolean CEL expression over the variables actor,
// role, kind, from and to (all strings).
type CELPolicy struct {
	expr    string
	program cel.Program
}

// NewCELPolicy compiles expr. An empty expr selects DefaultTransitionPolicy.
func NewCELPolicy(expr string) (*CELPolicy, error) {
	if expr == "" {
		expr = DefaultTransitionPolicy
	}

	env, err := cel.NewEnv(
		cel.Variable("actor", cel.StringType),
		cel.Variable("role", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("from", cel.StringType),
		cel.Variable("to", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile transition policy: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("transition policy must be boolean, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build transition policy: %w", err)
	}
	return &CELPolicy{expr: expr, program: program}, nil
}

// Expression returns the source of the policy.
func (p *CELPolicy) Expression() string { return p.expr }

func (p *CELPolicy) Authorize(ctx context.Context, req TransitionRequest) error {
	out, _, err := p.program.ContextEval(ctx, req.vars())
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate transition policy: %w", err))
	}
	if allowed, ok := out.Value().(bool); ok && allowed {
		return nil
	}
	return apperror.NewForbidden(fmt.Sprintf("role %q may not move a %s from %s to %s", req.Role, req.Kind, req.From, req.To)).
		WithDetail("from", req.From).
		WithDetail("to", req.To)
}

// OpenPolicy allows every transition (development and tests).
type OpenPolicy struct{}

func (OpenPolicy) Authorize(context.Context, TransitionRequest) error { return nil }
