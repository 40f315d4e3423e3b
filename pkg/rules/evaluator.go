// Package rules evaluates business rules written in CEL against a call's
// input, output and caller.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/meta-closure/zerot/pkg/authctx"
)

// DefaultCostLimit bounds the work a single rule may do.
const DefaultCostLimit = 10000

// Vars are the values a rule can reference.
type Vars struct {
	Input  any
	Output any
	Auth   *authctx.AuthContext
}

// Evaluator compiles rules once and caches the programs.
type Evaluator struct {
	env       *cel.Env
	costLimit uint64
	now       func() time.Time

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCostLimit overrides DefaultCostLimit.
func WithCostLimit(limit uint64) Option {
	return func(e *Evaluator) { e.costLimit = limit }
}

// WithClock sets the source of the `now` variable.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator exposing input, output, user, session and now.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		cel.Variable("output", cel.DynType),
		cel.Variable("user", cel.DynType),
		cel.Variable("session", cel.DynType),
		cel.Variable("now", cel.TimestampType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Evaluator{
		env:       env,
		costLimit: DefaultCostLimit,
		now:       time.Now,
		prgCache:  make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compile checks expr and caches its program. It reports type errors before
// the rule is ever evaluated.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against vars. The result must be a bool.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, vars Vars) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	activation, err := e.activation(vars)
	if err != nil {
		return false, err
	}

	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expr, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q: result not bool (%s)", expr, out.Type().TypeName())
	}
	return val, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("rule %q: must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(e.costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}

func (e *Evaluator) activation(vars Vars) (map[string]any, error) {
	input, err := toValue(vars.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	output, err := toValue(vars.Output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	user := map[string]any{"id": "", "email": "", "roles": []any{}, "attributes": map[string]any{}}
	session := map[string]any{"id": "", "expired": true}
	if ac := vars.Auth; ac.Authenticated() {
		user["id"] = ac.User.ID
		user["email"] = ac.User.Email
		roles := make([]any, len(ac.User.Roles))
		for i, r := range ac.User.Roles {
			roles[i] = r
		}
		user["roles"] = roles
		if ac.User.Attributes != nil {
			if user["attributes"], err = toValue(ac.User.Attributes); err != nil {
				return nil, fmt.Errorf("user attributes: %w", err)
			}
		}
	}
	now := e.now()
	if ac := vars.Auth; ac != nil && ac.Session != nil {
		session["id"] = ac.Session.ID
		session["expired"] = ac.Session.Expired(now)
	}

	return map[string]any{
		"input":   input,
		"output":  output,
		"user":    user,
		"session": session,
		"now":     now,
	}, nil
}

// toValue converts v into plain maps, slices and scalars through its JSON
// form so struct fields are addressed by their JSON names.
func toValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
