package contract

import (
	"context"

	"github.com/meta-closure/zerot/pkg/authctx"
)

// Condition checks the current input. true passes, false is a generic
// failure, and a non-nil error is a specific failure (return an *Error to
// choose code and category).
type Condition[I any] func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error)

// Validator transforms the input. Its result replaces the input for every
// later requirement, the method, ensures and invariants. It fails by
// returning an error.
type Validator[I any] func(ctx context.Context, input I) (I, error)

// Ensures checks the method's output against the final input.
type Ensures[I, O any] func(ctx context.Context, output O, input I, ac *authctx.AuthContext) (bool, error)

// Invariant checks the (final input, output) pair after ensures.
type Invariant[I, O any] func(ctx context.Context, input I, output O) (bool, error)

type requirementKind uint8

const (
	kindCondition requirementKind = iota + 1
	kindValidator
)

// Requirement is one entry of Options.Requires: either a Condition or a
// Validator. Build it with Require or Validate.
type Requirement[I any] struct {
	kind      requirementKind
	condition Condition[I]
	validator Validator[I]
}

// Require makes a checking requirement.
func Require[I any](c Condition[I]) Requirement[I] {
	return Requirement[I]{kind: kindCondition, condition: c}
}

// Validate makes a transforming requirement.
func Validate[I any](v Validator[I]) Requirement[I] {
	return Requirement[I]{kind: kindValidator, validator: v}
}

// IsValidator reports whether r transforms input rather than checking it.
func IsValidator[I any](r Requirement[I]) bool {
	return r.kind == kindValidator && r.validator != nil
}

// Check lifts a plain predicate into a Condition.
func Check[I any](pred func(I) bool) Condition[I] {
	return func(_ context.Context, input I, _ *authctx.AuthContext) (bool, error) {
		return pred(input), nil
	}
}

// CheckOutput lifts a predicate over (output, input) into an Ensures.
func CheckOutput[I, O any](pred func(output O, input I) bool) Ensures[I, O] {
	return func(_ context.Context, output O, input I, _ *authctx.AuthContext) (bool, error) {
		return pred(output, input), nil
	}
}

// CheckPair lifts a predicate over (input, output) into an Invariant.
func CheckPair[I, O any](pred func(input I, output O) bool) Invariant[I, O] {
	return func(_ context.Context, input I, output O) (bool, error) {
		return pred(input, output), nil
	}
}

// AllOf passes when every condition passes. Conditions run in order and the
// first failure is returned unchanged.
func AllOf[I any](conds ...Condition[I]) Condition[I] {
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		for _, c := range conds {
			ok, err := c(ctx, input, ac)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// AnyOf passes when at least one condition passes. Conditions run in order
// until one passes. If none does, the last specific error is returned, or
// false when every condition simply returned false.
func AnyOf[I any](conds ...Condition[I]) Condition[I] {
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		var lastErr error
		for _, c := range conds {
			ok, err := c(ctx, input, ac)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, lastErr
	}
}

// Not inverts a condition. Errors propagate unchanged.
func Not[I any](c Condition[I]) Condition[I] {
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		ok, err := c(ctx, input, ac)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// Chain composes validators left to right.
func Chain[I any](validators ...Validator[I]) Validator[I] {
	return func(ctx context.Context, input I) (I, error) {
		current := input
		for _, v := range validators {
			next, err := v(ctx, current)
			if err != nil {
				return current, err
			}
			current = next
		}
		return current, nil
	}
}
