package conditions

import (
	"context"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
	"github.com/meta-closure/zerot/pkg/rules"
)

func ruleViolation(expr string) *contract.Error {
	return contract.NewError("business rule not satisfied: "+expr,
		contract.WithCode(contract.CodeBusinessRuleViolation),
		contract.WithCategory(contract.CategoryBusinessLogic),
		contract.WithDetails(map[string]any{"rule": expr}))
}

// Rule requires the CEL expression expr to hold over input, user and session.
// The expression is compiled up front.
func Rule[I any](ev *rules.Evaluator, expr string) (contract.Condition[I], error) {
	if err := ev.Compile(expr); err != nil {
		return nil, err
	}
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		ok, err := ev.Evaluate(ctx, expr, rules.Vars{Input: input, Auth: ac})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ruleViolation(expr)
		}
		return true, nil
	}, nil
}

// OutputRule is Rule as a postcondition; expr may also reference output.
func OutputRule[I, O any](ev *rules.Evaluator, expr string) (contract.Ensures[I, O], error) {
	if err := ev.Compile(expr); err != nil {
		return nil, err
	}
	return func(ctx context.Context, output O, input I, ac *authctx.AuthContext) (bool, error) {
		ok, err := ev.Evaluate(ctx, expr, rules.Vars{Input: input, Output: output, Auth: ac})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ruleViolation(expr)
		}
		return true, nil
	}, nil
}
