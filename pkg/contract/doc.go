// Package contract wraps methods with declarative preconditions,
// postconditions and invariants, plus a bounded retry policy.
//
// A wrapped method evaluates, in order:
//   - Requires: conditions and validators. Validators transform the input seen
//     by every later requirement, by the method and by the later phases.
//   - The method itself.
//   - Ensures: checks of the output against the final input and auth context.
//   - Invariants: checks of the (final input, output) pair.
//
// Every failure leaves the wrapped method as exactly one *ViolationError that
// records the contract name, the layer tag and the original cause. Retries are
// decided by the cause's classification: its recoverable flag or membership of
// its category in Policy.RetryOn.
//
// Example:
//
//	engine := contract.NewEngine(contract.WithResolver(authctx.ContextResolver()))
//	update := contract.Wrap(engine, contract.Options[Req, Resp]{
//		Name:     "Profiles.Update",
//		Requires: []contract.Requirement[Req]{
//			contract.Require(conditions.Authenticated[Req]()),
//			contract.Validate(normalize),
//		},
//		Policy: contract.Policy{Layer: contract.LayerAction, RetryAttempts: 2},
//	}, svc.update)
package contract
