package conditions

import (
	"context"

	"github.com/meta-closure/zerot/pkg/audit"
	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
)

// Audit records an event for every call that reaches it and then passes.
// A failing sink yields a recoverable SYSTEM error.
func Audit[I any](logger audit.Logger, eventType audit.EventType, action string) contract.Condition[I] {
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		evt := audit.NewEvent(ctx, ac, eventType, action, nil)
		if digest, err := audit.InputDigest(input); err != nil {
			// Still record the call; the event says why it has no digest.
			evt.Metadata = map[string]any{"input_digest_error": err.Error()}
		} else {
			evt.InputDigest = digest
		}
		if err := logger.Record(ctx, evt); err != nil {
			return false, contract.NewError("audit sink failed",
				contract.WithCode(contract.CodeAuditFailed),
				contract.WithCategory(contract.CategorySystem),
				contract.WithRecoverable(true),
				contract.WithCause(err),
				contract.WithDetails(map[string]any{"action": action}))
		}
		return true, nil
	}
}
