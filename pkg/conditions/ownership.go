package conditions

import (
	"context"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
)

// OwnerLookup returns the ID of the user owning the resource input refers to.
type OwnerLookup[I any] func(ctx context.Context, input I) (string, error)

// Owns requires the caller to own the resource. Lookup errors are returned
// unchanged.
func Owns[I any](lookup OwnerLookup[I]) contract.Condition[I] {
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		if !ac.Authenticated() {
			return false, authenticationRequired()
		}
		owner, err := lookup(ctx, input)
		if err != nil {
			return false, err
		}
		if owner != ac.UserID() {
			return false, contract.NewError("resource not owned by caller",
				contract.WithCode(contract.CodeResourceNotOwned),
				contract.WithCategory(contract.CategoryAuthorization),
				contract.WithDetails(map[string]any{"userId": ac.UserID()}))
		}
		return true, nil
	}
}
