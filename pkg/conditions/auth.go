package conditions

import (
	"context"
	"strings"
	"time"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
)

func authenticationRequired() *contract.Error {
	return contract.NewError("authentication required",
		contract.WithCode(contract.CodeAuthenticationRequired),
		contract.WithCategory(contract.CategoryAuthentication))
}

// Authenticated requires a caller with a user ID.
func Authenticated[I any]() contract.Condition[I] {
	return func(_ context.Context, _ I, ac *authctx.AuthContext) (bool, error) {
		if !ac.Authenticated() {
			return false, authenticationRequired()
		}
		return true, nil
	}
}

// HasRole requires an authenticated caller holding at least one of roles.
func HasRole[I any](roles ...string) contract.Condition[I] {
	return func(_ context.Context, _ I, ac *authctx.AuthContext) (bool, error) {
		if !ac.Authenticated() {
			return false, authenticationRequired()
		}
		if ac.HasRole(roles...) {
			return true, nil
		}
		return false, contract.NewError("requires role: "+strings.Join(roles, " or "),
			contract.WithCode(contract.CodeInsufficientRole),
			contract.WithCategory(contract.CategoryAuthorization),
			contract.WithDetails(map[string]any{"required": roles, "userId": ac.UserID()}))
	}
}

// ValidSession requires a session that has not expired at now(). A nil now
// uses time.Now.
func ValidSession[I any](now func() time.Time) contract.Condition[I] {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, _ I, ac *authctx.AuthContext) (bool, error) {
		if ac == nil || ac.Session.Expired(now()) {
			return false, contract.NewError("session expired or missing",
				contract.WithCode(contract.CodeSessionExpired),
				contract.WithCategory(contract.CategoryAuthentication))
		}
		return true, nil
	}
}
