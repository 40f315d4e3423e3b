package conditions

import (
	"context"
	"time"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
	"github.com/meta-closure/zerot/pkg/ratelimit"
)

// KeyFunc derives the bucket key for a call.
type KeyFunc[I any] func(ctx context.Context, input I, ac *authctx.AuthContext) string

// ByUser keys buckets by user ID, sharing one "anonymous" bucket.
func ByUser[I any](prefix string) KeyFunc[I] {
	return func(_ context.Context, _ I, ac *authctx.AuthContext) string {
		if id := ac.UserID(); id != "" {
			return prefix + ":" + id
		}
		return prefix + ":anonymous"
	}
}

// RateLimited admits a call only when the caller's bucket has a token.
// A store error is recoverable so a retry policy can ride out outages.
func RateLimited[I any](store ratelimit.Store, policy ratelimit.Policy, key KeyFunc[I]) contract.Condition[I] {
	if key == nil {
		key = ByUser[I]("default")
	}
	return func(ctx context.Context, input I, ac *authctx.AuthContext) (bool, error) {
		k := key(ctx, input, ac)
		allowed, err := store.Allow(ctx, k, policy, 1)
		if err != nil {
			return false, contract.NewError("rate limiter unavailable",
				contract.WithCode(contract.CodeRateLimiterUnavailable),
				contract.WithCategory(contract.CategoryNetwork),
				contract.WithRecoverable(true),
				contract.WithCause(err))
		}
		if !allowed {
			return false, contract.NewError("rate limit exceeded",
				contract.WithCode(contract.CodeRateLimitExceeded),
				contract.WithCategory(contract.CategorySystem),
				contract.WithDetails(map[string]any{
					"key":                 k,
					"rpm":                 policy.RPM,
					"burst":               policy.Burst,
					"retry_after_seconds": int(policy.RetryAfter() / time.Second),
				}))
		}
		return true, nil
	}
}
