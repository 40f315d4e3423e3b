package authctx

import (
	"context"
	"fmt"
)

type contextKey string

const (
	authContextKey contextKey = "auth_context"
)

// WithAuthContext attaches an AuthContext to the context.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext retrieves the AuthContext from the context.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey).(*AuthContext)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}

// Resolver supplies the current caller's AuthContext when none was passed
// explicitly. It is called once per wrapped call.
type Resolver func(ctx context.Context) (*AuthContext, error)

// ContextResolver resolves the AuthContext stored in the request context by
// WithAuthContext (usually through NewMiddleware). Anonymous requests resolve
// to an empty context.
func ContextResolver() Resolver {
	return func(ctx context.Context) (*AuthContext, error) {
		if ac, ok := FromContext(ctx); ok {
			return ac, nil
		}
		return Empty(), nil
	}
}

// StaticResolver always resolves to ac. Useful for background jobs and tests.
func StaticResolver(ac *AuthContext) Resolver {
	return func(context.Context) (*AuthContext, error) {
		return ac, nil
	}
}

// Resolve runs r and degrades every failure to an empty context: a returned
// error, a nil result, a nil resolver and a panic all yield Empty(). It never
// fails so that authentication conditions stay responsible for rejecting
// anonymous callers.
func Resolve(ctx context.Context, r Resolver) (ac *AuthContext, err error) {
	if r == nil {
		return Empty(), nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			ac = Empty()
			err = fmt.Errorf("auth context resolver panicked: %v", rec)
		}
	}()

	ac, err = r(ctx)
	if err != nil {
		return Empty(), err
	}
	if ac == nil {
		return Empty(), nil
	}
	return ac, nil
}
