package authctx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/authctx"
)

func TestFromContext_RoundTrip(t *testing.T) {
	ac := &authctx.AuthContext{User: &authctx.User{ID: "u1"}}
	ctx := authctx.WithAuthContext(context.Background(), ac)

	got, ok := authctx.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, ac, got)

	_, ok = authctx.FromContext(context.Background())
	assert.False(t, ok)
}

func TestContextResolver_AnonymousIsEmpty(t *testing.T) {
	ac, err := authctx.ContextResolver()(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ac)
	assert.False(t, ac.Authenticated())
}

func TestResolve_DegradesFailures(t *testing.T) {
	ctx := context.Background()

	failing := func(context.Context) (*authctx.AuthContext, error) {
		return nil, errors.New("store unavailable")
	}
	ac, err := authctx.Resolve(ctx, failing)
	assert.Error(t, err)
	assert.Equal(t, authctx.Empty(), ac)

	nilResult := func(context.Context) (*authctx.AuthContext, error) { return nil, nil }
	ac, err = authctx.Resolve(ctx, nilResult)
	assert.NoError(t, err)
	assert.Equal(t, authctx.Empty(), ac)

	panicking := func(context.Context) (*authctx.AuthContext, error) { panic("boom") }
	ac, err = authctx.Resolve(ctx, panicking)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, authctx.Empty(), ac)

	ac, err = authctx.Resolve(ctx, nil)
	assert.NoError(t, err)
	assert.Equal(t, authctx.Empty(), ac)
}

func TestAuthContext_Helpers(t *testing.T) {
	var anon *authctx.AuthContext
	assert.False(t, anon.Authenticated())
	assert.Empty(t, anon.UserID())
	assert.False(t, anon.HasRole("admin"))

	ac := &authctx.AuthContext{User: &authctx.User{ID: "u1", Roles: []string{"editor"}}}
	assert.True(t, ac.Authenticated())
	assert.Equal(t, "u1", ac.UserID())
	assert.True(t, ac.HasRole("admin", "editor"))
	assert.False(t, ac.HasRole("admin"))
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	var missing *authctx.Session
	assert.True(t, missing.Expired(now))
	assert.False(t, (&authctx.Session{ID: "s"}).Expired(now))
	assert.False(t, (&authctx.Session{ID: "s", ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&authctx.Session{ID: "s", ExpiresAt: now}).Expired(now))
}
