package conditions_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/audit"
	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/conditions"
	"github.com/meta-closure/zerot/pkg/contract"
	"github.com/meta-closure/zerot/pkg/ratelimit"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newUpdate(t *testing.T, store ratelimit.Store, sink audit.Logger) contract.Method[updateProfile, updateProfile] {
	t.Helper()
	ev := newEvaluator(t)
	sameName, err := conditions.OutputRule[updateProfile, updateProfile](ev, `output.name == input.name`)
	require.NoError(t, err)

	engine := contract.NewEngine(contract.WithSleep(noSleep))
	return contract.Wrap(engine, contract.Options[updateProfile, updateProfile]{
		Name: "ProfileService.Update",
		Requires: []contract.Requirement[updateProfile]{
			contract.Require(conditions.Authenticated[updateProfile]()),
			contract.Require(conditions.RateLimited(store, ratelimit.Policy{RPM: 60, Burst: 10}, conditions.ByUser[updateProfile]("profile"))),
			contract.Validate(conditions.NormalizeText(func(p *updateProfile) *string { return &p.Name })),
			contract.Validate(conditions.MustSchema[updateProfile](profileSchema)),
			contract.Require(conditions.Owns(func(_ context.Context, in updateProfile) (string, error) { return in.UserID, nil })),
			contract.Require(conditions.Audit[updateProfile](sink, audit.EventMutation, "profile.update")),
		},
		Ensures: []contract.Ensures[updateProfile, updateProfile]{sameName},
		Policy:  contract.Policy{Layer: contract.LayerBusiness, RetryAttempts: 2},
	}, func(_ context.Context, in updateProfile, _ *authctx.AuthContext) (updateProfile, error) {
		return in, nil
	})
}

func TestWrappedUpdate_Success(t *testing.T) {
	var buf bytes.Buffer
	update := newUpdate(t, ratelimit.NewMemoryStore(), audit.NewWriterLogger(&buf))

	out, err := update(context.Background(), updateProfile{UserID: "alice", Name: "  Alice "}, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", out.Name)
	assert.Contains(t, buf.String(), "profile.update")
}

func TestWrappedUpdate_Violations(t *testing.T) {
	tests := []struct {
		name     string
		input    updateProfile
		ac       *authctx.AuthContext
		code     string
		category contract.Category
	}{
		{"anonymous", updateProfile{UserID: "alice", Name: "A"}, anonymous, contract.CodeAuthenticationRequired, contract.CategoryAuthentication},
		{"blank name after normalization", updateProfile{UserID: "alice", Name: "   "}, alice, contract.CodeSchemaValidationFailed, contract.CategoryValidation},
		{"not owner", updateProfile{UserID: "bob", Name: "Bob"}, alice, contract.CodeResourceNotOwned, contract.CategoryAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			update := newUpdate(t, ratelimit.NewMemoryStore(), audit.NewWriterLogger(&buf))

			_, err := update(context.Background(), tt.input, tt.ac)
			v, ok := contract.AsViolation(err)
			require.True(t, ok)
			assert.Equal(t, "ProfileService.Update", v.ContractName())
			assert.Equal(t, contract.LayerBusiness, v.Layer())
			assert.Equal(t, tt.code, v.Code())
			assert.Equal(t, tt.category, v.Category())
			assert.Empty(t, buf.String(), "nothing audited for rejected calls")
		})
	}
}

// flakyStore fails the first n calls.
type flakyStore struct {
	n     int
	calls int
}

func (f *flakyStore) Allow(context.Context, string, ratelimit.Policy, int) (bool, error) {
	f.calls++
	if f.calls <= f.n {
		return false, errors.New("redis: i/o timeout")
	}
	return true, nil
}

func TestWrappedUpdate_RetriesRecoverableStoreFailure(t *testing.T) {
	store := &flakyStore{n: 2}
	var buf bytes.Buffer
	update := newUpdate(t, store, audit.NewWriterLogger(&buf))

	_, err := update(context.Background(), updateProfile{UserID: "alice", Name: "Alice"}, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)

	store = &flakyStore{n: 5}
	update = newUpdate(t, store, audit.NewWriterLogger(&buf))
	_, err = update(context.Background(), updateProfile{UserID: "alice", Name: "Alice"}, alice)
	v, ok := contract.AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, contract.CodeRateLimiterUnavailable, v.Code())
	assert.Equal(t, 3, store.calls, "RetryAttempts=2 allows three attempts")
}
