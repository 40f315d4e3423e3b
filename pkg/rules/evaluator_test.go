package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/authctx"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func newEvaluator(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(opts...)
	require.NoError(t, err)
	return e
}

func TestEvaluate_InputAndUser(t *testing.T) {
	e := newEvaluator(t)
	ctx := context.Background()
	ac := &authctx.AuthContext{User: &authctx.User{ID: "u1", Roles: []string{"editor"}}}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"field by json name", `input.name == "Ann"`, true},
		{"numeric comparison", `input.age >= 18`, true},
		{"owner", `input.id == user.id`, true},
		{"role membership", `"editor" in user.roles`, true},
		{"missing role", `"admin" in user.roles`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(ctx, tt.expr, Vars{Input: profile{ID: "u1", Name: "Ann", Age: 30}, Auth: ac})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_OutputAndSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	e := newEvaluator(t, WithClock(func() time.Time { return now }))

	ac := &authctx.AuthContext{
		User:    &authctx.User{ID: "u1"},
		Session: &authctx.Session{ID: "s1", ExpiresAt: now.Add(time.Hour)},
	}
	ok, err := e.Evaluate(context.Background(), `output.name == input.name && !session.expired`,
		Vars{Input: profile{Name: "Ann"}, Output: profile{Name: "Ann"}, Auth: ac})
	require.NoError(t, err)
	assert.True(t, ok)

	ac.Session.ExpiresAt = now
	ok, err = e.Evaluate(context.Background(), `!session.expired`, Vars{Auth: ac})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_Anonymous(t *testing.T) {
	e := newEvaluator(t)
	ok, err := e.Evaluate(context.Background(), `user.id == "" && size(user.roles) == 0 && session.expired`, Vars{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompile_Errors(t *testing.T) {
	e := newEvaluator(t)

	assert.ErrorContains(t, e.Compile(`input.name ==`), "compile")
	assert.ErrorContains(t, e.Compile(`1 + 2`), "must evaluate to bool")
	assert.NoError(t, e.Compile(`input.ok`))
}

func TestEvaluate_NonBoolResult(t *testing.T) {
	e := newEvaluator(t)
	_, err := e.Evaluate(context.Background(), `input.name`, Vars{Input: profile{Name: "Ann"}})
	assert.ErrorContains(t, err, "not bool")
}

func TestEvaluate_MissingField(t *testing.T) {
	e := newEvaluator(t)
	_, err := e.Evaluate(context.Background(), `input.nope == 1`, Vars{Input: profile{}})
	assert.ErrorContains(t, err, "eval")
}

func TestEvaluate_CostLimit(t *testing.T) {
	e := newEvaluator(t, WithCostLimit(5))
	items := make([]int, 100)
	_, err := e.Evaluate(context.Background(), `input.all(x, x == 0)`, Vars{Input: items})
	assert.Error(t, err)
}

func TestEvaluate_CachesPrograms(t *testing.T) {
	e := newEvaluator(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Evaluate(context.Background(), `input.age > 1`, Vars{Input: profile{Age: 2}})
		}()
	}
	wg.Wait()

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.prgCache, 1)
}
