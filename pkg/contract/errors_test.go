package contract_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/contract"
)

func TestNewError_Defaults(t *testing.T) {
	e := contract.NewError("boom")
	assert.Equal(t, "boom", e.Message())
	assert.Empty(t, e.Code())
	assert.Equal(t, contract.CategoryUnknown, e.Category())
	assert.False(t, e.IsRecoverable())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.Unwrap())
	assert.Equal(t, "boom", e.Error())
}

func TestNewError_DetailsAreCloned(t *testing.T) {
	src := map[string]any{"field": "email", "nested": map[string]any{"rule": "format"}}
	e := contract.NewError("invalid", contract.WithCode("BAD"), contract.WithDetails(src))

	src["field"] = "name"
	assert.Equal(t, "email", e.Details()["field"])

	got := e.Details()
	got["field"] = "mutated"
	got["nested"].(map[string]any)["rule"] = "mutated"
	assert.Equal(t, "email", e.Details()["field"])
	assert.Equal(t, "format", e.Details()["nested"].(map[string]any)["rule"])
	assert.Equal(t, "BAD: invalid", e.Error())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, contract.Classify(nil))

	ce := contract.NewError("specific", contract.WithCode("X"))
	assert.Same(t, ce, contract.Classify(ce))
	assert.Same(t, ce, contract.Classify(fmt.Errorf("context: %w", ce)))

	v := contract.NewViolation("Svc.Op", contract.LayerAction, ce)
	assert.Same(t, ce, contract.Classify(v))

	plain := errors.New("disk full")
	got := contract.Classify(plain)
	assert.Equal(t, contract.CodeUnexpectedError, got.Code())
	assert.Equal(t, contract.CategorySystem, got.Category())
	assert.False(t, got.IsRecoverable())
	assert.ErrorIs(t, got, plain)
	assert.Equal(t, "disk full", got.Details()["originalErrorMessage"])
	assert.Equal(t, "*errors.errorString", got.Details()["originalErrorType"])
}

func TestNewViolation_InheritsClassification(t *testing.T) {
	ce := contract.NewError("too many requests",
		contract.WithCode(contract.CodeRateLimitExceeded),
		contract.WithCategory(contract.CategoryNetwork),
		contract.WithRecoverable(true),
		contract.WithDetails(map[string]any{"limit": 10}),
	)
	v := contract.NewViolation("Svc.Op", contract.LayerAction, ce)

	assert.Equal(t, contract.CodeRateLimitExceeded, v.Code())
	assert.Equal(t, contract.CategoryNetwork, v.Category())
	assert.True(t, v.IsRecoverable())
	assert.Same(t, ce, v.OriginalError())
	assert.Equal(t, "too many requests", v.Message())

	d := v.Details()
	assert.Equal(t, 10, d["limit"])
	assert.Equal(t, "too many requests", d["originalErrorMessage"])
	assert.Equal(t, "*contract.Error", d["originalErrorType"])
	assert.Contains(t, v.Error(), "Svc.Op")
	assert.Contains(t, v.Error(), "action")
}

func TestNewViolation_DefaultsForForeignErrors(t *testing.T) {
	plain := errors.New("unclassified")
	v := contract.NewViolation("Svc.Op", "", plain)

	assert.Equal(t, contract.LayerUnknown, v.Layer())
	assert.Equal(t, contract.CodeContractViolation, v.Code())
	assert.Equal(t, contract.CategoryBusinessLogic, v.Category())
	assert.False(t, v.IsRecoverable())
	assert.ErrorIs(t, v, plain)

	found, ok := contract.AsViolation(fmt.Errorf("handler: %w", v))
	require.True(t, ok)
	assert.Same(t, v, found)
}

func TestParseCategoryAndLayer(t *testing.T) {
	c, err := contract.ParseCategory("NETWORK")
	require.NoError(t, err)
	assert.Equal(t, contract.CategoryNetwork, c)
	_, err = contract.ParseCategory("network")
	assert.Error(t, err)

	l, err := contract.ParseLayer("")
	require.NoError(t, err)
	assert.Equal(t, contract.LayerUnknown, l)
	l, err = contract.ParseLayer("data")
	require.NoError(t, err)
	assert.Equal(t, contract.LayerData, l)
	_, err = contract.ParseLayer("transport")
	assert.Error(t, err)
}

func TestAppropriateResponse(t *testing.T) {
	ce := contract.NewError("Title must not be empty")
	cases := []struct {
		layer contract.Layer
		want  contract.Response
	}{
		{contract.LayerPresentation, contract.Response{Redirect: "/login", Error: "Authentication required"}},
		{contract.LayerAction, contract.Response{Error: "Title must not be empty"}},
		{contract.LayerBusiness, contract.Response{Error: "Permission denied"}},
		{contract.LayerData, contract.Response{Error: "Operation failed"}},
		{contract.LayerUnknown, contract.Response{Error: "An error occurred"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.layer), func(t *testing.T) {
			v := contract.NewViolation("Svc.Op", tc.layer, ce)
			assert.Equal(t, tc.want, v.AppropriateResponse())
		})
	}
}
