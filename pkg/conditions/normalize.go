package conditions

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/meta-closure/zerot/pkg/contract"
)

// Field selects a string field of the input.
type Field[I any] func(*I) *string

// NormalizeText returns a validator that trims each selected field and puts
// it in Unicode NFC form. It never fails.
func NormalizeText[I any](fields ...Field[I]) contract.Validator[I] {
	return func(_ context.Context, input I) (I, error) {
		for _, f := range fields {
			if p := f(&input); p != nil {
				*p = norm.NFC.String(strings.TrimSpace(*p))
			}
		}
		return input, nil
	}
}
