package conditions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/meta-closure/zerot/pkg/contract"
)

const schemaURL = "zerot://input.schema.json"

// Schema compiles a draft 2020-12 JSON schema and returns a validator that
// checks the input's JSON form against it. The input passes through unchanged.
func Schema[I any](schemaJSON string) (contract.Validator[I], error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return func(_ context.Context, input I) (I, error) {
		raw, err := json.Marshal(input)
		if err != nil {
			return input, schemaFailure(fmt.Sprintf("input is not JSON-encodable: %v", err), nil)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return input, schemaFailure(fmt.Sprintf("input is not JSON-decodable: %v", err), nil)
		}
		if err := compiled.Validate(doc); err != nil {
			var ve *jsonschema.ValidationError
			if errors.As(err, &ve) {
				return input, schemaFailure("input does not match schema", violations(ve))
			}
			return input, schemaFailure(err.Error(), nil)
		}
		return input, nil
	}, nil
}

// MustSchema is Schema for schemas known at compile time.
func MustSchema[I any](schemaJSON string) contract.Validator[I] {
	v, err := Schema[I](schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

func schemaFailure(msg string, errs []string) *contract.Error {
	opts := []contract.ErrorOption{
		contract.WithCode(contract.CodeSchemaValidationFailed),
		contract.WithCategory(contract.CategoryValidation),
	}
	if len(errs) > 0 {
		opts = append(opts, contract.WithDetails(map[string]any{"errors": errs}))
	}
	return contract.NewError(msg, opts...)
}

// violations flattens the validation tree into "location: message" leaves.
func violations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, violations(c)...)
	}
	return out
}
