package contract

import (
	"errors"
	"fmt"
)

// Layer tags where a contract sits in the application. The engine only
// records it; AppropriateResponse maps it to a caller-facing response.
type Layer string

const (
	LayerPresentation Layer = "presentation"
	LayerAction       Layer = "action"
	LayerBusiness     Layer = "business"
	LayerData         Layer = "data"
	LayerUnknown      Layer = "unknown"
)

// ParseLayer returns the layer named s. The empty string is LayerUnknown.
func ParseLayer(s string) (Layer, error) {
	switch l := Layer(s); l {
	case LayerPresentation, LayerAction, LayerBusiness, LayerData, LayerUnknown:
		return l, nil
	case "":
		return LayerUnknown, nil
	default:
		return "", fmt.Errorf("unknown layer %q", s)
	}
}

// ViolationError is the only error a wrapped method returns on failure.
// It records which contract and layer failed and keeps the original error.
type ViolationError struct {
	contractName string
	layer        Layer
	original     error
	class        *Error
}

// NewViolation wraps original. Code, category and recoverability are inherited
// from original when it is classified (an *Error or another violation);
// otherwise they default to CONTRACT_VIOLATION, BUSINESS_LOGIC and false.
func NewViolation(contractName string, layer Layer, original error) *ViolationError {
	if layer == "" {
		layer = LayerUnknown
	}
	if original == nil {
		original = errors.New("contract violation")
	}
	return &ViolationError{
		contractName: contractName,
		layer:        layer,
		original:     original,
		class:        inheritClass(original),
	}
}

func inheritClass(original error) *Error {
	var v *ViolationError
	if errors.As(original, &v) {
		return v.class
	}
	var ce *Error
	if errors.As(original, &ce) {
		return ce
	}
	return NewError(original.Error(),
		WithCode(CodeContractViolation),
		WithCategory(CategoryBusinessLogic),
		WithRecoverable(false),
		WithCause(original),
	)
}

func (v *ViolationError) Error() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("contract violation in %s (%s): %v", v.contractName, v.layer, v.original)
}

// Unwrap exposes the original error to errors.Is and errors.As.
func (v *ViolationError) Unwrap() error { return v.original }

func (v *ViolationError) ContractName() string { return v.contractName }
func (v *ViolationError) Layer() Layer         { return v.layer }
func (v *ViolationError) OriginalError() error { return v.original }
func (v *ViolationError) Code() string         { return v.class.Code() }
func (v *ViolationError) Category() Category   { return v.class.Category() }
func (v *ViolationError) IsRecoverable() bool  { return v.class.IsRecoverable() }

// Message is the original error's message without the violation prefix.
func (v *ViolationError) Message() string {
	var ce *Error
	if errors.As(v.original, &ce) {
		return ce.Message()
	}
	return v.original.Error()
}

// Details returns the original's details plus originalErrorMessage and
// originalErrorType.
func (v *ViolationError) Details() map[string]any {
	d := v.class.Details()
	if d == nil {
		d = make(map[string]any, 2)
	}
	d["originalErrorMessage"] = v.Message()
	d["originalErrorType"] = fmt.Sprintf("%T", v.original)
	return d
}

func (v *ViolationError) classified() *Error { return v.class }

// AsViolation finds a *ViolationError in err's chain.
func AsViolation(err error) (*ViolationError, bool) {
	var v *ViolationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
