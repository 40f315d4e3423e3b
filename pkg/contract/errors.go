package contract

import (
	"errors"
	"fmt"
)

// Category classifies a failure independently of its code.
type Category string

const (
	CategoryNetwork        Category = "NETWORK"
	CategoryValidation     Category = "VALIDATION"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryBusinessLogic  Category = "BUSINESS_LOGIC"
	CategorySystem         Category = "SYSTEM"
	CategoryUnknown        Category = "UNKNOWN"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryNetwork,
	CategoryValidation,
	CategoryAuthentication,
	CategoryAuthorization,
	CategoryBusinessLogic,
	CategorySystem,
	CategoryUnknown,
}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown error category %q", s)
}

// Error codes produced by the engine.
const (
	CodePreconditionFailed  = "PRECONDITION_FAILED"
	CodePostconditionFailed = "POSTCONDITION_FAILED"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeUnexpectedError     = "UNEXPECTED_ERROR"
	CodeContractViolation   = "CONTRACT_VIOLATION"
	CodeMaxRetriesExceeded  = "MAX_RETRY_ATTEMPTS_EXCEEDED"
)

// Error codes produced by the bundled conditions.
const (
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodeSessionExpired         = "SESSION_EXPIRED"
	CodeInsufficientRole       = "INSUFFICIENT_ROLE"
	CodeResourceNotOwned       = "RESOURCE_NOT_OWNED"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeRateLimiterUnavailable = "RATE_LIMITER_UNAVAILABLE"
	CodeSchemaValidationFailed = "SCHEMA_VALIDATION_FAILED"
	CodeBusinessRuleViolation  = "BUSINESS_RULE_VIOLATION"
	CodeAuditFailed            = "AUDIT_FAILED"
)

// Error is a classified contract failure. Conditions return it to report a
// specific failure instead of a bare false.
//
// An Error is immutable once built; Details returns a copy.
type Error struct {
	message     string
	code        string
	category    Category
	details     map[string]any
	recoverable bool
	cause       error
}

// ErrorOption configures an Error during NewError.
type ErrorOption func(*Error)

// WithCode sets the machine-facing code.
func WithCode(code string) ErrorOption { return func(e *Error) { e.code = code } }

// WithCategory sets the category.
func WithCategory(c Category) ErrorOption { return func(e *Error) { e.category = c } }

// WithDetails sets free-form details. The map is cloned.
func WithDetails(d map[string]any) ErrorOption {
	return func(e *Error) { e.details = cloneMap(d) }
}

// WithRecoverable marks the error as retryable.
func WithRecoverable(recoverable bool) ErrorOption {
	return func(e *Error) { e.recoverable = recoverable }
}

// WithCause records the underlying cause returned by Unwrap.
func WithCause(cause error) ErrorOption { return func(e *Error) { e.cause = cause } }

// NewError builds an Error. Category defaults to CategoryUnknown.
func NewError(message string, opts ...ErrorOption) *Error {
	e := &Error{
		message:  message,
		category: CategoryUnknown,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.code == "" {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Message() string         { return e.message }
func (e *Error) Code() string            { return e.code }
func (e *Error) Category() Category      { return e.category }
func (e *Error) IsRecoverable() bool     { return e.recoverable }
func (e *Error) Details() map[string]any { return cloneMap(e.details) }

// Classify normalizes any error into an *Error:
//   - nil stays nil
//   - an *Error anywhere in the chain is returned as-is
//   - a *ViolationError yields the classification of its original error
//   - anything else becomes UNEXPECTED_ERROR / SYSTEM, not recoverable,
//     keeping the original as cause and its message in details
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var v *ViolationError
	if errors.As(err, &v) {
		return v.classified()
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	return unexpected(err)
}

func unexpected(err error) *Error {
	return NewError(err.Error(),
		WithCode(CodeUnexpectedError),
		WithCategory(CategorySystem),
		WithRecoverable(false),
		WithCause(err),
		WithDetails(map[string]any{
			"originalErrorMessage": err.Error(),
			"originalErrorType":    fmt.Sprintf("%T", err),
		}),
	)
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		if mv, ok := v.(map[string]any); ok {
			out[k] = cloneMap(mv)
			continue
		}
		out[k] = v
	}
	return out
}
