// Package api renders contract violations as RFC 7807 Problem Detail responses.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/contract"
)

// ProblemTypeBase prefixes the problem type URI; the violation code follows.
const ProblemTypeBase = "https://zerot.dev/problems/"

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// TraceID links to the request that failed.
	TraceID string `json:"trace_id,omitempty"`
	// Code is the violation's error code.
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Contract string `json:"contract,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	// RetryAfter is the Retry-After value in seconds for 429 responses.
	RetryAfter int `json:"retry_after,omitempty"`
}

// DefaultRetryAfter is used for 429s whose violation carries no hint.
const DefaultRetryAfter = 60

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// StatusFor maps an error category to an HTTP status.
func StatusFor(c contract.Category) int {
	switch c {
	case contract.CategoryValidation:
		return http.StatusBadRequest
	case contract.CategoryAuthentication:
		return http.StatusUnauthorized
	case contract.CategoryAuthorization:
		return http.StatusForbidden
	case contract.CategoryBusinessLogic:
		return http.StatusUnprocessableEntity
	case contract.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Problem builds the problem for a violation. The detail is the layer-mapped
// message, never the raw cause.
func Problem(v *contract.ViolationError) *ProblemDetail {
	status := StatusFor(v.Category())
	if v.Code() == contract.CodeRateLimitExceeded {
		status = http.StatusTooManyRequests
	}
	resp := v.AppropriateResponse()
	p := &ProblemDetail{
		Type:     ProblemTypeBase + v.Code(),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   resp.Error,
		Code:     v.Code(),
		Category: string(v.Category()),
		Contract: v.ContractName(),
		Redirect: resp.Redirect,
	}
	if status == http.StatusTooManyRequests {
		p.RetryAfter = retryAfterSeconds(v.Details())
	}
	return p
}

func retryAfterSeconds(details map[string]any) int {
	var secs int
	switch n := details["retry_after_seconds"].(type) {
	case int:
		secs = n
	case int64:
		secs = int(n)
	case float64:
		secs = int(math.Ceil(n))
	}
	if secs <= 0 {
		return DefaultRetryAfter
	}
	return secs
}

// WriteProblem writes an RFC 7807 Problem Detail JSON response enriched with
// request context.
func WriteProblem(w http.ResponseWriter, r *http.Request, p *ProblemDetail) {
	if r != nil {
		p.Instance = r.URL.Path
		p.TraceID = authctx.RequestID(r.Context())
	}
	if p.Status == http.StatusTooManyRequests {
		if p.RetryAfter <= 0 {
			p.RetryAfter = DefaultRetryAfter
		}
		w.Header().Set("Retry-After", strconv.Itoa(p.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteError writes err as a problem. Violations keep their classification;
// anything else is logged and reported as a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := contract.AsViolation(err); ok {
		WriteProblem(w, r, Problem(v))
		return
	}
	// Log internally but never expose to client
	slog.Error("internal server error", "error", err)
	WriteProblem(w, r, &ProblemDetail{
		Type:   ProblemTypeBase + contract.CodeUnexpectedError,
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: "An unexpected error occurred. Please try again later.",
	})
}

// WriteBadRequest writes a 400 problem for malformed requests that never
// reached a contract.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, r, &ProblemDetail{
		Type:   ProblemTypeBase + "BAD_REQUEST",
		Title:  http.StatusText(http.StatusBadRequest),
		Status: http.StatusBadRequest,
		Detail: detail,
	})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
