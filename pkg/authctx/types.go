// Package authctx carries the caller's identity and session across a call.
//
// The contract engine treats AuthContext as opaque data; conditions interpret it.
package authctx

import (
	"slices"
	"time"
)

// User is the authenticated caller.
type User struct {
	ID         string         `json:"id"`
	Email      string         `json:"email,omitempty"`
	Roles      []string       `json:"roles,omitempty"` // e.g., "admin", "viewer"
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Session is the caller's login session.
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// AuthContext is a per-call snapshot of who is calling.
// The zero value is the anonymous context.
type AuthContext struct {
	User    *User          `json:"user,omitempty"`
	Session *Session       `json:"session,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Empty returns the anonymous context.
func Empty() *AuthContext {
	return &AuthContext{}
}

// Authenticated reports whether a user with a non-empty ID is present.
func (a *AuthContext) Authenticated() bool {
	return a != nil && a.User != nil && a.User.ID != ""
}

// UserID returns the caller's ID or "" when anonymous.
func (a *AuthContext) UserID() string {
	if !a.Authenticated() {
		return ""
	}
	return a.User.ID
}

// HasRole reports whether the user carries any of roles.
func (a *AuthContext) HasRole(roles ...string) bool {
	if !a.Authenticated() {
		return false
	}
	for _, r := range roles {
		if slices.Contains(a.User.Roles, r) {
			return true
		}
	}
	return false
}
