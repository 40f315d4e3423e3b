package authctx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meta-closure/zerot/pkg/identity"
)

// Claims are the JWT claims mapped onto an AuthContext.
type Claims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"sid,omitempty"`
}

// AuthContext builds the AuthContext described by the claims.
// The session expires with the token.
func (c *Claims) AuthContext() *AuthContext {
	ac := &AuthContext{
		User: &User{
			ID:    c.Subject,
			Email: c.Email,
			Roles: c.Roles,
		},
	}
	if c.SessionID != "" {
		s := &Session{ID: c.SessionID}
		if c.ExpiresAt != nil {
			s.ExpiresAt = c.ExpiresAt.Time
		}
		ac.Session = s
	}
	return ac
}

// JWTValidator validates bearer tokens and extracts claims.
type JWTValidator struct {
	keySet identity.KeySet
	issuer string
}

// NewJWTValidator creates a validator with the given KeySet. When issuer is
// non-empty tokens must carry it.
func NewJWTValidator(ks identity.KeySet, issuer string) *JWTValidator {
	if ks == nil {
		return nil
	}
	return &JWTValidator{keySet: ks, issuer: issuer}
}

// Validate parses and validates a JWT token string.
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if v == nil || v.keySet == nil {
		return nil, fmt.Errorf("validator uninitialized")
	}

	var opts []jwt.ParserOption
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keySet.KeyFunc(), opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	return claims, nil
}

// IssueToken signs a token for the given user and session lifetime.
func IssueToken(ctx context.Context, ks identity.KeySet, issuer string, user User, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     user.Email,
		Roles:     user.Roles,
		SessionID: sessionID,
	}
	return ks.Sign(ctx, claims)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// NewMiddleware creates JWT middleware that stores the caller's AuthContext in
// the request context. Requests without a valid token continue anonymously:
// rejecting them is the job of authentication conditions, not of the adapter.
func NewMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok || validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(tokenStr)
			if err != nil {
				slog.DebugContext(r.Context(), "ignoring invalid bearer token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithAuthContext(r.Context(), claims.AuthContext())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
