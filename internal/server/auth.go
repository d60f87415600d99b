package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthenticated = errors.New("unauthenticated")

// UserIDHeader carries the caller's id when no JWT secret is configured.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey{}).(string)
	return uid
}

// Authenticator resolves the caller's user id from a request.
//
// With a secret, callers present "Authorization: Bearer <jwt>" signed with
// HS256 and the token's sub claim is the user id. Without one the
// X-User-ID header is trusted, which is only suitable for development.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator returns an Authenticator. An empty secret selects header
// mode. A non-empty issuer is enforced against the token's iss claim.
func NewAuthenticator(secret, issuer string) *Authenticator {
	a := &Authenticator{issuer: issuer}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// VerifiesTokens reports whether bearer JWTs are required.
func (a *Authenticator) VerifiesTokens() bool {
	return a != nil && len(a.secret) > 0
}

// Verify parses a signed token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("invalid token: missing sub claim")
	}
	return sub, nil
}

// authenticate extracts the user id from an Authorization value (token
// mode) or a user id header value (header mode).
func (a *Authenticator) authenticate(authorization, userHeader string) (string, error) {
	if !a.VerifiesTokens() {
		uid := strings.TrimSpace(userHeader)
		if uid == "" {
			return "", fmt.Errorf("missing %s header", UserIDHeader)
		}
		return uid, nil
	}
	if authorization == "" {
		return "", errors.New("missing authorization header")
	}
	if !strings.HasPrefix(authorization, "Bearer ") {
		return "", errors.New("invalid authorization scheme")
	}
	return a.Verify(strings.TrimPrefix(authorization, "Bearer "))
}

// AuthMiddleware wraps an http.Handler and stores the caller's user id in
// the request context. GET /api/health and GET /metrics are always exempt.
func AuthMiddleware(a *Authenticator, next http.Handler) http.Handler {
	if a == nil {
		a = NewAuthenticator("", "")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && (r.URL.Path == "/api/health" || r.URL.Path == "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		uid, err := a.authenticate(r.Header.Get("Authorization"), r.Header.Get(UserIDHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}
