package middleware

import (
	"context"
	"net/http"
	"strings"
)

// AuthCookieName is the cookie carrying the session token.
const AuthCookieName = "auth-token"

type contextKey string

const contextKeyAuthenticated contextKey = "authenticated"

// Authenticator verifies a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// RequireAuth rejects requests without a valid session token with a 401.
// The token is read from the auth cookie, or from an "Authorization: Bearer"
// header for non-browser clients.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" || auth.Authenticate(r.Context(), token) != nil {
				writeFailure(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyAuthenticated, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token, preferring the cookie.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// IsAuthenticated reports whether RequireAuth admitted the request.
func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(contextKeyAuthenticated).(bool)
	return v
}
