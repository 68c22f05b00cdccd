package middleware

import (
	"context"
	"net/http"
)

// SetupPath is where clients are sent while setup has not run.
const SetupPath = "/setup"

type initChecker interface {
	IsInitialized(ctx context.Context) bool
}

// RequireInitialized blocks bucket routes with a 400 until setup has
// completed, pointing the client at the setup page.
func RequireInitialized(settings initChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !settings.IsInitialized(r.Context()) {
				writeFailure(w, http.StatusBadRequest, "console is not initialized",
					map[string]string{"redirect": SetupPath})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
