package guard

import (
	"context"
	"net/http"

	sessioncore "github.com/KPpay-project/sessioncore"
)

type stateContextKey struct{}

// StateFromContext returns the session state captured when the middleware
// admitted the request.
func StateFromContext(ctx context.Context) (sessioncore.SessionState, bool) {
	state, ok := ctx.Value(stateContextKey{}).(sessioncore.SessionState)
	return state, ok
}

// Redirects configures where the middleware sends denied requests. Empty
// targets fall back to plain 401/403 responses, which suits API mounts.
type Redirects struct {
	LoginURL  string
	DeniedURL string
}

// Middleware gates an http.Handler behind a route policy.
func Middleware(g *Guard, policy Policy, redirects Redirects) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch g.Check(r.Context(), policy) {
			case Allow:
				ctx := context.WithValue(r.Context(), stateContextKey{}, g.sessions.CurrentState())
				next.ServeHTTP(w, r.WithContext(ctx))

			case RedirectToLogin:
				if redirects.LoginURL != "" {
					http.Redirect(w, r, redirects.LoginURL, http.StatusFound)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)

			case RedirectToUnauthorized:
				if redirects.DeniedURL != "" {
					http.Redirect(w, r, redirects.DeniedURL, http.StatusFound)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
