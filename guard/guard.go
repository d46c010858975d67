package guard

import (
	"context"
	"time"

	"go.uber.org/zap"

	sessioncore "github.com/KPpay-project/sessioncore"
	"github.com/KPpay-project/sessioncore/role"
)

// Decision is the terminal outcome of one navigation check.
type Decision uint8

const (
	// Allow admits the navigation.
	Allow Decision = iota
	// RedirectToLogin means no usable session exists.
	RedirectToLogin
	// RedirectToUnauthorized means the principal is authenticated but its
	// role is not in the route's permitted set. Distinct from the login
	// redirect: the session remains valid.
	RedirectToUnauthorized
)

// String returns a short lowercase name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Policy is a route's statically declared role requirement. An empty
// Allowed set admits any authenticated principal.
type Policy struct {
	Path    string
	Allowed role.Set
}

const defaultRefreshTimeout = 5 * time.Second

// Guard evaluates route policies against the session manager.
type Guard struct {
	sessions       *sessioncore.Manager
	refreshTimeout time.Duration
	log            *zap.Logger
}

// Option customizes a Guard.
type Option func(*Guard)

// WithRefreshTimeout bounds the synchronous just-in-time refresh performed
// when a check finds the access token expired but refreshable.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Guard) {
		g.log = log
	}
}

// New creates a Guard over the given session manager.
func New(sessions *sessioncore.Manager, opts ...Option) *Guard {
	g := &Guard{
		sessions:       sessions,
		refreshTimeout: defaultRefreshTimeout,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs one navigation attempt:
//
//  1. Derive the current session state.
//  2. Unauthenticated, or expired with no refresh possible → login.
//  3. Expired but refreshable → await one bounded refresh, re-evaluate;
//     failure → login.
//  4. Role not in the policy's permitted set → unauthorized.
//  5. Otherwise allow.
func (g *Guard) Check(ctx context.Context, policy Policy) Decision {
	state := g.sessions.CurrentState()

	switch state.Kind {
	case sessioncore.StateUnauthenticated:
		return g.redirectLogin(policy, "unauthenticated")

	case sessioncore.StateExpired:
		if !state.Refreshable {
			return g.redirectLogin(policy, "session fully expired")
		}

		refreshCtx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
		err := g.sessions.Refresh(refreshCtx)
		cancel()
		if err != nil {
			g.log.Warn("just-in-time refresh failed",
				zap.String("path", policy.Path), zap.Error(err))
			return g.redirectLogin(policy, "refresh failed")
		}

		state = g.sessions.CurrentState()
		if state.Kind != sessioncore.StateAuthenticated {
			return g.redirectLogin(policy, "session not recovered by refresh")
		}
	}

	if !policy.Allowed.Empty() && !policy.Allowed.Has(state.Role) {
		g.sessions.Metrics().Inc(sessioncore.MetricGuardRedirectUnauthorized)
		g.log.Info("navigation denied on role",
			zap.String("path", policy.Path),
			zap.Stringer("role", state.Role),
		)
		return RedirectToUnauthorized
	}

	g.sessions.Metrics().Inc(sessioncore.MetricGuardAllow)
	return Allow
}

func (g *Guard) redirectLogin(policy Policy, reason string) Decision {
	g.sessions.Metrics().Inc(sessioncore.MetricGuardRedirectLogin)
	g.log.Info("navigation redirected to login",
		zap.String("path", policy.Path),
		zap.String("reason", reason),
	)
	return RedirectToLogin
}
