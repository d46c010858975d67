package sessioncore

import (
	"context"
	"fmt"
	"time"

	"github.com/KPpay-project/sessioncore/role"
)

// TokenGrant is what the identity backend returns from a credential
// exchange or refresh. Expiry is always the backend's stated lifetime at
// the moment of issuance — never a locally decremented countdown.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string

	ExpiresAt        time.Time
	RefreshExpiresAt time.Time // zero when the backend does not state one

	RoleClaim string
}

// Backend is the identity service boundary. Both calls are opaque remote
// exchanges; implementations wrap transport failures in
// [ErrBackendUnreachable] and return plain errors for rejections.
type Backend interface {
	ExchangeCredentials(ctx context.Context, identifier, secret string) (*TokenGrant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// StateKind enumerates the session states derivable from the credential.
type StateKind uint8

const (
	// StateUnauthenticated means no credential is present.
	StateUnauthenticated StateKind = iota
	// StateAuthenticated means the access token is valid right now.
	StateAuthenticated
	// StateExpired means the access token lapsed; Refreshable tells
	// whether a refresh can still recover the session.
	StateExpired
)

// String returns a short lowercase name.
func (k StateKind) String() string {
	switch k {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionState is derived on demand from the credential and the clock and
// is never persisted — a stored snapshot would go stale across restarts.
type SessionState struct {
	Kind        StateKind
	Role        role.Role
	ExpiresAt   time.Time
	Refreshable bool
}

// LoginInput carries backend-issued tokens into [Manager.Login].
type LoginInput struct {
	AccessToken  string
	RefreshToken string

	ExpiresAt        time.Time
	RefreshExpiresAt time.Time

	RememberMe bool
	RoleClaim  string
}

func (in LoginInput) validate(now time.Time) error {
	if in.AccessToken == "" {
		return fmt.Errorf("%w: access token empty", ErrInvalidGrant)
	}
	if in.RefreshToken == "" {
		return fmt.Errorf("%w: refresh token empty", ErrInvalidGrant)
	}
	if in.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiry missing", ErrInvalidGrant)
	}
	if !in.ExpiresAt.After(now) {
		return fmt.Errorf("%w: access token already expired", ErrInvalidGrant)
	}
	return nil
}
