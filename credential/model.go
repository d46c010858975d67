package credential

import "time"

// Credential is the persisted authentication record for one device or
// browser profile. At most one exists per profile; the session manager is
// its only writer.
type Credential struct {
	AccessToken  string
	RefreshToken string

	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time // zero when the backend did not state one

	// IssuedAt orders issuances across execution contexts. A refresh result
	// older than the currently stored credential is discarded.
	IssuedAt time.Time

	RememberMe bool

	// RoleClaim is the normalized role value persisted next to the tokens,
	// consulted when the access token carries no readable role claim.
	RoleClaim string
}

// AccessValid reports whether the access token is still usable at now.
func (c *Credential) AccessValid(now time.Time) bool {
	return c != nil && now.Before(c.AccessExpiresAt)
}

// Refreshable reports whether the refresh token can still be exchanged at
// now. An unknown refresh lifetime counts as refreshable; the backend is
// the final judge.
func (c *Credential) Refreshable(now time.Time) bool {
	if c == nil || c.RefreshToken == "" {
		return false
	}
	return c.RefreshExpiresAt.IsZero() || now.Before(c.RefreshExpiresAt)
}

// Supersedes reports whether c is a strictly newer issuance than other.
func (c *Credential) Supersedes(other *Credential) bool {
	if c == nil {
		return false
	}
	if other == nil {
		return true
	}
	return c.IssuedAt.After(other.IssuedAt)
}

// Equal reports whether two credentials represent the same issuance.
func (c *Credential) Equal(other *Credential) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.AccessToken == other.AccessToken &&
		c.RefreshToken == other.RefreshToken &&
		c.AccessExpiresAt.Equal(other.AccessExpiresAt) &&
		c.RememberMe == other.RememberMe
}

// Clone returns a copy so callers never share the stored pointer.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}
