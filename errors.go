package sessioncore

import "errors"

var (
	// ErrNoSession is returned when an operation needs a credential and
	// none is present.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired means the refresh token is no longer usable; the
	// session was implicitly logged out and re-login is required.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidGrant is returned when a login input or backend grant is
	// missing a token or already expired.
	ErrInvalidGrant = errors.New("invalid token grant")

	// ErrStorageUnavailable means the persistence layer failed. It is
	// always surfaced: an unpersisted login must not be treated as a valid
	// session on the next check.
	ErrStorageUnavailable = errors.New("credential storage unavailable")

	// ErrBackendUnreachable means the identity backend could not be
	// reached. Transient; the scheduler retries it with bounded backoff,
	// everyone else surfaces it.
	ErrBackendUnreachable = errors.New("identity backend unreachable")

	// ErrUnauthorized means the principal is authenticated but its role is
	// not in the route's permitted set. Never triggers a logout.
	ErrUnauthorized = errors.New("role not permitted")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("session manager closed")
)
