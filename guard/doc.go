// Package guard decides whether a navigation may enter a protected route.
//
// Each route declares a [Policy] — the set of roles permitted to enter.
// [Guard.Check] evaluates one navigation attempt against the current
// session state and terminates in exactly one of three outcomes: Allow,
// RedirectToLogin (no usable session), or RedirectToUnauthorized
// (authenticated, but the role is insufficient — the session stays valid).
// No state is carried between navigations.
package guard
