package role

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KPpay-project/sessioncore/credential"
)

type vocabEntry struct {
	needle string
	role   Role
}

// defaultVocabulary is matched in order; higher-privilege words come first
// so a value like "admin-user" resolves to Admin before the "user"
// substring gets a chance. "superuser" still resolves to User — that
// matches the legacy stored values this core has to keep honoring.
var defaultVocabulary = []vocabEntry{
	{"admin", Admin},
	{"merchant", Merchant},
	{"client", Client},
	{"user", User},
}

// Resolver derives a Role from the stored credential. Matching is
// case-insensitive and substring-tolerant against a fixed vocabulary, and
// unrecognized or absent values degrade to Guest rather than failing:
// a malformed legacy value must never crash navigation.
type Resolver struct {
	vocabulary []vocabEntry
	claimKeys  []string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClaimKeys overrides the JWT claim names inspected for the role value,
// in priority order.
func WithClaimKeys(keys ...string) Option {
	return func(r *Resolver) {
		if len(keys) > 0 {
			r.claimKeys = keys
		}
	}
}

// WithExactVocabulary replaces substring matching with exact matching
// against the canonical role names.
func WithExactVocabulary() Option {
	return func(r *Resolver) {
		r.vocabulary = nil
	}
}

// NewResolver creates a Resolver with the default tolerant vocabulary.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		vocabulary: defaultVocabulary,
		claimKeys:  []string{"role"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve derives the role for cred. A nil credential is Guest. The access
// token's role claim wins over the persisted RoleClaim field.
func (r *Resolver) Resolve(cred *credential.Credential) Role {
	if cred == nil {
		return Guest
	}

	if raw := r.claimFromToken(cred.AccessToken); raw != "" {
		if role, ok := r.match(raw); ok {
			return role
		}
	}

	role, _ := r.match(cred.RoleClaim)
	return role
}

// Normalize maps a raw stored value onto the vocabulary.
func (r *Resolver) Normalize(raw string) Role {
	role, _ := r.match(raw)
	return role
}

func (r *Resolver) match(raw string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return Guest, false
	}

	if r.vocabulary == nil {
		for _, e := range defaultVocabulary {
			if v == e.needle {
				return e.role, true
			}
		}
		return Guest, false
	}

	for _, e := range r.vocabulary {
		if strings.Contains(v, e.needle) {
			return e.role, true
		}
	}
	return Guest, false
}

// claimFromToken reads the role claim out of the access token without
// verifying the signature. The backend validated the token when it issued
// the grant; this decode only reads back what was issued.
func (r *Resolver) claimFromToken(raw string) string {
	if raw == "" {
		return ""
	}

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	for _, key := range r.claimKeys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
