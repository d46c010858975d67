package role

// Role is the normalized authorization category attached to a session.
type Role uint8

const (
	// Guest is the neutral role: no credential, or a credential whose role
	// value is absent or unrecognized.
	Guest Role = iota
	// User is an end user of the consumer application.
	User
	// Merchant is a merchant-account principal.
	Merchant
	// Admin is a back-office operator of the administrative console.
	Admin
	// Client is an API-client principal.
	Client

	roleCount
)

// String returns the canonical lowercase name.
func (r Role) String() string {
	switch r {
	case Guest:
		return "guest"
	case User:
		return "user"
	case Merchant:
		return "merchant"
	case Admin:
		return "admin"
	case Client:
		return "client"
	default:
		return "unknown"
	}
}

// Set is a bitmask of permitted roles, declared statically per route.
type Set uint8

// NewSet builds a set from the given roles.
func NewSet(roles ...Role) Set {
	var s Set
	for _, r := range roles {
		s |= 1 << r
	}
	return s
}

// Has reports whether r is in the set.
func (s Set) Has(r Role) bool {
	return s&(1<<r) != 0
}

// Empty reports whether no role was declared.
func (s Set) Empty() bool {
	return s == 0
}
