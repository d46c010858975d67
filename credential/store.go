package credential

import (
	"context"
	"errors"
	"time"
)

// ChangeKind classifies a mutation of the persisted slot.
type ChangeKind uint8

const (
	// ChangePut means a credential was written (login or refresh).
	ChangePut ChangeKind = iota + 1
	// ChangeClear means the slot was emptied (logout).
	ChangeClear
)

// Change is delivered to every subscribed execution context when the slot
// mutates, including the context that performed the write. Consumers must
// therefore handle their own echoes idempotently.
type Change struct {
	Kind ChangeKind
	At   time.Time
}

var (
	// ErrNotFound is returned by Get when no credential is persisted.
	ErrNotFound = errors.New("no credential stored")

	// ErrUnavailable is returned when the persistence layer itself failed.
	// An unpersisted login must never be treated as a valid session on the
	// next check, so this is never swallowed.
	ErrUnavailable = errors.New("credential store unavailable")
)

// Store is the durable single-slot persistence contract. Implementations
// hold exactly one credential per profile (last writer wins) and perform no
// network calls to the identity backend.
type Store interface {
	// Put overwrites the slot with cred.
	Put(ctx context.Context, cred *Credential) error

	// Get returns the stored credential, or ErrNotFound when the slot is
	// empty. An undecodable blob degrades to ErrNotFound (joined with the
	// decode error) rather than crashing navigation.
	Get(ctx context.Context) (*Credential, error)

	// Clear empties the slot. Clearing an already-empty slot is a no-op.
	Clear(ctx context.Context) error

	// Subscribe delivers change notifications until ctx is cancelled, after
	// which the channel is closed. Slow consumers may miss intermediate
	// changes; the latest state is always recoverable via Get.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
