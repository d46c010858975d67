package credential

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory Store. A single instance acts as the shared
// slot for every execution context in the process, which makes it the
// default choice for tests and for embedding several app shells in one
// binary.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *Credential
	subs map[int]chan Change
	next int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[int]chan Change)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	s.cred = cred.Clone()
	s.mu.Unlock()

	s.notify(ChangePut)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return nil, ErrNotFound
	}
	return s.cred.Clone(), nil
}

// Clear implements Store. Clearing an empty slot emits no notification.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	existed := s.cred != nil
	s.cred = nil
	s.mu.Unlock()

	if existed {
		s.notify(ChangeClear)
	}
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (s *MemoryStore) notify(kind ChangeKind) {
	change := Change{Kind: kind, At: time.Now()}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		// Drop rather than block; consumers re-read the slot on ChangePut.
		select {
		case ch <- change:
		default:
		}
	}
}
