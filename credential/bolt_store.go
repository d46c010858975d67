package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCredential = []byte("credential")
	keySlot          = []byte("slot")
)

// BoltStore persists the credential slot in a local bbolt file, the shape
// used by the mobile shell where the profile lives on the device.
//
// The change feed covers subscribers within this process only; contexts in
// other processes converge through the session event bus instead.
type BoltStore struct {
	db *bbolt.DB

	mu   sync.RWMutex
	subs map[int]chan Change
	next int
}

// OpenBoltStore opens (creating if needed) the credential database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredential)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &BoltStore{db: db, subs: make(map[int]chan Change)}, nil
}

// Close releases the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put implements Store.
func (s *BoltStore) Put(_ context.Context, cred *Credential) error {
	data, err := Encode(cred)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredential).Put(keySlot, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.notify(ChangePut)
	return nil
}

// Get implements Store.
func (s *BoltStore) Get(_ context.Context) (*Credential, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketCredential).Get(keySlot); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}

	cred, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrNotFound, err)
	}
	return cred, nil
}

// Clear implements Store.
func (s *BoltStore) Clear(_ context.Context) error {
	existed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredential)
		existed = b.Get(keySlot) != nil
		return b.Delete(keySlot)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if existed {
		s.notify(ChangeClear)
	}
	return nil
}

// Subscribe implements Store.
func (s *BoltStore) Subscribe(ctx context.Context) (<-chan Change, error) {
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

func (s *BoltStore) notify(kind ChangeKind) {
	change := Change{Kind: kind, At: time.Now()}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
