package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	payloadPut   = "put"
	payloadClear = "clear"

	// defaultSessionTTL bounds slots whose credential states no refresh
	// lifetime and was written without remember-me.
	defaultSessionTTL = 24 * time.Hour
)

// RedisStore persists the credential slot in Redis and broadcasts changes
// over pub/sub, which is the cross-process change feed for browser-profile
// style deployments.
type RedisStore struct {
	client     redis.UniversalClient
	key        string
	channel    string
	sessionTTL time.Duration
	now        func() time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithSessionTTL overrides the fallback slot lifetime used when the
// credential is not remember-me and carries no refresh expiry.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewRedisStore creates a store rooted at prefix. Every execution context
// sharing the same prefix shares the same slot.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = "sc"
	}

	s := &RedisStore{
		client:     client,
		key:        prefix + ":credential",
		channel:    prefix + ":changes",
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Store. The slot's TTL tracks the refresh lifetime: the
// slot must outlive the access token so an expired-but-refreshable session
// can still be recovered.
func (s *RedisStore) Put(ctx context.Context, cred *Credential) error {
	data, err := Encode(cred)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, data, s.ttlFor(cred)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.client.Publish(ctx, s.channel, payloadPut).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context) (*Credential, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cred, err := Decode(data)
	if err != nil {
		// Malformed or legacy blob: degrade to unauthenticated, keep the
		// cause attached for callers that want to log it.
		return nil, errors.Join(ErrNotFound, err)
	}
	return cred, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	deleted, err := s.client.Del(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if deleted == 0 {
		return nil
	}

	if err := s.client.Publish(ctx, s.channel, payloadClear).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Subscribe implements Store.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ch := make(chan Change, subscriberBuffer)
	msgs := pubsub.Channel()

	go func() {
		defer close(ch)
		defer func() { _ = pubsub.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var kind ChangeKind
				switch msg.Payload {
				case payloadPut:
					kind = ChangePut
				case payloadClear:
					kind = ChangeClear
				default:
					continue
				}

				select {
				case ch <- Change{Kind: kind, At: time.Now()}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func (s *RedisStore) ttlFor(cred *Credential) time.Duration {
	now := s.now()

	if !cred.RefreshExpiresAt.IsZero() {
		if ttl := cred.RefreshExpiresAt.Sub(now); ttl > 0 {
			return ttl
		}
		return time.Second
	}
	if cred.RememberMe {
		// Refresh lifetime unknown and the user asked to stay signed in;
		// the slot persists until an explicit clear.
		return 0
	}
	return s.sessionTTL
}
