package sessioncore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KPpay-project/sessioncore/credential"
)

// fakeClock is a manually advanced time source shared by the manager under
// test and the stub backend.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stubBackend issues deterministic grants and records call counts. A non-nil
// gate blocks RefreshToken until the gate closes; entered is signaled once
// per refresh call before blocking.
type stubBackend struct {
	mu         sync.Mutex
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
	roleClaim  string

	exchangeErr error
	refreshErr  error

	gate    chan struct{}
	entered chan struct{}

	exchanges int
	refreshes int
	serial    int
}

func newStubBackend(now func() time.Time) *stubBackend {
	return &stubBackend{
		now:        now,
		accessTTL:  time.Hour,
		refreshTTL: 30 * 24 * time.Hour,
		roleClaim:  "user",
	}
}

func (b *stubBackend) ExchangeCredentials(_ context.Context, _, _ string) (*TokenGrant, error) {
	b.mu.Lock()
	b.exchanges++
	err := b.exchangeErr
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return b.grant(), nil
}

func (b *stubBackend) RefreshToken(_ context.Context, _ string) (*TokenGrant, error) {
	b.mu.Lock()
	b.refreshes++
	err := b.refreshErr
	gate := b.gate
	entered := b.entered
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return b.grant(), nil
}

func (b *stubBackend) grant() *TokenGrant {
	b.mu.Lock()
	b.serial++
	n := b.serial
	b.mu.Unlock()

	now := b.now()
	return &TokenGrant{
		AccessToken:      fmt.Sprintf("access-%d", n),
		RefreshToken:     fmt.Sprintf("refresh-%d", n),
		ExpiresAt:        now.Add(b.accessTTL),
		RefreshExpiresAt: now.Add(b.refreshTTL),
		RoleClaim:        b.roleClaim,
	}
}

func (b *stubBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

func (b *stubBackend) setRefreshErr(err error) {
	b.mu.Lock()
	b.refreshErr = err
	b.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *credential.MemoryStore, *stubBackend, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	store := credential.NewMemoryStore()
	backend := newStubBackend(clock.Now)

	m, err := New().
		WithStore(store).
		WithBackend(backend).
		WithClock(clock.Now).
		Build(context.Background())
	if err != nil {
		t.Fatalf("manager build failed: %v", err)
	}
	t.Cleanup(m.Close)

	return m, store, backend, clock
}

func testLoginInput(clock *fakeClock) LoginInput {
	now := clock.Now()
	return LoginInput{
		AccessToken:      "access-seed",
		RefreshToken:     "refresh-seed",
		ExpiresAt:        now.Add(time.Hour),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
		RoleClaim:        "user",
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline: %s", msg)
}
