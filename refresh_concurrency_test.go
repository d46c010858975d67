package sessioncore

import (
	"context"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleBackendCall(t *testing.T) {
	m, _, backend, clock := newTestManager(t)

	if err := m.Login(context.Background(), testLoginInput(clock)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	backend.gate = make(chan struct{})
	backend.entered = make(chan struct{}, 1)

	const n = 16

	results := make(chan error, n)
	go func() { results <- m.Refresh(context.Background()) }()
	<-backend.entered

	// The leader is parked inside the backend call; every caller started
	// from here on must coalesce onto it.
	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Refresh(context.Background())
		}()
	}

	waitFor(t, func() bool {
		return m.MetricsSnapshot().Get(MetricRefreshCoalesced) == n-1
	}, "followers coalesced onto the in-flight refresh")

	close(backend.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		if err := <-results; err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}

	if got := backend.refreshCount(); got != 1 {
		t.Fatalf("backend refresh calls = %d, want exactly 1", got)
	}
	if got := m.MetricsSnapshot().Get(MetricRefreshSuccess); got != 1 {
		t.Fatalf("refresh success counter = %d, want 1", got)
	}
}

func TestRefreshConcurrencyFollowerSeesLeaderError(t *testing.T) {
	m, _, backend, clock := newTestManager(t)

	if err := m.Login(context.Background(), testLoginInput(clock)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	backend.setRefreshErr(context.DeadlineExceeded)
	backend.gate = make(chan struct{})
	backend.entered = make(chan struct{}, 1)

	leader := make(chan error, 1)
	go func() { leader <- m.Refresh(context.Background()) }()
	<-backend.entered

	follower := make(chan error, 1)
	go func() { follower <- m.Refresh(context.Background()) }()

	waitFor(t, func() bool {
		return m.MetricsSnapshot().Get(MetricRefreshCoalesced) == 1
	}, "follower coalesced")
	close(backend.gate)

	leaderErr := <-leader
	followerErr := <-follower
	if leaderErr == nil || followerErr == nil {
		t.Fatalf("expected both callers to fail, got leader=%v follower=%v", leaderErr, followerErr)
	}
	if leaderErr.Error() != followerErr.Error() {
		t.Fatalf("follower saw %v, leader saw %v", followerErr, leaderErr)
	}
}
