package sessioncore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/KPpay-project/sessioncore/credential"
)

// Scheduler tests run on the real clock with short lifetimes.
func newSchedulerTestManager(t *testing.T, cfg Config, backend *stubBackend) *Manager {
	t.Helper()

	m, err := New().
		WithConfig(cfg).
		WithStore(credential.NewMemoryStore()).
		WithBackend(backend).
		Build(context.Background())
	if err != nil {
		t.Fatalf("manager build failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func schedulerTestConfig() Config {
	cfg := Config{}
	cfg.Refresh.SafetyMargin = 100 * time.Millisecond
	cfg.Refresh.CallTimeout = time.Second
	cfg.Refresh.MaxRetries = 2
	cfg.Refresh.RetryBackoff = 20 * time.Millisecond
	cfg.Refresh.RetryBackoffMax = 40 * time.Millisecond
	cfg.Refresh.RetryJitter = 5 * time.Millisecond
	return cfg
}

func shortLivedLogin(t *testing.T, m *Manager, accessTTL time.Duration) {
	t.Helper()

	now := time.Now()
	err := m.Login(context.Background(), LoginInput{
		AccessToken:      "short-access",
		RefreshToken:     "short-refresh",
		ExpiresAt:        now.Add(accessTTL),
		RefreshExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestSchedulerRefreshesBeforeExpiry(t *testing.T) {
	backend := newStubBackend(time.Now)
	backend.accessTTL = 10 * time.Second

	m := newSchedulerTestManager(t, schedulerTestConfig(), backend)
	shortLivedLogin(t, m, 150*time.Millisecond)

	waitFor(t, func() bool {
		return backend.refreshCount() >= 1
	}, "scheduler fired a proactive refresh")

	// The rotated token is long-lived, so the session stays authenticated
	// past the original expiry.
	time.Sleep(200 * time.Millisecond)
	if st := m.CurrentState(); st.Kind != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated after proactive refresh", st.Kind)
	}
}

func TestSchedulerStopsOnLogout(t *testing.T) {
	backend := newStubBackend(time.Now)

	m := newSchedulerTestManager(t, schedulerTestConfig(), backend)
	shortLivedLogin(t, m, 150*time.Millisecond)

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	time.Sleep(250 * time.Millisecond)
	if got := backend.refreshCount(); got != 0 {
		t.Fatalf("scheduler refreshed %d times after logout, want 0", got)
	}
}

func TestSchedulerRetriesTransientFailuresUpToCap(t *testing.T) {
	backend := newStubBackend(time.Now)
	backend.setRefreshErr(fmt.Errorf("%w: connection refused", ErrBackendUnreachable))

	m := newSchedulerTestManager(t, schedulerTestConfig(), backend)
	shortLivedLogin(t, m, 120*time.Millisecond)

	// Initial attempt plus MaxRetries.
	waitFor(t, func() bool {
		return backend.refreshCount() == 3
	}, "scheduler exhausted its retries")

	time.Sleep(150 * time.Millisecond)
	if got := backend.refreshCount(); got != 3 {
		t.Fatalf("backend calls = %d, want retries capped at 3", got)
	}
	if got := m.MetricsSnapshot().Get(MetricRefreshRetry); got != 2 {
		t.Fatalf("retry counter = %d, want 2", got)
	}

	// The session itself survives: a guard check can still recover it.
	backend.setRefreshErr(nil)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("manual refresh after retries failed: %v", err)
	}
}

func TestSchedulerDoesNotRetryTerminalFailures(t *testing.T) {
	backend := newStubBackend(time.Now)
	backend.setRefreshErr(fmt.Errorf("invalid_grant"))

	m := newSchedulerTestManager(t, schedulerTestConfig(), backend)
	shortLivedLogin(t, m, 120*time.Millisecond)

	waitFor(t, func() bool {
		return backend.refreshCount() == 1
	}, "scheduler attempted the refresh once")

	time.Sleep(150 * time.Millisecond)
	if got := backend.refreshCount(); got != 1 {
		t.Fatalf("backend calls = %d, terminal failures must not retry", got)
	}

	// A backend rejection ends the session server-side and locally.
	if st := m.CurrentState(); st.Kind != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", st.Kind)
	}
}
