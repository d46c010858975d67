package sessioncore

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := newMetrics(true)

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricGuardAllow)

	if got := m.Get(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success = %d, want 2", got)
	}

	snap := m.Snapshot()
	if got := snap.Get(MetricLoginSuccess); got != 2 {
		t.Fatalf("snapshot login success = %d, want 2", got)
	}
	if got := snap.Get(MetricGuardAllow); got != 1 {
		t.Fatalf("snapshot guard allow = %d, want 1", got)
	}
	if got := snap.Get(MetricLogout); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabledDropsIncrements(t *testing.T) {
	m := newMetrics(false)
	m.Inc(MetricLoginSuccess)

	if got := m.Get(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics recorded %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)

	if got := m.Get(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil metrics returned %d", got)
	}
	if snap := m.Snapshot(); snap.Get(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics snapshot not zero")
	}
}

func TestMetricsOutOfRangeIDIgnored(t *testing.T) {
	m := newMetrics(true)
	m.Inc(MetricID(1000))

	if got := m.Get(MetricID(1000)); got != 0 {
		t.Fatalf("out-of-range counter = %d", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := newMetrics(true)

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricRefreshSuccess); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricIDNamesAreUnique(t *testing.T) {
	seen := make(map[string]MetricID)
	for _, id := range MetricIDs() {
		name := id.String()
		if name == "unknown" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("metrics %d and %d share name %q", prev, id, name)
		}
		seen[name] = id
	}
}
