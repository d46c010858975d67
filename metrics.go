package sessioncore

import "sync/atomic"

// MetricID indexes one counter in the metrics block.
type MetricID uint16

const (
	// MetricLoginSuccess counts sessions started.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected or failed logins.
	MetricLoginFailure
	// MetricLogout counts explicit logouts in this context.
	MetricLogout
	// MetricRefreshSuccess counts completed refresh exchanges.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refresh exchanges.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that piggybacked on an
	// in-flight refresh instead of issuing their own backend call.
	MetricRefreshCoalesced
	// MetricRefreshRetry counts scheduler retries after transient failures.
	MetricRefreshRetry
	// MetricGuardAllow counts navigations admitted by the guard.
	MetricGuardAllow
	// MetricGuardRedirectLogin counts navigations bounced to login.
	MetricGuardRedirectLogin
	// MetricGuardRedirectUnauthorized counts navigations denied on role.
	MetricGuardRedirectUnauthorized
	// MetricCrossContextLogout counts logouts adopted from other contexts.
	MetricCrossContextLogout
	// MetricCrossContextAdopt counts credentials adopted from other
	// contexts (last-writer-wins overwrites).
	MetricCrossContextAdopt

	metricIDCount
)

// String returns the exporter-facing counter name.
func (id MetricID) String() string {
	switch id {
	case MetricLoginSuccess:
		return "login_success"
	case MetricLoginFailure:
		return "login_failure"
	case MetricLogout:
		return "logout"
	case MetricRefreshSuccess:
		return "refresh_success"
	case MetricRefreshFailure:
		return "refresh_failure"
	case MetricRefreshCoalesced:
		return "refresh_coalesced"
	case MetricRefreshRetry:
		return "refresh_retry"
	case MetricGuardAllow:
		return "guard_allow"
	case MetricGuardRedirectLogin:
		return "guard_redirect_login"
	case MetricGuardRedirectUnauthorized:
		return "guard_redirect_unauthorized"
	case MetricCrossContextLogout:
		return "cross_context_logout"
	case MetricCrossContextAdopt:
		return "cross_context_adopt"
	default:
		return "unknown"
	}
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed block of padded atomic counters. All methods are safe
// for concurrent use; a nil or disabled Metrics drops increments.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

func newMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters [metricIDCount]uint64
}

// MetricIDs lists every counter in export order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot copies all counters atomically enough for export purposes.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}

// Get reads one counter from the snapshot.
func (s MetricsSnapshot) Get(id MetricID) uint64 {
	if id >= metricIDCount {
		return 0
	}
	return s.Counters[id]
}
