package sessioncore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/KPpay-project/sessioncore/credential"
	"github.com/KPpay-project/sessioncore/events"
)

// Cross-context synchronization: every execution context sharing the
// persisted slot subscribes to its change feed (and, when a bus is wired,
// to lifecycle broadcasts). A logout anywhere is honored everywhere within
// one notification cycle; a newer login overwrites this context's state —
// last writer wins, no locking.

func (m *Manager) runStoreSync(ctx context.Context, changes <-chan credential.Change) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			m.applyStoreChange(ctx, change)
		}
	}
}

func (m *Manager) applyStoreChange(ctx context.Context, change credential.Change) {
	switch change.Kind {
	case credential.ChangeClear:
		m.adoptLogout("slot cleared in another context")

	case credential.ChangePut:
		cred, err := m.store.Get(ctx)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				m.adoptLogout("slot empty after change notification")
				return
			}
			m.log.Warn("cross-context credential read failed", zap.Error(err))
			return
		}
		m.adoptCredential(cred)
	}
}

// adoptLogout drives this context to the logged-out state without writing
// the store (the other context already did). Idempotent, so a context's
// own clear echoing back through the feed is a no-op.
func (m *Manager) adoptLogout(reason string) {
	m.mu.Lock()
	had := m.cred != nil
	m.cred = nil
	m.mu.Unlock()

	if !had {
		return
	}

	m.sched.Stop()
	m.metrics.Inc(MetricCrossContextLogout)
	m.log.Info("session ended by another context", zap.String("reason", reason))
}

// adoptCredential takes over the last writer's credential. A context's own
// write echoes back as an equal credential and is ignored.
func (m *Manager) adoptCredential(cred *credential.Credential) {
	m.mu.Lock()
	if m.cred.Equal(cred) {
		m.mu.Unlock()
		return
	}
	m.cred = cred
	m.mu.Unlock()

	m.sched.ScheduleAt(cred.AccessExpiresAt)
	m.metrics.Inc(MetricCrossContextAdopt)
	m.log.Info("adopted credential written by another context",
		zap.Time("access_expires_at", cred.AccessExpiresAt))
}

func (m *Manager) runBusSync(ctx context.Context, evs <-chan events.Event) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			if ev.Origin == m.origin {
				continue
			}

			// Only logout propagates through the bus; started/refreshed
			// state travels with the store's own change feed.
			if ev.Type == events.TypeEnded {
				m.adoptLogout("logout broadcast from " + ev.Origin)
			}
		}
	}
}
