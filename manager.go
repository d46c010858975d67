package sessioncore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KPpay-project/sessioncore/credential"
	"github.com/KPpay-project/sessioncore/events"
	"github.com/KPpay-project/sessioncore/role"
)

// Manager orchestrates the session lifecycle for one execution context. It
// is the single source of truth for "is the session valid right now" and
// the sole writer of the credential store.
//
// Manager keeps an in-memory mirror of the persisted credential so that
// CurrentState never performs I/O. The mirror is updated only by Login,
// Refresh, Logout, and the cross-context change feed — last writer wins.
type Manager struct {
	cfg      Config
	store    credential.Store
	backend  Backend
	resolver *role.Resolver
	bus      *events.Bus
	log      *zap.Logger
	metrics  *Metrics
	now      func() time.Time

	// origin identifies this execution context on the event bus so it can
	// ignore its own broadcasts.
	origin string

	mu   sync.RWMutex
	cred *credential.Credential

	refreshMu sync.Mutex
	inflight  *refreshCall

	sched *refreshScheduler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

type refreshCall struct {
	done chan struct{}
	err  error
}

// Origin returns this context's identity on the event bus.
func (m *Manager) Origin() string {
	return m.origin
}

// Metrics exposes the counter block.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot returns a point-in-time copy of every counter.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Login stores a freshly issued credential, starts the refresh scheduler,
// and broadcasts session.started. Input tokens come from the identity
// backend; Login validates presence and expiry, nothing more.
func (m *Manager) Login(ctx context.Context, input LoginInput) error {
	if m.closed.Load() {
		return ErrClosed
	}

	now := m.now()
	if err := input.validate(now); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return err
	}

	cred := &credential.Credential{
		AccessToken:      input.AccessToken,
		RefreshToken:     input.RefreshToken,
		AccessExpiresAt:  input.ExpiresAt,
		RefreshExpiresAt: input.RefreshExpiresAt,
		IssuedAt:         now,
		RememberMe:       input.RememberMe,
		RoleClaim:        input.RoleClaim,
	}

	if err := m.store.Put(ctx, cred); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.log.Error("credential write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	m.setCredential(cred)
	m.sched.ScheduleAt(cred.AccessExpiresAt)
	m.publish(ctx, events.TypeStarted, cred.AccessExpiresAt)

	m.metrics.Inc(MetricLoginSuccess)
	m.log.Info("session started",
		zap.Time("access_expires_at", cred.AccessExpiresAt),
		zap.Bool("remember_me", cred.RememberMe),
	)
	return nil
}

// Authenticate exchanges user credentials with the identity backend and
// performs the login write.
func (m *Manager) Authenticate(ctx context.Context, identifier, secret string) error {
	if m.closed.Load() {
		return ErrClosed
	}

	grant, err := m.backend.ExchangeCredentials(ctx, identifier, secret)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return err
	}

	return m.Login(ctx, LoginInput{
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		ExpiresAt:        grant.ExpiresAt,
		RefreshExpiresAt: grant.RefreshExpiresAt,
		RoleClaim:        grant.RoleClaim,
	})
}

// Logout clears the credential, stops the scheduler, and broadcasts
// session.ended. Logging out with no active session is a no-op, not an
// error. Local state is dropped even when the store write fails; the
// returned ErrStorageUnavailable tells the UI that other contexts may not
// have seen the logout.
func (m *Manager) Logout(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.mu.Lock()
	had := m.cred != nil
	m.cred = nil
	m.mu.Unlock()

	m.sched.Stop()

	err := m.store.Clear(ctx)

	if had {
		m.publish(ctx, events.TypeEnded, time.Time{})
		m.metrics.Inc(MetricLogout)
		m.log.Info("session ended")
	}

	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// calls collapse into a single in-flight backend exchange; every caller
// observes that one call's outcome.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.refreshMu.Lock()
	if call := m.inflight; call != nil {
		m.refreshMu.Unlock()
		m.metrics.Inc(MetricRefreshCoalesced)

		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.refreshMu.Unlock()

	call.err = m.doRefresh(ctx)

	m.refreshMu.Lock()
	m.inflight = nil
	m.refreshMu.Unlock()
	close(call.done)

	return call.err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	current := m.snapshot()
	if current == nil {
		return ErrNoSession
	}

	if !current.Refreshable(m.now()) {
		m.forceLogout(ctx, "refresh token expired")
		return ErrSessionExpired
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Refresh.CallTimeout)
	grant, err := m.backend.RefreshToken(callCtx, current.RefreshToken)
	cancel()
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		if errors.Is(err, ErrBackendUnreachable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
		}
		// The backend rejected the refresh token: the session is gone
		// server-side, so this context follows.
		m.forceLogout(ctx, "refresh rejected by backend")
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if grant.AccessToken == "" || !grant.ExpiresAt.After(m.now()) {
		m.metrics.Inc(MetricRefreshFailure)
		return fmt.Errorf("%w: backend returned unusable refresh grant", ErrInvalidGrant)
	}

	next := current.Clone()
	next.AccessToken = grant.AccessToken
	next.AccessExpiresAt = grant.ExpiresAt
	next.IssuedAt = m.now()
	if grant.RefreshToken != "" {
		next.RefreshToken = grant.RefreshToken
	}
	if !grant.RefreshExpiresAt.IsZero() {
		next.RefreshExpiresAt = grant.RefreshExpiresAt
	}
	if grant.RoleClaim != "" {
		next.RoleClaim = grant.RoleClaim
	}

	// The exchange suspended; the slot may have moved on meanwhile (another
	// context logged in or out). A superseded result is discarded as a
	// no-op rather than clobbering the newer write.
	m.mu.Lock()
	if m.cred == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	if m.cred.Supersedes(next) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.store.Put(ctx, next); err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		m.log.Error("refreshed credential write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	m.setCredential(next)
	m.sched.ScheduleAt(next.AccessExpiresAt)
	m.publish(ctx, events.TypeRefreshed, next.AccessExpiresAt)

	m.metrics.Inc(MetricRefreshSuccess)
	m.log.Debug("session refreshed", zap.Time("access_expires_at", next.AccessExpiresAt))
	return nil
}

// CurrentState derives the session state from the mirrored credential and
// the clock. Pure and synchronous; safe on every navigation check.
func (m *Manager) CurrentState() SessionState {
	cred := m.snapshot()
	if cred == nil {
		return SessionState{Kind: StateUnauthenticated, Role: role.Guest}
	}

	now := m.now()
	if cred.AccessValid(now) {
		return SessionState{
			Kind:      StateAuthenticated,
			Role:      m.resolver.Resolve(cred),
			ExpiresAt: cred.AccessExpiresAt,
		}
	}

	return SessionState{
		Kind:        StateExpired,
		ExpiresAt:   cred.AccessExpiresAt,
		Refreshable: cred.Refreshable(now),
	}
}

// CurrentRole is shorthand for CurrentState().Role; Guest unless the
// session is authenticated right now.
func (m *Manager) CurrentRole() role.Role {
	return m.CurrentState().Role
}

// Close stops the scheduler and the cross-context sync loops. The manager
// rejects further operations but does not log the session out: the
// credential stays persisted for the next run.
func (m *Manager) Close() {
	if m.closed.Swap(true) {
		return
	}

	m.sched.Stop()
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// forceLogout is the implicit variant used when the session died
// server-side: best effort, never surfaces storage errors to the caller.
func (m *Manager) forceLogout(ctx context.Context, reason string) {
	m.mu.Lock()
	had := m.cred != nil
	m.cred = nil
	m.mu.Unlock()

	m.sched.Stop()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("credential clear failed during implicit logout", zap.Error(err))
	}

	if had {
		m.publish(ctx, events.TypeEnded, time.Time{})
		m.metrics.Inc(MetricLogout)
		m.log.Warn("session implicitly ended", zap.String("reason", reason))
	}
}

func (m *Manager) snapshot() *credential.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

func (m *Manager) setCredential(cred *credential.Credential) {
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
}

func (m *Manager) publish(ctx context.Context, eventType string, expiresAt time.Time) {
	if m.bus == nil {
		return
	}

	ev := events.Event{
		Type:      eventType,
		Origin:    m.origin,
		At:        m.now(),
		ExpiresAt: expiresAt,
	}
	if err := m.bus.Publish(ctx, ev); err != nil {
		// Events are advisory; the store remains the source of truth.
		m.log.Warn("session event publish failed",
			zap.String("type", eventType), zap.Error(err))
	}
}
