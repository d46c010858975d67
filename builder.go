package sessioncore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KPpay-project/sessioncore/credential"
	"github.com/KPpay-project/sessioncore/events"
	"github.com/KPpay-project/sessioncore/role"
)

// Builder assembles a Manager. Construction is allocation-only until
// Build, which restores any persisted credential and starts the
// cross-context sync loops.
type Builder struct {
	cfg      Config
	store    credential.Store
	backend  Backend
	bus      *events.Bus
	resolver *role.Resolver
	log      *zap.Logger
	now      func() time.Time
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{cfg: defaultConfig()}
}

// WithConfig replaces the configuration. Zero duration fields are filled
// from defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithBackend sets the identity backend. Required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithBus wires the cross-context event bus. Optional; without it, sync
// relies solely on the store's change feed.
func (b *Builder) WithBus(bus *events.Bus) *Builder {
	b.bus = bus
	return b
}

// WithResolver replaces the default role resolver.
func (b *Builder) WithResolver(resolver *role.Resolver) *Builder {
	b.resolver = resolver
	return b
}

// WithLogger sets the logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, restores a credential persisted by an
// earlier run, arms the scheduler for it, and starts the sync loops.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	if b.store == nil {
		return nil, errors.New("sessioncore: credential store required")
	}
	if b.backend == nil {
		return nil, errors.New("sessioncore: identity backend required")
	}

	cfg := b.cfg
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("sessioncore: %w", err)
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	resolver := b.resolver
	if resolver == nil {
		resolver = role.NewResolver()
	}

	m := &Manager{
		cfg:      cfg,
		store:    b.store,
		backend:  b.backend,
		resolver: resolver,
		bus:      b.bus,
		log:      log,
		metrics:  newMetrics(cfg.Metrics.Enabled),
		now:      now,
		origin:   uuid.NewString(),
	}
	m.sched = newRefreshScheduler(cfg.Refresh, m.Refresh, now, log, m.metrics)

	// Restore a session persisted by an earlier run. A corrupt or absent
	// slot degrades to unauthenticated.
	if cred, err := m.store.Get(ctx); err == nil {
		m.cred = cred
		m.sched.ScheduleAt(cred.AccessExpiresAt)
		log.Info("restored persisted session",
			zap.Time("access_expires_at", cred.AccessExpiresAt))
	} else if !errors.Is(err, credential.ErrNotFound) {
		log.Warn("stored credential unreadable at startup", zap.Error(err))
	}

	syncCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	changes, err := m.store.Subscribe(syncCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	m.wg.Add(1)
	go m.runStoreSync(syncCtx, changes)

	if m.bus != nil {
		evs, err := m.bus.Subscribe(syncCtx)
		if err != nil {
			cancel()
			m.wg.Wait()
			return nil, fmt.Errorf("sessioncore: subscribe to event bus: %w", err)
		}
		m.wg.Add(1)
		go m.runBusSync(syncCtx, evs)
	}

	return m, nil
}
