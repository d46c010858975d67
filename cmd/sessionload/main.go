// Command sessionload exercises the session core under concurrency: several
// execution contexts share one credential store and event bus while workers
// hammer route-guard checks and token refreshes. It prints per-phase latency
// percentiles and the aggregated counter block.
//
// Environment is loaded from a local .env file when present (REDIS_ADDR
// switches the store and bus from in-memory to Redis).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sessioncore "github.com/KPpay-project/sessioncore"
	"github.com/KPpay-project/sessioncore/credential"
	"github.com/KPpay-project/sessioncore/events"
	"github.com/KPpay-project/sessioncore/guard"
	"github.com/KPpay-project/sessioncore/role"
)

func main() {
	_ = godotenv.Load()

	var (
		contexts    = flag.Int("contexts", 4, "number of execution contexts sharing the store")
		ops         = flag.Int("ops", 50000, "operations per phase (navigate + refresh)")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		accessTTL   = flag.Duration("access-ttl", 2*time.Second, "access token lifetime issued by the stub backend")
		verbose     = flag.Bool("v", false, "enable development logging")
	)
	flag.Parse()

	if *contexts <= 0 || *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "contexts, ops, and concurrency must be > 0")
		os.Exit(2)
	}

	log := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
			os.Exit(1)
		}
		log = dev
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	backend := &stubBackend{accessTTL: *accessTTL, refreshTTL: time.Hour}

	stores, bus, cleanup, err := buildInfra(*contexts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "infrastructure setup failed: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// The safety margin must stay well below the short access lifetime or
	// the scheduler would refresh continuously.
	var cfg sessioncore.Config
	cfg.Refresh.SafetyMargin = *accessTTL / 4

	managers := make([]*sessioncore.Manager, *contexts)
	guards := make([]*guard.Guard, *contexts)
	for i := range managers {
		m, err := sessioncore.New().
			WithConfig(cfg).
			WithStore(stores[i]).
			WithBackend(backend).
			WithBus(bus).
			WithLogger(log.Named(fmt.Sprintf("ctx-%d", i))).
			Build(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "manager build failed: %v\n", err)
			os.Exit(1)
		}
		defer m.Close()
		managers[i] = m
		guards[i] = guard.New(m)
	}

	if err := managers[0].Authenticate(ctx, "load@example.com", "load"); err != nil {
		fmt.Fprintf(os.Stderr, "seed login failed: %v\n", err)
		os.Exit(1)
	}
	// Give the other contexts a beat to adopt the credential.
	time.Sleep(100 * time.Millisecond)

	policy := guard.Policy{
		Path:    "/load",
		Allowed: role.NewSet(role.User, role.Merchant, role.Admin),
	}

	navigateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		g := guards[r.Intn(len(guards))]
		return g.Check(ctx, policy) == guard.Allow
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		m := managers[r.Intn(len(managers))]
		return m.Refresh(ctx) == nil
	})

	fmt.Println("---- results ----")
	printStats("navigate", navigateStats)
	printStats("refresh", refreshStats)
	fmt.Printf("backend calls: exchanges=%d refreshes=%d\n",
		backend.exchanges.Load(), backend.refreshes.Load())

	fmt.Println("---- counters (all contexts) ----")
	for _, id := range sessioncore.MetricIDs() {
		var total uint64
		for _, m := range managers {
			total += m.MetricsSnapshot().Get(id)
		}
		fmt.Printf("%-30s %d\n", id, total)
	}
}

// buildInfra wires one store per context. With REDIS_ADDR unset a miniredis
// instance backs both the stores and the cross-context event stream, which
// keeps the binary self-contained.
func buildInfra(contexts int) ([]credential.Store, *events.Bus, func(), error) {
	addr := os.Getenv("REDIS_ADDR")

	var mr *miniredis.Miniredis
	if addr == "" {
		started, err := miniredis.Run()
		if err != nil {
			return nil, nil, nil, err
		}
		mr = started
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	stores := make([]credential.Store, contexts)
	for i := range stores {
		stores[i] = credential.NewRedisStore(client, "sessionload")
	}

	bus, err := events.NewRedisStream(client, events.DefaultTopic)
	if err != nil {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = bus.Close()
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return stores, bus, cleanup, nil
}

func runPhase(ops, concurrency int, op func(*rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// stubBackend issues synthetic grants so the load test runs without an
// identity service.
type stubBackend struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	exchanges atomic.Int64
	refreshes atomic.Int64
}

func (b *stubBackend) ExchangeCredentials(_ context.Context, _, _ string) (*sessioncore.TokenGrant, error) {
	n := b.exchanges.Add(1)
	return b.grant(n), nil
}

func (b *stubBackend) RefreshToken(_ context.Context, _ string) (*sessioncore.TokenGrant, error) {
	n := b.refreshes.Add(1)
	return b.grant(n), nil
}

func (b *stubBackend) grant(n int64) *sessioncore.TokenGrant {
	now := time.Now()
	return &sessioncore.TokenGrant{
		AccessToken:      fmt.Sprintf("access-%d", n),
		RefreshToken:     fmt.Sprintf("refresh-%d", n),
		ExpiresAt:        now.Add(b.accessTTL),
		RefreshExpiresAt: now.Add(b.refreshTTL),
		RoleClaim:        "merchant",
	}
}
