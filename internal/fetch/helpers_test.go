package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/net/ratelimit"
	"github.com/sawpanic/skinrun/internal/provider"
)

// scriptedSource replays outcomes per item; the last outcome repeats
type scriptedSource struct {
	name    string
	role    models.Role
	mu      sync.Mutex
	scripts map[string][]provider.Outcome
	def     []provider.Outcome
	calls   map[string]int
	panicOn string
	hold    time.Duration

	inflight    int32
	maxInflight int32
}

func newScripted(name string, role models.Role, def ...provider.Outcome) *scriptedSource {
	return &scriptedSource{
		name:    name,
		role:    role,
		scripts: make(map[string][]provider.Outcome),
		def:     def,
		calls:   make(map[string]int),
	}
}

func (s *scriptedSource) Name() string      { return s.name }
func (s *scriptedSource) Role() models.Role { return s.role }

func (s *scriptedSource) script(item string, outs ...provider.Outcome) *scriptedSource {
	s.scripts[item] = outs
	return s
}

func (s *scriptedSource) Lookup(ctx context.Context, req provider.Request, _ http.Header) provider.Outcome {
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		m := atomic.LoadInt32(&s.maxInflight)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxInflight, m, n) {
			break
		}
	}

	if req.Item == s.panicOn {
		panic("scripted panic")
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	outs, ok := s.scripts[req.Item]
	if !ok {
		outs = s.def
	}
	i := s.calls[req.Item]
	s.calls[req.Item]++
	if i >= len(outs) {
		i = len(outs) - 1
	}
	return outs[i]
}

func (s *scriptedSource) callCount(item string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[item]
}

func (s *scriptedSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.calls {
		total += c
	}
	return total
}

func priced(price string, volume int) provider.Outcome {
	return provider.Outcome{
		Kind:    provider.OutcomeOK,
		Listing: provider.Listing{Price: decimal.RequireFromString(price), Volume: volume},
	}
}

var (
	retry   = provider.Outcome{Kind: provider.OutcomeRetryable, Err: errors.New("scripted failure")}
	limited = provider.Outcome{Kind: provider.OutcomeRateLimited, Err: errors.New("scripted throttle")}
	empty   = provider.Outcome{Kind: provider.OutcomeTerminalEmpty}
)

// sleepRecorder records every requested wait without waiting
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Dir = t.TempDir()
	cfg.Sources = []config.SourceConfig{
		{Name: "primary", Kind: config.KindDirect, BaseURL: "http://unused", InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second, ConcurrencyLimit: 3, Timeout: time.Second, Enabled: true},
		{Name: "fallback", Kind: config.KindRender, BaseURL: "http://unused", InitialDelay: 2500 * time.Millisecond, MaxDelay: 12 * time.Second, ConcurrencyLimit: 3, Timeout: time.Second, Enabled: true},
	}
	cfg.Fetch.Seed = 7
	require.NoError(t, cfg.Validate())
	return cfg
}

type harness struct {
	cfg   *config.Config
	rates *ratelimit.Controller
	store *cache.DiskStore
	sleep *sleepRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig(t)
	store, err := cache.NewDiskStore(cfg.Cache.Dir)
	require.NoError(t, err)
	return &harness{
		cfg:   cfg,
		rates: ratelimit.NewController(cfg.Rate, cfg.Sources),
		store: store,
		sleep: &sleepRecorder{},
	}
}

func (h *harness) worker(opts ...WorkerOption) *Worker {
	opts = append([]WorkerOption{WithSleeper(h.sleep.sleep)}, opts...)
	return NewWorker(h.cfg, h.rates, h.store, opts...)
}

func (h *harness) scheduler(sources ...provider.Source) *Scheduler {
	w := h.worker()
	coord := NewCoordinator(sources, w, h.rates, nil, h.cfg.Fetch.MaxRetries)
	return NewScheduler(coord, h.store, h.cfg.Cache.TTL, h.cfg.Fetch.ChunkSize, h.cfg.Fetch.ChunkCooldown,
		WithSchedulerSleeper(h.sleep.sleep))
}
