package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/provider"
)

type countingProgress struct{ n int32 }

func (p *countingProgress) Increment() { atomic.AddInt32(&p.n, 1) }

func items(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sticker | Item %02d", i)
	}
	return out
}

func TestFetchAllEmptyInput(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))

	got := h.scheduler(primary).FetchAll(context.Background(), nil, "USD", 730, nil)
	assert.Empty(t, got)
	assert.Equal(t, 0, primary.totalCalls())
	assert.Empty(t, h.sleep.all())
}

func TestFetchAllDedupesAndCoversEveryItem(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	primary.script("Sticker | Item 01", empty)
	fallback := newScripted("fallback", models.RoleFallback, empty)

	in := append(items(5), "Sticker | Item 00", "Sticker | Item 03")
	progress := &countingProgress{}
	got := h.scheduler(primary, fallback).FetchAll(context.Background(), in, "USD", 730, progress)

	require.Len(t, got, 5)
	for _, it := range items(5) {
		q, ok := got[it]
		require.True(t, ok, it)
		assert.Equal(t, it, q.Item)
	}
	assert.Equal(t, 1, primary.callCount("Sticker | Item 00"), "duplicates resolve once")
	assert.False(t, got["Sticker | Item 01"].HasPrice())
	assert.Equal(t, models.SourceNone, got["Sticker | Item 01"].Source)
	assert.Equal(t, int32(5), progress.n)
}

func TestFetchAllCacheHitsSkipNetwork(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	fallback := newScripted("fallback", models.RoleFallback, priced("2.00", 1))

	// a fresh entry for the fallback source is enough for a hit
	cached := models.PriceQuote{Item: "Sticker | Item 00", Source: models.SourceFallback, Origin: "fallback", Currency: "USD", MarketplaceID: 730}
	cached.CurrentPrice.Valid = true
	cached.CurrentPrice.Decimal = priced("4.20", 1).Listing.Price
	cache.PutJSON(context.Background(), h.store, cache.Key("fallback", "Sticker | Item 00", "USD", 730), cached)

	got := h.scheduler(primary, fallback).FetchAll(context.Background(), items(2), "USD", 730, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "4.2", got["Sticker | Item 00"].CurrentPrice.Decimal.String())
	assert.Equal(t, 0, primary.callCount("Sticker | Item 00"))
	assert.Equal(t, 1, primary.callCount("Sticker | Item 01"))
}

// lookupCounter tallies cache lookups from every layer it is attached to
type lookupCounter struct {
	nopObserver
	hits, misses int32
}

func (c *lookupCounter) CacheLookup(hit bool) {
	if hit {
		atomic.AddInt32(&c.hits, 1)
		return
	}
	atomic.AddInt32(&c.misses, 1)
}

func TestFetchAllCountsEachLookupOnce(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	obs := &lookupCounter{}

	cached := models.PriceQuote{Item: "Sticker | Item 00", Source: models.SourcePrimary, Origin: "primary", Currency: "USD", MarketplaceID: 730}
	cached.CurrentPrice.Valid = true
	cached.CurrentPrice.Decimal = priced("3.00", 1).Listing.Price
	cache.PutJSON(context.Background(), h.store, cache.Key("primary", "Sticker | Item 00", "USD", 730), cached)

	w := h.worker(WithObserver(obs))
	coord := NewCoordinator([]provider.Source{primary}, w, h.rates, nil, h.cfg.Fetch.MaxRetries)
	s := NewScheduler(coord, h.store, h.cfg.Cache.TTL, h.cfg.Fetch.ChunkSize, h.cfg.Fetch.ChunkCooldown,
		WithSchedulerSleeper(h.sleep.sleep), WithSchedulerObserver(obs))

	got := s.FetchAll(context.Background(), items(2), "USD", 730, nil)
	require.Len(t, got, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&obs.hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&obs.misses), "the worker must not record the miss again")
}

func TestFetchAllAllCachedReturnsImmediately(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	s := h.scheduler(primary)

	first := s.FetchAll(context.Background(), items(3), "USD", 730, nil)
	require.Len(t, first, 3)
	calls := primary.totalCalls()
	sleeps := len(h.sleep.all())

	second := s.FetchAll(context.Background(), items(3), "USD", 730, nil)
	require.Len(t, second, 3)
	assert.Equal(t, calls, primary.totalCalls())
	assert.Equal(t, sleeps, len(h.sleep.all()), "no pre-delay or cool-down on an all-hit batch")
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	primary.hold = 20 * time.Millisecond

	got := h.scheduler(primary).FetchAll(context.Background(), items(20), "USD", 730, nil)
	require.Len(t, got, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&primary.maxInflight), int32(h.cfg.Fetch.Concurrency))
	assert.Greater(t, atomic.LoadInt32(&primary.maxInflight), int32(1), "chunk items run concurrently")
}

func TestFetchAllCooldownBetweenChunks(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))

	h.scheduler(primary).FetchAll(context.Background(), items(20), "USD", 730, nil)

	cooldowns := 0
	for _, d := range h.sleep.all() {
		if d == h.cfg.Fetch.ChunkCooldown {
			cooldowns++
		}
	}
	assert.Equal(t, 2, cooldowns, "20 items in chunks of 8 need two cool-downs")
}

func TestFetchAllPanicGuard(t *testing.T) {
	h := newHarness(t)
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	primary.panicOn = "Sticker | Item 02"

	var got map[string]models.PriceQuote
	require.NotPanics(t, func() {
		got = h.scheduler(primary).FetchAll(context.Background(), items(4), "USD", 730, nil)
	})
	require.Len(t, got, 4)
	assert.Equal(t, models.SourceError, got["Sticker | Item 02"].Source)
	assert.True(t, got["Sticker | Item 03"].HasPrice())
}

func TestFetchAllSequentialIsConcurrencyOne(t *testing.T) {
	h := newHarness(t)
	h.cfg.Fetch.Concurrency = 1
	primary := newScripted("primary", models.RolePrimary, priced("1.00", 1))
	primary.hold = 5 * time.Millisecond

	got := h.scheduler(primary).FetchAll(context.Background(), items(6), "USD", 730, nil)
	require.Len(t, got, 6)
	assert.Equal(t, int32(1), atomic.LoadInt32(&primary.maxInflight))
}
