package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/models"
)

// Scheduler resolves a batch of items: cache hits first, then the misses
// in fixed-size chunks with a cool-down between chunks
type Scheduler struct {
	coord     *Coordinator
	store     cache.Store
	ttl       time.Duration
	chunkSize int
	cooldown  time.Duration
	sleep     Sleeper
	observer  Observer
}

// SchedulerOption customises a Scheduler
type SchedulerOption func(*Scheduler)

// WithSchedulerSleeper replaces the cool-down wait
func WithSchedulerSleeper(s Sleeper) SchedulerOption { return func(sc *Scheduler) { sc.sleep = s } }

// WithSchedulerObserver attaches a metrics observer
func WithSchedulerObserver(o Observer) SchedulerOption {
	return func(sc *Scheduler) { sc.observer = o }
}

// NewScheduler creates a scheduler over a coordinator
func NewScheduler(coord *Coordinator, store cache.Store, ttl time.Duration, chunkSize int, cooldown time.Duration, opts ...SchedulerOption) *Scheduler {
	if chunkSize < 1 {
		chunkSize = 1
	}
	s := &Scheduler{
		coord:     coord,
		store:     store,
		ttl:       ttl,
		chunkSize: chunkSize,
		cooldown:  cooldown,
		sleep:     SleepContext,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll returns a quote for every distinct requested item. It never
// fails: items whose resolution panics come back tagged as errors.
func (s *Scheduler) FetchAll(ctx context.Context, items []string, currency string, marketplaceID int, progress Progress) map[string]models.PriceQuote {
	start := time.Now()
	results := make(map[string]models.PriceQuote, len(items))
	if len(items) == 0 {
		return results
	}

	var misses []string
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true

		if q, ok := s.cached(ctx, item, currency, marketplaceID); ok {
			results[item] = q
			s.observer.CacheLookup(true)
			if progress != nil {
				progress.Increment()
			}
			continue
		}
		s.observer.CacheLookup(false)
		misses = append(misses, item)
	}

	hits := len(results)
	log.Info().
		Int("items", len(seen)).
		Int("cache_hits", hits).
		Int("to_fetch", len(misses)).
		Msg("Batch partitioned")

	if len(misses) == 0 {
		s.observer.BatchFinished(len(seen), hits, time.Since(start))
		return results
	}

	var mu sync.Mutex
	for offset := 0; offset < len(misses); offset += s.chunkSize {
		end := offset + s.chunkSize
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[offset:end]

		var g errgroup.Group
		for _, item := range chunk {
			item := item
			g.Go(func() error {
				q := s.resolveGuarded(ctx, item, currency, marketplaceID)
				mu.Lock()
				results[item] = q
				mu.Unlock()
				s.observer.QuoteResolved(q)
				if progress != nil {
					progress.Increment()
				}
				return nil
			})
		}
		_ = g.Wait()

		log.Debug().
			Int("chunk_start", offset).
			Int("chunk_size", len(chunk)).
			Int("remaining", len(misses)-end).
			Msg("Chunk completed")

		if end < len(misses) {
			if err := s.sleep(ctx, s.cooldown); err != nil {
				s.fillCancelled(results, misses[end:], currency, marketplaceID)
				break
			}
		}
	}

	s.observer.BatchFinished(len(seen), hits, time.Since(start))
	return results
}

// cached checks every source, in priority order, for a fresh priced entry
func (s *Scheduler) cached(ctx context.Context, item, currency string, marketplaceID int) (models.PriceQuote, bool) {
	for _, src := range s.coord.Sources() {
		key := cache.Key(src.Name(), item, currency, marketplaceID)
		if q, ok := cache.GetJSON[models.PriceQuote](ctx, s.store, key, s.ttl); ok && q.HasPrice() {
			return q, true
		}
	}
	return models.PriceQuote{}, false
}

func (s *Scheduler) resolveGuarded(ctx context.Context, item, currency string, marketplaceID int) (q models.PriceQuote) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("item", item).
				Str("panic", fmt.Sprint(r)).
				Msg("Item resolution panicked")
			q = models.EmptyQuote(item, currency, marketplaceID, models.SourceError, "")
		}
	}()
	return s.coord.Resolve(ctx, item, currency, marketplaceID)
}

func (s *Scheduler) fillCancelled(results map[string]models.PriceQuote, items []string, currency string, marketplaceID int) {
	for _, item := range items {
		if _, ok := results[item]; !ok {
			results[item] = models.EmptyQuote(item, currency, marketplaceID, models.SourceError, "")
		}
	}
}
