package fetch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/net/breakers"
	"github.com/sawpanic/skinrun/internal/net/ratelimit"
	"github.com/sawpanic/skinrun/internal/provider"
)

// Worker performs one priced lookup against one source for one item,
// retrying until it gets an answer or runs out of attempts
type Worker struct {
	rates    *ratelimit.Controller
	store    cache.Store
	ttl      time.Duration
	ceiling  *ratelimit.Limiter
	breakers *breakers.Set
	headers  provider.HeaderProvider
	observer Observer
	sleep    Sleeper

	slots     *semaphore.Weighted
	perSource map[string]*semaphore.Weighted

	backoffBase time.Duration
	backoffMax  time.Duration
	jitterMin   time.Duration
	jitterMax   time.Duration
	recovery    time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// WorkerOption customises a Worker
type WorkerOption func(*Worker)

// WithLimiter adds a hard per-source request ceiling
func WithLimiter(l *ratelimit.Limiter) WorkerOption { return func(w *Worker) { w.ceiling = l } }

// WithBreakers routes dispatch through per-source circuit breakers
func WithBreakers(b *breakers.Set) WorkerOption { return func(w *Worker) { w.breakers = b } }

// WithHeaders replaces the header provider
func WithHeaders(h provider.HeaderProvider) WorkerOption { return func(w *Worker) { w.headers = h } }

// WithObserver attaches a metrics observer
func WithObserver(o Observer) WorkerOption { return func(w *Worker) { w.observer = o } }

// WithSleeper replaces the wait primitive, mostly for tests
func WithSleeper(s Sleeper) WorkerOption { return func(w *Worker) { w.sleep = s } }

// NewWorker builds a worker. The process-wide semaphore sized by
// fetch.concurrency lives here so it is shared by every batch and chunk.
func NewWorker(cfg *config.Config, rates *ratelimit.Controller, store cache.Store, opts ...WorkerOption) *Worker {
	seed := cfg.Fetch.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	w := &Worker{
		rates:       rates,
		store:       store,
		ttl:         cfg.Cache.TTL,
		headers:     provider.NewRotatingHeaders(cfg.Fetch.Seed),
		observer:    nopObserver{},
		sleep:       SleepContext,
		slots:       semaphore.NewWeighted(int64(cfg.Fetch.Concurrency)),
		perSource:   make(map[string]*semaphore.Weighted, len(cfg.Sources)),
		backoffBase: cfg.Fetch.BackoffBase,
		backoffMax:  cfg.Fetch.BackoffMax,
		jitterMin:   cfg.Fetch.JitterMin,
		jitterMax:   cfg.Fetch.JitterMax,
		recovery:    cfg.Rate.RateLimitRecovery,
		rng:         rand.New(rand.NewSource(seed)),
	}
	for _, s := range cfg.Sources {
		if s.ConcurrencyLimit > 0 {
			w.perSource[s.Name] = semaphore.NewWeighted(int64(s.ConcurrencyLimit))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Backoff returns the wait before retry n (n >= 1): base·2^(n-1), capped
func (w *Worker) Backoff(n int) time.Duration {
	d := w.backoffBase
	for i := 1; i < n && d < w.backoffMax; i++ {
		d *= 2
	}
	if d > w.backoffMax {
		d = w.backoffMax
	}
	return d
}

func (w *Worker) jitter() time.Duration {
	if w.jitterMax <= w.jitterMin {
		return w.jitterMin
	}
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return w.jitterMin + time.Duration(w.rng.Int63n(int64(w.jitterMax-w.jitterMin)+1))
}

// Fetch never fails: the outcome is always expressed as a quote. A fresh
// cache entry short-circuits everything, an affirmative "no price" answer
// ends with a none-tagged quote, exhausted retries with an error-tagged one.
func (w *Worker) Fetch(ctx context.Context, src provider.Source, req provider.Request, maxRetries int) models.PriceQuote {
	name := src.Name()
	key := cache.Key(name, req.Item, req.Currency, req.MarketplaceID)

	if q, ok := cache.GetJSON[models.PriceQuote](ctx, w.store, key, w.ttl); ok && q.HasPrice() {
		return q
	}

	if maxRetries < 1 {
		maxRetries = 1
	}
	logger := log.With().Str("source", name).Str("item", req.Item).Logger()

attempts:
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			w.rates.OnRetry(name)
			if err := w.sleep(ctx, w.Backoff(attempt-1)); err != nil {
				break
			}
		}
		if err := w.sleep(ctx, w.rates.CurrentDelay(name)+w.jitter()); err != nil {
			break
		}

		start := time.Now()
		out := w.dispatch(ctx, src, req)
		w.observer.AttemptFinished(name, out.Kind, time.Since(start))

		if errors.Is(out.Err, breakers.ErrOpen) {
			logger.Debug().Int("attempt", attempt).Msg("Circuit open, abandoning source")
			break
		}

		switch out.Kind {
		case provider.OutcomeOK:
			w.rates.OnOutcome(name, true, false)
			w.observer.DelayChanged(name, w.rates.CurrentDelay(name))
			q := models.PriceQuote{
				Item:              req.Item,
				CurrentPrice:      decimal.NewNullDecimal(out.Listing.Price),
				Volume7d:          out.Listing.Volume,
				ExplosivenessHint: provider.ExplosivenessHint(out.Listing.Price, out.Listing.Volume),
				Source:            src.Role().Tag(),
				Origin:            name,
				Currency:          req.Currency,
				MarketplaceID:     req.MarketplaceID,
			}
			cache.PutJSON(ctx, w.store, key, q)
			return q

		case provider.OutcomeTerminalEmpty:
			w.rates.OnOutcome(name, true, false)
			w.observer.DelayChanged(name, w.rates.CurrentDelay(name))
			logger.Debug().Int("attempt", attempt).Msg("No price available")
			return models.EmptyQuote(req.Item, req.Currency, req.MarketplaceID, models.SourceNone, name)

		case provider.OutcomeRateLimited:
			w.rates.OnOutcome(name, false, true)
			w.observer.DelayChanged(name, w.rates.CurrentDelay(name))
			logger.Warn().Err(out.Err).Int("attempt", attempt).Msg("Rate limited")
			if w.recovery > 0 {
				if err := w.sleep(ctx, w.recovery); err != nil {
					break attempts
				}
			}

		default:
			w.rates.OnOutcome(name, false, false)
			logger.Debug().Err(out.Err).Int("attempt", attempt).Msg("Attempt failed")
		}
	}

	logger.Warn().Int("max_retries", maxRetries).Msg("Giving up on source")
	return models.EmptyQuote(req.Item, req.Currency, req.MarketplaceID, models.SourceError, name)
}

// dispatch performs the network call. Slots are held for the call only,
// never across the pre-delay or backoff sleeps.
func (w *Worker) dispatch(ctx context.Context, src provider.Source, req provider.Request) provider.Outcome {
	name := src.Name()

	if w.ceiling != nil {
		if err := w.ceiling.Wait(ctx, name); err != nil {
			return provider.Outcome{Kind: provider.OutcomeRetryable, Err: err}
		}
	}
	if err := w.slots.Acquire(ctx, 1); err != nil {
		return provider.Outcome{Kind: provider.OutcomeRetryable, Err: err}
	}
	defer w.slots.Release(1)

	if ps, ok := w.perSource[name]; ok {
		if err := ps.Acquire(ctx, 1); err != nil {
			return provider.Outcome{Kind: provider.OutcomeRetryable, Err: err}
		}
		defer ps.Release(1)
	}

	callCtx := ctx
	if timeout := w.rates.Timeout(name); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	headers := w.headers.Headers()

	if w.breakers == nil {
		return src.Lookup(callCtx, req, headers)
	}

	res, err := w.breakers.Execute(name, func() (any, error) {
		out := src.Lookup(callCtx, req, headers)
		if out.Kind == provider.OutcomeRetryable || out.Kind == provider.OutcomeRateLimited {
			return out, out.Err
		}
		return out, nil
	})
	if errors.Is(err, breakers.ErrOpen) {
		return provider.CircuitOpen(name, err)
	}
	out, ok := res.(provider.Outcome)
	if !ok {
		return provider.Outcome{Kind: provider.OutcomeRetryable, Err: err}
	}
	return out
}
