package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/config"
)

// minBackoffStep is the delay a throttled source jumps to when it has none
const minBackoffStep = 500 * time.Millisecond

// SourceState is the mutable throttling state of one price source
type SourceState struct {
	Name             string        `json:"name"`
	InitialDelay     time.Duration `json:"initial_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	CurrentDelay     time.Duration `json:"current_delay"`
	ConcurrencyLimit int           `json:"concurrency_limit"`
	Timeout          time.Duration `json:"timeout"`
	Enabled          bool          `json:"enabled"`
	SuccessCount     int64         `json:"success_count"`
	ErrorCount       int64         `json:"error_count"`
	RateLimitCount   int64         `json:"rate_limit_count"`
	RetryCount       int64         `json:"retry_count"`
}

// Controller adapts per-source request spacing to observed outcomes.
// One mutex guards every source; it is held only for the arithmetic.
type Controller struct {
	mu       sync.Mutex
	sources  map[string]*SourceState
	order    []string
	increase float64
	decay    float64
}

// NewController builds a controller from source and rate configuration
func NewController(rate config.RateConfig, sources []config.SourceConfig) *Controller {
	c := &Controller{
		sources:  make(map[string]*SourceState, len(sources)),
		increase: rate.IncreaseFactor,
		decay:    rate.DecayFactor,
	}
	for _, s := range sources {
		c.sources[s.Name] = &SourceState{
			Name:             s.Name,
			InitialDelay:     s.InitialDelay,
			MaxDelay:         s.MaxDelay,
			CurrentDelay:     s.InitialDelay,
			ConcurrencyLimit: s.ConcurrencyLimit,
			Timeout:          s.Timeout,
			Enabled:          s.Enabled,
		}
		c.order = append(c.order, s.Name)
	}
	return c
}

// OnOutcome records one finished attempt. A rate-limit signal backs the
// source off multiplicatively up to its ceiling, a success relaxes it
// toward its floor, any other failure only counts.
func (c *Controller) OnOutcome(source string, success, rateLimited bool) {
	c.mu.Lock()
	st, ok := c.sources[source]
	if !ok {
		c.mu.Unlock()
		return
	}

	prev := st.CurrentDelay
	switch {
	case rateLimited:
		st.RateLimitCount++
		st.CurrentDelay = minDuration(maxDuration(scale(st.CurrentDelay, c.increase), minBackoffStep), st.MaxDelay)
	case success:
		st.SuccessCount++
		st.CurrentDelay = maxDuration(scale(st.CurrentDelay, c.decay), st.InitialDelay)
	default:
		st.ErrorCount++
	}
	next := st.CurrentDelay
	c.mu.Unlock()

	if rateLimited {
		log.Warn().
			Str("source", source).
			Dur("from", prev).
			Dur("to", next).
			Msg("Rate limited, increasing delay")
	}
}

// OnRetry counts a retry attempt
func (c *Controller) OnRetry(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sources[source]; ok {
		st.RetryCount++
	}
}

// CurrentDelay returns the spacing to apply before the next attempt
func (c *Controller) CurrentDelay(source string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sources[source]; ok {
		return st.CurrentDelay
	}
	return 0
}

// Timeout returns the per-attempt timeout for a source
func (c *Controller) Timeout(source string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sources[source]; ok {
		return st.Timeout
	}
	return 0
}

// Enabled reports whether a source may be tried at all
func (c *Controller) Enabled(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sources[source]
	return ok && st.Enabled
}

// SetEnabled switches a source on or off
func (c *Controller) SetEnabled(source string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sources[source]
	if !ok {
		return fmt.Errorf("unknown source %q", source)
	}
	st.Enabled = enabled
	return nil
}

// Snapshot returns a copy of every source state in configuration order
func (c *Controller) Snapshot() []SourceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SourceState, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.sources[name])
	}
	return out
}

// LogSummary writes one line per source with its counters
func (c *Controller) LogSummary() {
	for _, st := range c.Snapshot() {
		total := st.SuccessCount + st.ErrorCount + st.RateLimitCount
		rate := 0.0
		if total > 0 {
			rate = float64(st.SuccessCount) / float64(total) * 100
		}
		log.Info().
			Str("source", st.Name).
			Bool("enabled", st.Enabled).
			Int64("success", st.SuccessCount).
			Int64("errors", st.ErrorCount).
			Int64("rate_limited", st.RateLimitCount).
			Int64("retries", st.RetryCount).
			Float64("success_pct", rate).
			Dur("delay", st.CurrentDelay).
			Msg("Source summary")
	}
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
