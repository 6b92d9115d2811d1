package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/skinrun/internal/config"
)

// Limiter enforces a hard requests-per-second ceiling per source using a
// token bucket. It sits underneath the adaptive Controller: the controller
// spaces requests by observed behaviour, the limiter caps the absolute rate.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewLimiter creates a limiter with a bucket for every source that sets rps.
// Sources without a ceiling are never throttled here.
func NewLimiter(sources []config.SourceConfig) *Limiter {
	l := &Limiter{limiters: make(map[string]*rate.Limiter)}
	for _, s := range sources {
		if s.RPS > 0 {
			l.limiters[s.Name] = rate.NewLimiter(rate.Limit(s.RPS), s.Burst)
		}
	}
	return l
}

func (l *Limiter) get(source string) (*rate.Limiter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lim, ok := l.limiters[source]
	return lim, ok
}

// Wait blocks until a request for the source is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, source string) error {
	lim, ok := l.get(source)
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Stats returns statistics for all limited sources
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(l.limiters))
	now := time.Now()
	for source, lim := range l.limiters {
		r := lim.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		r.CancelAt(now)

		stats[source] = LimiterStats{
			Source:          source,
			RPS:             float64(lim.Limit()),
			Burst:           lim.Burst(),
			TokensAvailable: lim.TokensAt(now),
			Delay:           delay,
		}
	}
	return stats
}

// LimiterStats represents statistics for a single source bucket
type LimiterStats struct {
	Source          string        `json:"source"`
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	Delay           time.Duration `json:"delay"`
}

// IsThrottled returns true if the next request would have to wait
func (s *LimiterStats) IsThrottled() bool {
	return s.Delay > 0
}
