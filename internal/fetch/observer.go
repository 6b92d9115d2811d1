package fetch

import (
	"context"
	"time"

	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/provider"
)

// Observer receives fetch events. The metrics registry implements it.
type Observer interface {
	AttemptFinished(source string, kind provider.OutcomeKind, took time.Duration)
	DelayChanged(source string, delay time.Duration)
	CacheLookup(hit bool)
	QuoteResolved(q models.PriceQuote)
	BatchFinished(items, cacheHits int, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(string, provider.OutcomeKind, time.Duration) {}
func (nopObserver) DelayChanged(string, time.Duration)                          {}
func (nopObserver) CacheLookup(bool)                                            {}
func (nopObserver) QuoteResolved(models.PriceQuote)                             {}
func (nopObserver) BatchFinished(int, int, time.Duration)                       {}

// Progress is advanced once per resolved item
type Progress interface {
	Increment()
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper. A non-positive d only reports ctx.Err().
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
