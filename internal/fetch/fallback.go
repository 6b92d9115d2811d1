package fetch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/net/breakers"
	"github.com/sawpanic/skinrun/internal/net/ratelimit"
	"github.com/sawpanic/skinrun/internal/provider"
)

// Coordinator walks the sources in priority order until one prices the item
type Coordinator struct {
	sources    []provider.Source
	worker     *Worker
	rates      *ratelimit.Controller
	breakers   *breakers.Set
	maxRetries int
}

// NewCoordinator creates a coordinator over sources in priority order
func NewCoordinator(sources []provider.Source, worker *Worker, rates *ratelimit.Controller, b *breakers.Set, maxRetries int) *Coordinator {
	return &Coordinator{
		sources:    sources,
		worker:     worker,
		rates:      rates,
		breakers:   b,
		maxRetries: maxRetries,
	}
}

// Sources returns the sources in priority order
func (c *Coordinator) Sources() []provider.Source {
	return c.sources
}

// Resolve returns the first quote carrying a price. Disabled sources and
// sources whose breaker is open are skipped. When nothing prices the item
// the last attempted source's empty quote is returned.
func (c *Coordinator) Resolve(ctx context.Context, item, currency string, marketplaceID int) models.PriceQuote {
	req := provider.Request{Item: item, Currency: currency, MarketplaceID: marketplaceID}

	var (
		last      models.PriceQuote
		attempted bool
	)
	for _, src := range c.sources {
		name := src.Name()
		if !c.rates.Enabled(name) {
			continue
		}
		if c.breakers != nil && !c.breakers.Allow(name) {
			log.Debug().Str("source", name).Str("item", item).Msg("Skipping source with open circuit")
			continue
		}

		q := c.worker.Fetch(ctx, src, req, c.maxRetries)
		if q.HasPrice() {
			return q
		}
		last, attempted = q, true

		if ctx.Err() != nil {
			break
		}
	}

	if !attempted {
		return models.EmptyQuote(item, currency, marketplaceID, models.SourceNone, "")
	}
	return last
}
