package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/skinrun/internal/fetch"
	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/provider"
)

const priceCache = "price"

var _ fetch.Observer = (*Registry)(nil)

// Registry holds all Prometheus metrics for skinrun. Each Registry owns its
// own prometheus.Registry so tests and multiple runs never collide.
type Registry struct {
	reg *prometheus.Registry

	// Fetch attempt metrics
	FetchAttempts   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Quotes          *prometheus.CounterVec

	// Cache performance metrics
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	// Source pacing and health
	SourceDelay  *prometheus.GaugeVec
	BreakerState *prometheus.GaugeVec

	// Batch metrics
	BatchDuration prometheus.Histogram
	BatchItems    prometheus.Counter

	ratioMu sync.Mutex
}

// NewRegistry creates a registry with all skinrun metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skinrun_fetch_attempts_total",
				Help: "Total number of source lookups by outcome",
			},
			[]string{"source", "outcome"},
		),

		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skinrun_fetch_attempt_duration_seconds",
				Help:    "Duration of a single source lookup in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"source"},
		),

		Quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skinrun_quotes_total",
				Help: "Total number of resolved quotes by source tag",
			},
			[]string{"source_tag"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skinrun_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skinrun_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "skinrun_cache_hit_ratio",
				Help: "Current price cache hit ratio (0.0 to 1.0)",
			},
		),

		SourceDelay: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skinrun_source_delay_seconds",
				Help: "Current ambient delay per source",
			},
			[]string{"source"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skinrun_breaker_state",
				Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
			},
			[]string{"source"},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skinrun_batch_duration_seconds",
				Help:    "Duration of a FetchAll batch in seconds",
				Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),

		BatchItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skinrun_batch_items_total",
				Help: "Total number of distinct items requested across batches",
			},
		),
	}

	r.reg.MustRegister(
		r.FetchAttempts,
		r.AttemptDuration,
		r.Quotes,
		r.CacheHits,
		r.CacheMisses,
		r.CacheHitRatio,
		r.SourceDelay,
		r.BreakerState,
		r.BatchDuration,
		r.BatchItems,
	)
	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler serving this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// AttemptFinished records one source lookup
func (r *Registry) AttemptFinished(source string, kind provider.OutcomeKind, took time.Duration) {
	r.FetchAttempts.WithLabelValues(source, kind.String()).Inc()
	r.AttemptDuration.WithLabelValues(source).Observe(took.Seconds())
}

// DelayChanged records the ambient delay after an outcome
func (r *Registry) DelayChanged(source string, delay time.Duration) {
	r.SourceDelay.WithLabelValues(source).Set(delay.Seconds())
}

// CacheLookup records a price cache hit or miss
func (r *Registry) CacheLookup(hit bool) {
	if hit {
		r.CacheHits.WithLabelValues(priceCache).Inc()
	} else {
		r.CacheMisses.WithLabelValues(priceCache).Inc()
	}
	r.updateCacheHitRatio()
}

// QuoteResolved records the tag of a resolved quote
func (r *Registry) QuoteResolved(q models.PriceQuote) {
	r.Quotes.WithLabelValues(string(q.Source)).Inc()
}

// BatchFinished records a completed batch
func (r *Registry) BatchFinished(items, cacheHits int, took time.Duration) {
	r.BatchDuration.Observe(took.Seconds())
	r.BatchItems.Add(float64(items))

	log.Debug().
		Int("items", items).
		Int("cache_hits", cacheHits).
		Dur("duration", took).
		Msg("Batch metrics recorded")
}

// BreakerChanged records a breaker transition; it matches breakers.StateFunc
func (r *Registry) BreakerChanged(source string, _, to cb.State) {
	r.BreakerState.WithLabelValues(source).Set(float64(to))
}

// HitRatio returns the price cache hit ratio from the counter snapshots
func (r *Registry) HitRatio() float64 {
	hits := counterValue(r.CacheHits, priceCache)
	misses := counterValue(r.CacheMisses, priceCache)
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// updateCacheHitRatio recomputes the gauge from the counters
func (r *Registry) updateCacheHitRatio() {
	r.ratioMu.Lock()
	defer r.ratioMu.Unlock()
	r.CacheHitRatio.Set(r.HitRatio())
}

func counterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	m := &io_prometheus_client.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
