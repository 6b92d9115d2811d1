package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/fetch"
	runlog "github.com/sawpanic/skinrun/internal/log"
	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/persistence"
	"github.com/sawpanic/skinrun/internal/scoring"
	"github.com/sawpanic/skinrun/internal/skinport"
)

const (
	stepListings = "listings"
	stepFilter   = "filter"
	stepPrices   = "prices"
	stepScore    = "score"
	stepPersist  = "persist"
)

var steps = []string{stepListings, stepFilter, stepPrices, stepScore, stepPersist}

// Listings supplies the buy-side marketplace snapshot
type Listings interface {
	Items(ctx context.Context, currency string, appID int) ([]skinport.Item, error)
	SalesHistory(ctx context.Context, currency string, appID int) ([]skinport.Sale, error)
}

// PriceFetcher resolves sell-side quotes for a batch of items
type PriceFetcher interface {
	FetchAll(ctx context.Context, items []string, currency string, marketplaceID int, progress fetch.Progress) map[string]models.PriceQuote
}

// BatchProgress is a fetch.Progress that is told when the batch ends
type BatchProgress interface {
	fetch.Progress
	Finish()
}

// Summarizer logs per-source diagnostics after a batch
type Summarizer interface {
	LogSummary()
}

// Options selects what one scan looks at
type Options struct {
	Currency string
	AppID    int
	MinPrice float64 // inclusive, on the buy-side minimum listing price
	MaxPrice float64 // inclusive, 0 means unbounded
	MinSales int     // minimum 7-day sales on the buy side
	Items    []string
	Filter   *NameFilter
	Limit    int // 0 keeps every survivor
}

// Validate checks the option ranges
func (o Options) Validate() error {
	if o.MinPrice < 0 || o.MaxPrice < 0 {
		return fmt.Errorf("price bounds must not be negative")
	}
	if o.MaxPrice > 0 && o.MinPrice > o.MaxPrice {
		return fmt.Errorf("min price %.2f is above max price %.2f", o.MinPrice, o.MaxPrice)
	}
	if o.MinSales < 0 || o.Limit < 0 {
		return fmt.Errorf("min sales and limit must not be negative")
	}
	if o.AppID <= 0 {
		return fmt.Errorf("app id is required")
	}
	return nil
}

// Row is one scored item of a scan
type Row struct {
	scoring.ScoreRecord
	Currency      string              `json:"currency"`
	BuyPrice      decimal.Decimal     `json:"buy_price"`
	Listings      int                 `json:"listings"`
	Avg24h        float64             `json:"avg_24h"`
	Avg7d         float64             `json:"avg_7d"`
	Quote         models.PriceQuote   `json:"quote"`
	Candidate     bool                `json:"candidate"`
	PrevSellPrice decimal.NullDecimal `json:"prev_sell_price"`
	SellDeltaPct  decimal.NullDecimal `json:"sell_delta_pct"`
}

// Result is the outcome of one scan run
type Result struct {
	RunID      uuid.UUID                `json:"run_id"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
	Currency   string                   `json:"currency"`
	AppID      int                      `json:"app_id"`
	Listed     int                      `json:"listed"`
	Rows       []Row                    `json:"rows"`
	Candidates []Row                    `json:"candidates"`
	Sources    map[models.SourceTag]int `json:"sources"`
	Profitable int                      `json:"profitable"`
	Persisted  bool                     `json:"persisted"`
}

// Pipeline runs a full scan: buy-side snapshot, filtering, sell-side quotes,
// scoring, candidate selection and optional history persistence
type Pipeline struct {
	listings  Listings
	prices    PriceFetcher
	engine    *scoring.Engine
	snapshots persistence.SnapshotRepo
	summary   Summarizer
	progress  func(total int) BatchProgress
	now       func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSnapshots enables history persistence and price deltas
func WithSnapshots(repo persistence.SnapshotRepo) Option {
	return func(p *Pipeline) { p.snapshots = repo }
}

// WithSummary logs source diagnostics after the price batch
func WithSummary(s Summarizer) Option { return func(p *Pipeline) { p.summary = s } }

// WithProgress sets the progress factory for the price batch
func WithProgress(f func(total int) BatchProgress) Option {
	return func(p *Pipeline) { p.progress = f }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New creates a scan pipeline
func New(listings Listings, prices PriceFetcher, engine *scoring.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		listings: listings,
		prices:   prices,
		engine:   engine,
		progress: func(int) BatchProgress { return nopProgress{} },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// survivor is a listing that passed the filters
type survivor struct {
	name     string
	buy      decimal.Decimal
	quantity int
	stats    skinport.SalesStats
}

// Run executes one scan
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan options: %w", err)
	}

	res := &Result{
		RunID:     uuid.New(),
		StartedAt: p.now(),
		Currency:  opts.Currency,
		AppID:     opts.AppID,
		Sources:   make(map[models.SourceTag]int),
	}
	sl := runlog.NewStepLogger("scan", steps)

	sl.StartStep(stepListings)
	items, err := p.listings.Items(ctx, opts.Currency, opts.AppID)
	if err != nil {
		sl.Fail(err)
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	sales, err := p.listings.SalesHistory(ctx, opts.Currency, opts.AppID)
	if err != nil {
		sl.Fail(err)
		return nil, fmt.Errorf("failed to fetch sales history: %w", err)
	}
	res.Listed = len(items)

	sl.StartStep(stepFilter)
	kept := selectListings(items, skinport.SalesMap(sales), opts)
	log.Info().
		Int("listed", len(items)).
		Int("sales_entries", len(sales)).
		Int("kept", len(kept)).
		Msg("Listings filtered")
	if len(kept) == 0 {
		sl.Finish()
		res.Duration = p.now().Sub(res.StartedAt)
		return res, nil
	}

	sl.StartStep(stepPrices)
	names := make([]string, len(kept))
	for i, s := range kept {
		names[i] = s.name
	}
	progress := p.progress(len(names))
	quotes := p.prices.FetchAll(ctx, names, opts.Currency, opts.AppID, progress)
	progress.Finish()
	if p.summary != nil {
		p.summary.LogSummary()
	}

	sl.StartStep(stepScore)
	res.Rows = p.score(kept, quotes, opts.Currency, res.Sources)
	res.Candidates = p.markCandidates(res.Rows)
	for _, r := range res.Rows {
		if r.Arbitrage.Class.Profitable() {
			res.Profitable++
		}
	}

	sl.StartStep(stepPersist)
	if p.snapshots != nil {
		p.applyDeltas(ctx, res)
		if err := p.persist(ctx, res); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID.String()).Msg("Snapshot persistence failed")
		} else {
			res.Persisted = true
		}
	}

	sl.Finish()
	res.Duration = p.now().Sub(res.StartedAt)
	return res, nil
}

// selectListings applies the explicit item list or the price, sales and
// name filters, then the limit. An explicit list bypasses price and sales
// bounds but still requires a buy-side price.
func selectListings(items []skinport.Item, sales map[string]skinport.Sale, opts Options) []survivor {
	wanted := make(map[string]bool, len(opts.Items))
	for _, name := range opts.Items {
		wanted[name] = true
	}

	var out []survivor
	seen := make(map[string]bool)
	for _, it := range items {
		name := it.MarketHashName
		if name == "" || it.MinPrice == nil || seen[name] {
			continue
		}
		price := *it.MinPrice
		stats := sales[name].Stats()

		if len(wanted) > 0 {
			if !wanted[name] {
				continue
			}
		} else {
			if price < opts.MinPrice || (opts.MaxPrice > 0 && price > opts.MaxPrice) {
				continue
			}
			if stats.Volume7d < opts.MinSales {
				continue
			}
			if !opts.Filter.Match(name) {
				continue
			}
		}

		seen[name] = true
		out = append(out, survivor{
			name:     name,
			buy:      decimal.NewFromFloat(price).Round(2),
			quantity: it.Quantity,
			stats:    stats,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].stats.Volume7d != out[j].stats.Volume7d {
			return out[i].stats.Volume7d > out[j].stats.Volume7d
		}
		return out[i].name < out[j].name
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// score builds rows ordered by bullish score, highest first
func (p *Pipeline) score(kept []survivor, quotes map[string]models.PriceQuote, currency string, tally map[models.SourceTag]int) []Row {
	rows := make([]Row, 0, len(kept))
	for _, s := range kept {
		q, ok := quotes[s.name]
		if !ok {
			q = models.EmptyQuote(s.name, currency, 0, models.SourceError, "")
		}
		tally[q.Source]++

		quantity := s.quantity
		buy, _ := s.buy.Float64()
		rec := p.engine.Score(scoring.Input{
			Name:         s.name,
			Avg24h:       s.stats.Avg24h,
			Avg7d:        s.stats.Avg7d,
			Avg30d:       s.stats.Avg30d,
			Volume7d:     s.stats.Volume7d,
			CurrentPrice: buy,
			Listings:     &quantity,
			SellPrice:    q.CurrentPrice,
		})
		rows = append(rows, Row{
			ScoreRecord: rec,
			Currency:    currency,
			BuyPrice:    s.buy,
			Listings:    s.quantity,
			Avg24h:      s.stats.Avg24h,
			Avg7d:       s.stats.Avg7d,
			Quote:       q,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BullishScore != rows[j].BullishScore {
			return rows[i].BullishScore > rows[j].BullishScore
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// markCandidates flags rows chosen by the engine and returns them in the
// engine's order
func (p *Pipeline) markCandidates(rows []Row) []Row {
	records := make([]scoring.ScoreRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ScoreRecord
	}

	picked := p.engine.SelectCandidates(records)
	index := make(map[string]int, len(rows))
	for i := range rows {
		index[rows[i].Name] = i
	}

	out := make([]Row, 0, len(picked))
	for _, rec := range picked {
		i := index[rec.Name]
		rows[i].Candidate = true
		out = append(out, rows[i])
	}
	return out
}

// applyDeltas loads the previous sell price of every row and computes the
// percentage change. Lookup failures leave deltas empty.
func (p *Pipeline) applyDeltas(ctx context.Context, res *Result) {
	names := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		names[i] = r.Name
	}
	prev, err := p.snapshots.LatestSellPrices(ctx, res.Currency, res.AppID, names)
	if err != nil {
		log.Warn().Err(err).Msg("Previous sell prices unavailable")
		return
	}

	hundred := decimal.NewFromInt(100)
	for i := range res.Rows {
		r := &res.Rows[i]
		old, ok := prev[r.Name]
		if !ok {
			continue
		}
		r.PrevSellPrice = decimal.NewNullDecimal(old)
		if r.Quote.HasPrice() && old.IsPositive() {
			delta := r.Quote.CurrentPrice.Decimal.Sub(old).Div(old).Mul(hundred).Round(2)
			r.SellDeltaPct = decimal.NewNullDecimal(delta)
		}
	}
	for i := range res.Candidates {
		res.Candidates[i] = res.Rows[indexOf(res.Rows, res.Candidates[i].Name)]
	}
}

func indexOf(rows []Row, name string) int {
	for i := range rows {
		if rows[i].Name == name {
			return i
		}
	}
	return -1
}

// persist stores the run as snapshot rows
func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	batch := make([]persistence.Snapshot, 0, len(res.Rows))
	for _, r := range res.Rows {
		s := persistence.Snapshot{
			RunID:          res.RunID,
			Timestamp:      res.StartedAt,
			Item:           r.Name,
			Currency:       res.Currency,
			AppID:          res.AppID,
			BuyPrice:       r.BuyPrice,
			SellPrice:      r.Quote.CurrentPrice,
			PriceSource:    string(r.Quote.Source),
			Volume7d:       r.Volume7d,
			BullishScore:   r.BullishScore,
			Explosiveness:  r.Explosiveness,
			PumpRisk:       r.PumpRisk,
			ArbitrageClass: string(r.Arbitrage.Class),
			Candidate:      r.Candidate,
		}
		if r.Arbitrage.Class != scoring.NoSellData {
			s.ProfitPct = decimal.NewNullDecimal(r.Arbitrage.ProfitPct)
		}
		batch = append(batch, s)
	}
	return p.snapshots.InsertBatch(ctx, batch)
}

type nopProgress struct{}

func (nopProgress) Increment() {}
func (nopProgress) Finish()    {}
