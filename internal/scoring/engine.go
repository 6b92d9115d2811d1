package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/config"
)

// Input is everything the engine needs for one item. Zero averages and a
// zero current price mean "absent".
type Input struct {
	Name         string
	Avg24h       float64
	Avg7d        float64
	Avg30d       float64
	Volume7d     int
	CurrentPrice float64
	Listings     *int

	// SellPrice is the quote on the selling marketplace, invalid when unknown
	SellPrice decimal.NullDecimal
}

// ScoreRecord is the engine output for one item
type ScoreRecord struct {
	Name          string     `json:"name"`
	Volume7d      int        `json:"volume_7d"`
	BullishScore  float64    `json:"bullish_score"`
	GrowthShort   float64    `json:"growth_short"`
	GrowthMed     float64    `json:"growth_med"`
	Explosiveness float64    `json:"explosiveness"`
	PumpRisk      float64    `json:"pump_risk"`
	Components    Components `json:"components"`
	Arbitrage     Arbitrage  `json:"arbitrage"`
}

// Engine scores items. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	cfg        config.ScoringConfig
	arb        *ArbitrageCalculator
	keyword    string
	knownPumps [][]string
}

// NewEngine creates an engine from scoring configuration
func NewEngine(cfg config.ScoringConfig) *Engine {
	e := &Engine{
		cfg:     cfg,
		arb:     NewArbitrageCalculator(cfg.Arbitrage),
		keyword: strings.ToLower(cfg.Pump.Keyword),
	}
	for _, terms := range cfg.Pump.KnownPumps {
		lower := make([]string, 0, len(terms))
		for _, t := range terms {
			lower = append(lower, strings.ToLower(t))
		}
		e.knownPumps = append(e.knownPumps, lower)
	}
	return e
}

// Score computes every metric for one item
func (e *Engine) Score(in Input) ScoreRecord {
	short, med := Growth(in.Avg24h, in.Avg7d, in.Avg30d)
	risk := e.PumpRisk(in)
	explosiveness, components := e.explosiveness(in, risk)

	return ScoreRecord{
		Name:          in.Name,
		Volume7d:      in.Volume7d,
		BullishScore:  Bullish(in.Avg24h, in.Avg7d, in.Avg30d, in.Volume7d),
		GrowthShort:   short,
		GrowthMed:     med,
		Explosiveness: explosiveness,
		PumpRisk:      risk,
		Components:    components,
		Arbitrage:     e.arb.Evaluate(decimal.NewFromFloat(in.CurrentPrice), in.SellPrice, in.Volume7d),
	}
}

// SelectCandidates flags the records showing a growth breakout with enough
// volume and acceptable pump risk. The eligible set is ordered by
// explosiveness and cut to the configured top percentile (at least one),
// capped at MaxCandidates.
func (e *Engine) SelectCandidates(records []ScoreRecord) []ScoreRecord {
	c := e.cfg.Candidates

	var eligible []ScoreRecord
	for _, r := range records {
		if r.GrowthShort < c.ExplosionThreshold && r.GrowthMed < c.MediumThreshold {
			continue
		}
		if r.Volume7d < c.MinVolume || r.PumpRisk > c.MaxPumpRisk {
			continue
		}
		eligible = append(eligible, r)
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Explosiveness != eligible[j].Explosiveness {
			return eligible[i].Explosiveness > eligible[j].Explosiveness
		}
		return eligible[i].BullishScore > eligible[j].BullishScore
	})

	n := int(math.Ceil(float64(len(eligible)) * c.TopPercentile))
	if n < 1 {
		n = 1
	}
	if c.MaxCandidates > 0 && n > c.MaxCandidates {
		n = c.MaxCandidates
	}
	return eligible[:n]
}
