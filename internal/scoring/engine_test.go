package scoring

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/config"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultScoring())
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		v        float64
		min, max float64
		want     float64
	}{
		{"below", -1, 0, 1, 0},
		{"at min", 1, 1, 3, 0},
		{"mid", 2, 1, 3, 0.5},
		{"at max", 3, 1, 3, 1},
		{"above", 10, 1, 3, 1},
		{"nan", math.NaN(), 0, 1, 0},
		{"inf", math.Inf(1), 0, 1, 0},
		{"neg inf", math.Inf(-1), 0, 1, 0},
		{"degenerate range", 5, 2, 2, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Normalize(tc.v, tc.min, tc.max), 1e-12)
		})
	}
}

func TestGrowthFallbacks(t *testing.T) {
	cases := []struct {
		name              string
		a24, a7, a30      float64
		wantShort, wantMd float64
	}{
		{"all present", 12, 10, 8, 1.2, 1.25},
		{"no 7d with 24h", 5, 0, 0, 2.0, 0},
		{"no 30d with 7d", 5, 10, 0, 0.5, 1.0},
		{"no 24h", 0, 10, 8, 0, 1.25},
		{"nothing", 0, 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			short, med := Growth(tc.a24, tc.a7, tc.a30)
			assert.InDelta(t, tc.wantShort, short, 1e-12)
			assert.InDelta(t, tc.wantMd, med, 1e-12)
		})
	}
}

func TestBullishScore(t *testing.T) {
	got := Bullish(12, 10, 8, 100)
	assert.InDelta(t, 3.665, got, 0.001)
	assert.Equal(t, 0.0, Bullish(0, 0, 0, 500))
}

func TestExplosivenessComponents(t *testing.T) {
	e := newTestEngine()
	score, c := e.Explosiveness(Input{
		Name:         "AK-47 | Redline (Field-Tested)",
		Avg24h:       12,
		Avg7d:        10,
		Avg30d:       8,
		Volume7d:     100,
		CurrentPrice: 9,
	})

	assert.InDelta(t, 0.1375, c.Momentum, 1e-9)
	assert.Equal(t, 0.0, c.Scarcity)
	assert.InDelta(t, 0.25, c.Discount, 1e-9)
	assert.InDelta(t, 0.4023, c.Volatility, 1e-4)
	assert.Equal(t, 0.0, c.VolumeSurge)
	assert.InDelta(t, 0.3810, c.Sentiment, 1e-4)
	assert.Equal(t, 0.0, c.Manipulation)
	assert.InDelta(t, 17.03, score, 0.005)
}

func TestScarcityUsesListings(t *testing.T) {
	e := newTestEngine()
	listings := 5
	_, c := e.Explosiveness(Input{Avg7d: 10, Volume7d: 25, Listings: &listings})

	// 0.7*norm(10,0,15) + 0.3*norm(25,0,50)
	assert.InDelta(t, 0.7*(10.0/15.0)+0.3*0.5, c.Scarcity, 1e-9)
}

func TestExplosivenessClampsAtZero(t *testing.T) {
	e := newTestEngine()
	score, c := e.Explosiveness(Input{
		Name:     "Sticker | Stockholm 2021 Holo",
		Avg24h:   2,
		Avg7d:    10,
		Avg30d:   10,
		Volume7d: 400,
	})
	require.Greater(t, c.Manipulation, 0.5)
	assert.Equal(t, 0.0, score)
}

func TestPumpRisk(t *testing.T) {
	e := newTestEngine()

	t.Run("stacked rules cap at 100", func(t *testing.T) {
		risk := e.PumpRisk(Input{Name: "Sticker | Team (Holo) | Stockholm 2021", Avg24h: 5, Avg7d: 10, Avg30d: 2, Volume7d: 300})
		assert.Equal(t, 100.0, risk)
	})

	t.Run("keyword and collapse", func(t *testing.T) {
		risk := e.PumpRisk(Input{Name: "Sticker | Foo", Avg24h: 4, Avg7d: 10, Avg30d: 10, Volume7d: 150})
		assert.Equal(t, 45.0, risk)
	})

	t.Run("quiet item", func(t *testing.T) {
		risk := e.PumpRisk(Input{Name: "AWP | Asiimov", Avg24h: 10, Avg7d: 10, Avg30d: 10, Volume7d: 150})
		assert.Equal(t, 0.0, risk)
	})

	t.Run("missing 7d average is neutral momentum", func(t *testing.T) {
		risk := e.PumpRisk(Input{Name: "Case", Avg24h: 3, Volume7d: 500})
		assert.Equal(t, 0.0, risk)
	})

	t.Run("configurable points", func(t *testing.T) {
		cfg := config.DefaultScoring()
		cfg.Pump.KeywordPoints = 5
		cfg.Pump.Keyword = "capsule"
		risk := NewEngine(cfg).PumpRisk(Input{Name: "Paris 2023 Capsule", Avg24h: 10, Avg7d: 10, Volume7d: 150})
		assert.Equal(t, 5.0, risk)
	})
}

func TestScoreIsDeterministic(t *testing.T) {
	e := newTestEngine()
	in := Input{
		Name:         "M4A1-S | Printstream",
		Avg24h:       120.5,
		Avg7d:        110,
		Avg30d:       95,
		Volume7d:     64,
		CurrentPrice: 105,
		SellPrice:    decimal.NewNullDecimal(decimal.RequireFromString("160.00")),
	}
	a, b := e.Score(in), e.Score(in)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a.Explosiveness, 0.0)
	assert.LessOrEqual(t, a.Explosiveness, 100.0)
	assert.Equal(t, ExcellentBuy, a.Arbitrage.Class)
}

func TestSelectCandidates(t *testing.T) {
	e := newTestEngine()

	var records []ScoreRecord
	for i := 0; i < 40; i++ {
		records = append(records, ScoreRecord{
			Name:          string(rune('a' + i%26)),
			Volume7d:      50,
			GrowthShort:   1.5,
			Explosiveness: float64(i),
		})
	}
	records = append(records,
		ScoreRecord{Name: "flat", Volume7d: 500, GrowthShort: 1.0, GrowthMed: 1.0, Explosiveness: 99},
		ScoreRecord{Name: "thin", Volume7d: 5, GrowthShort: 2.0, Explosiveness: 98},
		ScoreRecord{Name: "pumped", Volume7d: 500, GrowthMed: 1.2, PumpRisk: 70, Explosiveness: 97},
	)

	got := e.SelectCandidates(records)
	require.Len(t, got, 6, "15% of 40 eligible rounds up to 6")
	assert.Equal(t, 39.0, got[0].Explosiveness)
	for _, r := range got {
		assert.NotContains(t, []string{"flat", "thin", "pumped"}, r.Name)
	}

	assert.Empty(t, e.SelectCandidates(records[40:]))
}

func TestSelectCandidatesCap(t *testing.T) {
	cfg := config.DefaultScoring()
	cfg.Candidates.TopPercentile = 1
	e := NewEngine(cfg)

	records := make([]ScoreRecord, 100)
	for i := range records {
		records[i] = ScoreRecord{Volume7d: 100, GrowthMed: 1.1}
	}
	assert.Len(t, e.SelectCandidates(records), 25)
}
