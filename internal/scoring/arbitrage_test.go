package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/skinrun/internal/config"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestArbitrageEvaluate(t *testing.T) {
	calc := NewArbitrageCalculator(config.DefaultScoring().Arbitrage)

	low := calc.Evaluate(d("10.00"), decimal.NewNullDecimal(d("13.00")), 10)
	assert.True(t, d("1.95").Equal(low.SellFee), low.SellFee.String())
	assert.True(t, d("11.05").Equal(low.NetProceeds), low.NetProceeds.String())
	assert.True(t, d("1.05").Equal(low.GrossProfit), low.GrossProfit.String())
	assert.True(t, d("10.5").Equal(low.ProfitPct), low.ProfitPct.String())
	assert.Equal(t, GoodBuyLowVol, low.Class)
	assert.InDelta(t, 11.7647, low.BreakevenSellPrice.InexactFloat64(), 1e-4)
	assert.InDelta(t, 12.9412, low.TargetSellPrice.InexactFloat64(), 1e-4)

	high := calc.Evaluate(d("10.00"), decimal.NewNullDecimal(d("13.00")), 60)
	assert.Equal(t, GoodBuy, high.Class)
	assert.True(t, high.Class.Profitable())
}

func TestArbitrageMissingSellPrice(t *testing.T) {
	calc := NewArbitrageCalculator(config.DefaultScoring().Arbitrage)

	for name, sell := range map[string]decimal.NullDecimal{
		"null":     {},
		"zero":     decimal.NewNullDecimal(decimal.Zero),
		"negative": decimal.NewNullDecimal(d("-1")),
	} {
		t.Run(name, func(t *testing.T) {
			a := calc.Evaluate(d("10"), sell, 1000)
			assert.Equal(t, NoSellData, a.Class)
			assert.True(t, a.ProfitPct.IsZero())
			assert.False(t, a.Class.Profitable())
		})
	}
}

func TestArbitrageBuyFee(t *testing.T) {
	cfg := config.DefaultScoring().Arbitrage
	cfg.BuyFeeRate = 0.05
	calc := NewArbitrageCalculator(cfg)

	a := calc.Evaluate(d("10.00"), decimal.NewNullDecimal(d("13.00")), 10)
	assert.True(t, d("0.5").Equal(a.BuyFee))
	// (11.05 - 10.5) / 10.5
	assert.InDelta(t, 5.238, a.ProfitPct.InexactFloat64(), 1e-3)
	assert.Equal(t, MarginalProfit, a.Class)
}

func TestArbitrageClassifyLadder(t *testing.T) {
	calc := NewArbitrageCalculator(config.DefaultScoring().Arbitrage)

	cases := []struct {
		pct    string
		volume int
		want   ArbitrageClass
	}{
		{"20.0", 60, ExcellentBuy},
		{"20.0", 49, GoodBuyLowVol},
		{"19.99", 50, GoodBuy},
		{"12.0", 10, GoodBuyLowVol},
		{"10", 0, GoodBuyLowVol},
		{"9.99", 1000, MarginalProfit},
		{"5", 0, MarginalProfit},
		{"4.99", 0, Breakeven},
		{"0", 0, Breakeven},
		{"-0.01", 0, SmallLoss},
		{"-10", 0, SmallLoss},
		{"-10.01", 0, Overpriced},
		{"-15.0", 500, Overpriced},
	}
	for _, tc := range cases {
		t.Run(tc.pct, func(t *testing.T) {
			assert.Equal(t, tc.want, calc.Classify(d(tc.pct), tc.volume))
		})
	}
}
