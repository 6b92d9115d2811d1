package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/config"
)

// ArbitrageClass is the ordinal buy/sell classification
type ArbitrageClass string

const (
	ExcellentBuy   ArbitrageClass = "EXCELLENT_BUY"
	GoodBuy        ArbitrageClass = "GOOD_BUY"
	GoodBuyLowVol  ArbitrageClass = "GOOD_BUY_LOW_VOL"
	MarginalProfit ArbitrageClass = "MARGINAL_PROFIT"
	Breakeven      ArbitrageClass = "BREAKEVEN"
	SmallLoss      ArbitrageClass = "SMALL_LOSS"
	Overpriced     ArbitrageClass = "OVERPRICED"
	NoSellData     ArbitrageClass = "NO_STEAM_DATA"
)

// Profitable reports whether the class clears the minimum profit band
func (c ArbitrageClass) Profitable() bool {
	return c == ExcellentBuy || c == GoodBuy || c == GoodBuyLowVol
}

// Arbitrage is the fee-aware comparison of a buy price against a sell quote
type Arbitrage struct {
	Class              ArbitrageClass  `json:"class"`
	BuyPrice           decimal.Decimal `json:"buy_price"`
	SellPrice          decimal.Decimal `json:"sell_price"`
	BuyFee             decimal.Decimal `json:"buy_fee"`
	SellFee            decimal.Decimal `json:"sell_fee"`
	NetProceeds        decimal.Decimal `json:"net_proceeds"`
	GrossProfit        decimal.Decimal `json:"gross_profit"`
	ProfitPct          decimal.Decimal `json:"profit_pct"`
	BreakevenSellPrice decimal.Decimal `json:"breakeven_sell_price"`
	TargetSellPrice    decimal.Decimal `json:"target_sell_price"`
}

// ArbitrageCalculator holds the fee model and the classification ladder
type ArbitrageCalculator struct {
	sellFee   decimal.Decimal
	buyFee    decimal.Decimal
	minPct    decimal.Decimal
	goodPct   decimal.Decimal
	marginal  decimal.Decimal
	smallLoss decimal.Decimal
	targetPct decimal.Decimal
	highVol   int
}

var hundred = decimal.NewFromInt(100)

// NewArbitrageCalculator builds a calculator from configuration
func NewArbitrageCalculator(cfg config.ArbitrageConfig) *ArbitrageCalculator {
	return &ArbitrageCalculator{
		sellFee:   decimal.NewFromFloat(cfg.SellFeeRate),
		buyFee:    decimal.NewFromFloat(cfg.BuyFeeRate),
		minPct:    decimal.NewFromFloat(cfg.MinProfitPct),
		goodPct:   decimal.NewFromFloat(cfg.GoodProfitPct),
		marginal:  decimal.NewFromFloat(cfg.MarginalProfitPct),
		smallLoss: decimal.NewFromFloat(cfg.SmallLossPct),
		targetPct: decimal.NewFromFloat(cfg.TargetMarginPct),
		highVol:   cfg.HighVolume,
	}
}

// Classify maps a profit percentage and a volume onto exactly one class
func (a *ArbitrageCalculator) Classify(profitPct decimal.Decimal, volume int) ArbitrageClass {
	highVolume := volume >= a.highVol
	switch {
	case profitPct.GreaterThanOrEqual(a.goodPct) && highVolume:
		return ExcellentBuy
	case profitPct.GreaterThanOrEqual(a.minPct) && highVolume:
		return GoodBuy
	case profitPct.GreaterThanOrEqual(a.minPct):
		return GoodBuyLowVol
	case profitPct.GreaterThanOrEqual(a.marginal):
		return MarginalProfit
	case !profitPct.IsNegative():
		return Breakeven
	case profitPct.GreaterThanOrEqual(a.smallLoss):
		return SmallLoss
	default:
		return Overpriced
	}
}

// Evaluate compares buying at buy with selling at sell. A missing or
// non-positive sell price is NoSellData, never a loss.
func (a *ArbitrageCalculator) Evaluate(buy decimal.Decimal, sell decimal.NullDecimal, volume int) Arbitrage {
	out := Arbitrage{
		Class:    NoSellData,
		BuyPrice: buy,
	}
	if !sell.Valid || !sell.Decimal.IsPositive() {
		return out
	}

	out.SellPrice = sell.Decimal
	out.BuyFee = buy.Mul(a.buyFee)
	out.SellFee = sell.Decimal.Mul(a.sellFee)
	out.NetProceeds = sell.Decimal.Sub(out.SellFee)

	cost := buy.Add(out.BuyFee)
	out.GrossProfit = out.NetProceeds.Sub(cost)
	if cost.IsPositive() {
		out.ProfitPct = out.GrossProfit.Div(cost).Mul(hundred)
	}

	keep := decimal.NewFromInt(1).Sub(a.sellFee)
	out.BreakevenSellPrice = cost.Div(keep)
	out.TargetSellPrice = cost.Mul(decimal.NewFromInt(1).Add(a.targetPct.Div(hundred))).Div(keep)

	out.Class = a.Classify(out.ProfitPct, volume)
	return out
}
