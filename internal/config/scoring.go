package config

import (
	"fmt"
	"math"
)

// ScoringConfig holds every tunable constant of the scoring engine
type ScoringConfig struct {
	Weights    WeightsConfig    `yaml:"weights"`
	Signals    SignalsConfig    `yaml:"signals"`
	Pump       PumpConfig       `yaml:"pump"`
	Arbitrage  ArbitrageConfig  `yaml:"arbitrage"`
	Candidates CandidatesConfig `yaml:"candidates"`
}

// WeightsConfig are the linear weights of the explosiveness composite
type WeightsConfig struct {
	Momentum     float64 `yaml:"momentum"`
	Scarcity     float64 `yaml:"scarcity"`
	Discount     float64 `yaml:"discount"`
	Volatility   float64 `yaml:"volatility"`
	VolumeSurge  float64 `yaml:"volume_surge"`
	Sentiment    float64 `yaml:"sentiment"`
	Manipulation float64 `yaml:"manipulation"` // negative, penalises pump risk
}

// Sum returns the total of all weights including the penalty
func (w WeightsConfig) Sum() float64 {
	return w.Momentum + w.Scarcity + w.Discount + w.Volatility + w.VolumeSurge + w.Sentiment + w.Manipulation
}

// SignalsConfig bounds the individual explosiveness signals
type SignalsConfig struct {
	MomentumShortCap      float64 `yaml:"momentum_short_cap"`
	MomentumMedCap        float64 `yaml:"momentum_med_cap"`
	ScarcityThreshold     float64 `yaml:"scarcity_threshold"`
	ScarcityVolumeCeiling int     `yaml:"scarcity_volume_ceiling"`
	DiscountCap           float64 `yaml:"discount_cap"`
	VolatilityCeiling     float64 `yaml:"volatility_ceiling"`
	VolumeBaselineFactor  float64 `yaml:"volume_baseline_factor"`
	VolumeSpikeMultiplier float64 `yaml:"volume_spike_multiplier"`
	VolumeSpikeCeiling    float64 `yaml:"volume_spike_ceiling"`
	SentimentDivisor      float64 `yaml:"sentiment_divisor"`
	SentimentCeiling      float64 `yaml:"sentiment_ceiling"`
}

// PumpConfig holds the additive pump-risk rules
type PumpConfig struct {
	HighVolume         int        `yaml:"high_volume"`
	HighVolumeMomentum float64    `yaml:"high_volume_momentum"`
	HighVolumePoints   float64    `yaml:"high_volume_points"`
	SpikeRatio         float64    `yaml:"spike_ratio"`
	SpikePoints        float64    `yaml:"spike_points"`
	Keyword            string     `yaml:"keyword"`
	KeywordVolume      int        `yaml:"keyword_volume"`
	KeywordPoints      float64    `yaml:"keyword_points"`
	CollapseMomentum   float64    `yaml:"collapse_momentum"`
	CollapseVolume     int        `yaml:"collapse_volume"`
	CollapsePoints     float64    `yaml:"collapse_points"`
	KnownPumps         [][]string `yaml:"known_pumps"` // each entry matches when all terms are present
	KnownPumpPoints    float64    `yaml:"known_pump_points"`
}

// ArbitrageConfig holds the fee model and classification ladder
type ArbitrageConfig struct {
	SellFeeRate       float64 `yaml:"sell_fee_rate"`
	BuyFeeRate        float64 `yaml:"buy_fee_rate"`
	MinProfitPct      float64 `yaml:"min_profit_pct"`
	GoodProfitPct     float64 `yaml:"good_profit_pct"`
	MarginalProfitPct float64 `yaml:"marginal_profit_pct"`
	SmallLossPct      float64 `yaml:"small_loss_pct"`
	HighVolume        int     `yaml:"high_volume"`
	TargetMarginPct   float64 `yaml:"target_margin_pct"`
}

// CandidatesConfig selects which scored items are flagged as candidates
type CandidatesConfig struct {
	ExplosionThreshold float64 `yaml:"explosion_threshold"`
	MediumThreshold    float64 `yaml:"medium_threshold"`
	MinVolume          int     `yaml:"min_volume"`
	MaxPumpRisk        float64 `yaml:"max_pump_risk"`
	TopPercentile      float64 `yaml:"top_percentile"`
	MaxCandidates      int     `yaml:"max_candidates"`
}

// Validate checks the scoring constants
func (s *ScoringConfig) Validate() error {
	for name, v := range map[string]float64{
		"momentum_short_cap": s.Signals.MomentumShortCap,
		"momentum_med_cap":   s.Signals.MomentumMedCap,
		"scarcity_threshold": s.Signals.ScarcityThreshold,
		"discount_cap":       s.Signals.DiscountCap,
		"volatility_ceiling": s.Signals.VolatilityCeiling,
		"sentiment_divisor":  s.Signals.SentimentDivisor,
	} {
		if v <= 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: signals.%s must be positive", ErrInvalid, name)
		}
	}
	if s.Weights.Manipulation > 0 {
		return fmt.Errorf("%w: manipulation weight must not be positive", ErrInvalid)
	}
	if s.Arbitrage.SellFeeRate < 0 || s.Arbitrage.SellFeeRate >= 1 {
		return fmt.Errorf("%w: sell_fee_rate must be in [0,1)", ErrInvalid)
	}
	if s.Arbitrage.BuyFeeRate < 0 || s.Arbitrage.BuyFeeRate >= 1 {
		return fmt.Errorf("%w: buy_fee_rate must be in [0,1)", ErrInvalid)
	}
	if s.Arbitrage.GoodProfitPct < s.Arbitrage.MinProfitPct {
		return fmt.Errorf("%w: good_profit_pct below min_profit_pct", ErrInvalid)
	}
	if s.Candidates.TopPercentile <= 0 || s.Candidates.TopPercentile > 1 {
		return fmt.Errorf("%w: top_percentile must be in (0,1]", ErrInvalid)
	}
	return nil
}
