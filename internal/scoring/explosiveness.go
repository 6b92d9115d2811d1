package scoring

// Components are the normalized explosiveness signals, each in [0,1]
type Components struct {
	Momentum     float64 `json:"momentum_composite"`
	Scarcity     float64 `json:"scarcity_signal"`
	Discount     float64 `json:"discount_opportunity"`
	Volatility   float64 `json:"volatility_breakout"`
	VolumeSurge  float64 `json:"volume_surge"`
	Sentiment    float64 `json:"market_sentiment"`
	Manipulation float64 `json:"manipulation_risk"`
}

// momentum returns the short and medium ratios used by the composite.
// Unlike Growth, absent denominators are neutral (1.0).
func momentum(in Input) (short, med float64) {
	short = safeRatio(in.Avg24h, in.Avg7d, 1.0)
	med = 1.0
	if in.Avg30d > 0 {
		med = safeRatio(in.Avg7d, in.Avg30d, 1.0)
	}
	return short, med
}

func (e *Engine) components(in Input, momentumShort, momentumMed, pumpRisk float64) Components {
	s := e.cfg.Signals
	var c Components

	shortN := Normalize(momentumShort, 1.0, s.MomentumShortCap)
	medN := Normalize(momentumMed, 1.0, s.MomentumMedCap)
	c.Momentum = 0.6*shortN + 0.3*medN + 0.1*shortN*medN

	var listings float64
	if in.Listings != nil {
		listings = Normalize(s.ScarcityThreshold-float64(*in.Listings), 0, s.ScarcityThreshold)
	}
	var thinVolume float64
	if ceiling := s.ScarcityVolumeCeiling; in.Volume7d < ceiling {
		thinVolume = Normalize(float64(ceiling-in.Volume7d), 0, float64(ceiling))
	}
	c.Scarcity = 0.7*listings + 0.3*thinVolume

	if in.Avg7d > 0 && in.CurrentPrice > 0 {
		c.Discount = Normalize((in.Avg7d-in.CurrentPrice)/in.Avg7d, 0, s.DiscountCap)
	}

	c.Volatility = Normalize(populationCV(in.CurrentPrice, in.Avg24h, in.Avg7d), 0, s.VolatilityCeiling)

	// no prior-period series exists, the baseline is a multiple of the current volume
	vol := float64(in.Volume7d)
	baseline := 1.0
	if in.Volume7d > 0 {
		baseline = vol * s.VolumeBaselineFactor
	}
	if vol > baseline*s.VolumeSpikeMultiplier {
		c.VolumeSurge = Normalize(vol/baseline, s.VolumeSpikeMultiplier, s.VolumeSpikeCeiling)
	}

	if in.Avg30d > 0 {
		relative := safeRatio(safeRatio(in.Avg7d, in.Avg30d, 1.0), s.SentimentDivisor, 1.0)
		c.Sentiment = Normalize(relative, 1.0, s.SentimentCeiling)
	}

	c.Manipulation = pumpRisk / 100
	return c
}

// weighted sums the components with the configured weights
func (e *Engine) weighted(c Components) float64 {
	w := e.cfg.Weights
	return c.Momentum*w.Momentum +
		c.Scarcity*w.Scarcity +
		c.Discount*w.Discount +
		c.Volatility*w.Volatility +
		c.VolumeSurge*w.VolumeSurge +
		c.Sentiment*w.Sentiment +
		c.Manipulation*w.Manipulation
}

// Explosiveness returns the 0..100 breakout score and its components
func (e *Engine) Explosiveness(in Input) (float64, Components) {
	return e.explosiveness(in, e.PumpRisk(in))
}

func (e *Engine) explosiveness(in Input, pumpRisk float64) (float64, Components) {
	short, med := momentum(in)
	c := e.components(in, short, med, pumpRisk)
	return round(clamp(e.weighted(c)*100, 0, 100), 2), c
}
