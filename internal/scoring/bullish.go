package scoring

import "math"

// Growth returns the short (24h vs 7d) and medium (7d vs 30d) growth
// ratios. A missing denominator with a present numerator counts as growth:
// 2.0 for the short horizon and 1.0 for the medium one.
func Growth(avg24h, avg7d, avg30d float64) (short, med float64) {
	switch {
	case avg7d > 0 && avg24h != 0:
		short = avg24h / avg7d
	case avg7d <= 0 && avg24h > 0:
		short = 2.0
	}

	switch {
	case avg30d > 0 && avg7d != 0:
		med = avg7d / avg30d
	case avg30d <= 0 && avg7d > 0:
		med = 1.0
	}
	return short, med
}

// Bullish scores price growth weighted by a logarithmic volume term
func Bullish(avg24h, avg7d, avg30d float64, volume7d int) float64 {
	short, med := Growth(avg24h, avg7d, avg30d)
	if volume7d < 0 {
		volume7d = 0
	}
	return (0.6*short + 0.4*med) * (1 + math.Log10(1+float64(volume7d)))
}
