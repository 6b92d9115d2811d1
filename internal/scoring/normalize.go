package scoring

import "math"

// Normalize maps value linearly onto [0,1] between min and max.
// Values at or below min give 0, at or above max give 1; NaN and
// infinities give 0.
func Normalize(value, min, max float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value <= min {
		return 0
	}
	if value >= max {
		return 1
	}
	return (value - min) / (max - min)
}

func safeRatio(num, den, fallback float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return fallback
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fallback
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// populationCV is stddev/mean over the positive samples, 0 with fewer than two
func populationCV(samples ...float64) float64 {
	var pts []float64
	for _, s := range samples {
		if s > 0 {
			pts = append(pts, s)
		}
	}
	if len(pts) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pts {
		sum += p
	}
	mean := sum / float64(len(pts))

	var sq float64
	for _, p := range pts {
		sq += (p - mean) * (p - mean)
	}
	return math.Sqrt(sq/float64(len(pts))) / mean
}
