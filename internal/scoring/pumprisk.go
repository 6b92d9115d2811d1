package scoring

import (
	"math"
	"strings"
)

// PumpRisk is an additive 0..100 alarm score. Each rule contributes its
// points independently; the total is capped at 100 and rounded to 1 dp.
func (e *Engine) PumpRisk(in Input) float64 {
	p := e.cfg.Pump
	short, _ := momentum(in)
	name := strings.ToLower(in.Name)

	var risk float64
	if in.Volume7d > p.HighVolume && short < p.HighVolumeMomentum {
		risk += p.HighVolumePoints
	}
	if in.Avg30d > 0 && in.Avg7d > 0 && in.Avg7d/in.Avg30d > p.SpikeRatio {
		risk += p.SpikePoints
	}
	if e.keyword != "" && strings.Contains(name, e.keyword) && in.Volume7d > p.KeywordVolume {
		risk += p.KeywordPoints
	}
	if short < p.CollapseMomentum && in.Volume7d > p.CollapseVolume {
		risk += p.CollapsePoints
	}
	if e.knownPump(name) {
		risk += p.KnownPumpPoints
	}
	return round(math.Min(100, risk), 1)
}

func (e *Engine) knownPump(lowerName string) bool {
	for _, terms := range e.knownPumps {
		if len(terms) == 0 {
			continue
		}
		all := true
		for _, t := range terms {
			if !strings.Contains(lowerName, t) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
