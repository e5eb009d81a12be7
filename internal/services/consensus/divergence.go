package consensus

import (
	"math"

	"BetPulse/internal/domain/models"
)

// DivergenceResult is the fixture-level disagreement summary.
type DivergenceResult struct {
	Index     float64
	Chaos     models.ChaosLevel
	PerMarket map[models.Market]float64 // scaled, like Index
}

// PickSpread is the sample standard deviation of the probabilities the
// reporting agents assign to pick in market m. Agents that reported m but
// not pick count as 0. Fewer than two reporters yields 0.
func PickSpread(m models.Market, pick string, forecasts []models.AgentForecast) float64 {
	var xs []float64
	for _, f := range forecasts {
		d, ok := f.Reported(m)
		if !ok {
			continue
		}
		xs = append(xs, d[pick])
	}
	return sampleStdDev(xs)
}

// Divergence averages the per-market spreads of the evaluated signals and
// scales the mean. Chaos is HIGH strictly above threshold.
func Divergence(signals []models.AggregateSignal, scale, threshold float64) DivergenceResult {
	res := DivergenceResult{Chaos: models.ChaosLow, PerMarket: make(map[models.Market]float64, len(signals))}
	if len(signals) == 0 {
		return res
	}
	var sum float64
	for _, s := range signals {
		sum += s.Divergence
		res.PerMarket[s.Market] = s.Divergence * scale
	}
	res.Index = sum / float64(len(signals)) * scale
	res.Chaos = ClassifyChaos(res.Index, threshold)
	return res
}

// ClassifyChaos maps a scaled divergence value to a chaos level.
func ClassifyChaos(index, threshold float64) models.ChaosLevel {
	if index > threshold {
		return models.ChaosHigh
	}
	return models.ChaosLow
}

func sampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
