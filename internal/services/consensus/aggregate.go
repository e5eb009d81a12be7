package consensus

import (
	"fmt"
	"math"
	"strings"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/services/integrity"
)

// tieEpsilon treats aggregate probabilities this close as equal, so the
// alphabetical tie-break is not defeated by float noise.
const tieEpsilon = 1e-12

// ValidateDistribution checks that d is a usable probability vector:
// non-empty, finite values in [0,1], summing to 1 within tol.
func ValidateDistribution(d models.Distribution, tol float64) error {
	if len(d) == 0 {
		return &InvalidInputError{Field: "distribution", Reason: "empty"}
	}
	for label, p := range d {
		if label == "" || strings.Contains(label, integrity.Separator) || strings.Contains(label, ":") {
			return &InvalidInputError{Field: "distribution", Reason: fmt.Sprintf("invalid outcome label %q", label)}
		}
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return &InvalidInputError{Field: "distribution", Reason: fmt.Sprintf("probability for %q out of range: %v", label, p)}
		}
	}
	if sum := d.Sum(); math.Abs(sum-1) > tol {
		return &InvalidInputError{Field: "distribution", Reason: fmt.Sprintf("probabilities sum to %.4f", sum)}
	}
	return nil
}

// Aggregate pools the reports for market m.
//
// Only agents that reported m take part, and only their weights form the
// denominator, so partial reporting never dilutes the pool. The result is
// renormalized to absorb differing label sets. Forecasts must already have
// passed ValidateDistribution.
func Aggregate(m models.Market, forecasts []models.AgentForecast, weights map[string]float64) (models.AggregateSignal, error) {
	sig := models.AggregateSignal{Market: m}

	pooled := make(models.Distribution)
	var denom float64
	for _, f := range forecasts {
		d, ok := f.Reported(m)
		if !ok {
			continue
		}
		w, ok := weights[f.AgentID]
		if !ok || w <= 0 {
			continue
		}
		for label, p := range d {
			pooled[label] += w * p
		}
		denom += w
		sig.Reporters = append(sig.Reporters, f.AgentID)
	}
	if len(sig.Reporters) == 0 {
		return sig, &NoDataError{Market: m}
	}

	var total float64
	for label, p := range pooled {
		pooled[label] = p / denom
		total += pooled[label]
	}
	if total <= 0 {
		return sig, &InvalidInputError{Field: string(m), Reason: "aggregate has no probability mass"}
	}
	for label, p := range pooled {
		pooled[label] = p / total
	}

	sig.Distribution = pooled
	sig.Pick, sig.Probability = PrimaryPick(pooled)
	return sig, nil
}

// PrimaryPick returns the most probable outcome. Ties go to the
// alphabetically first label.
func PrimaryPick(d models.Distribution) (string, float64) {
	pick, best := "", -1.0
	for _, label := range d.Labels() {
		if p := d[label]; p > best+tieEpsilon {
			pick, best = label, p
		}
	}
	return pick, best
}
