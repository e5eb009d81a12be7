package consensus

import (
	"math"
	"sort"
)

// ScoreFromStats folds raw performance figures into the scalar score the
// weight manager consumes: Sharpe ratio plus ROI percent scaled by 1/20.
func ScoreFromStats(sharpe, roiPct float64) float64 {
	return sharpe + roiPct/20
}

// ResolveWeights maps agents to normalized weights.
//
// weight = max(score, floor), normalized to sum 1. Agents without a finite
// score receive the mean of the known scores, or 1.0 when none is known.
// Duplicate ids count once.
func ResolveWeights(agents []string, scores map[string]float64, floor float64) (map[string]float64, error) {
	ids := uniqueSorted(agents)
	if len(ids) == 0 {
		return nil, &InvalidInputError{Field: "agents", Reason: "agent set is empty"}
	}
	if floor <= 0 || math.IsNaN(floor) || math.IsInf(floor, 0) {
		return nil, &InvalidInputError{Field: "weight_floor", Reason: "must be a positive number"}
	}

	var known, sum float64
	for _, id := range ids {
		if s, ok := finiteScore(scores, id); ok {
			sum += s
			known++
		}
	}
	fill := 1.0
	if known > 0 {
		fill = sum / known
	}

	raw := make(map[string]float64, len(ids))
	var total float64
	for _, id := range ids {
		s, ok := finiteScore(scores, id)
		if !ok {
			s = fill
		}
		w := math.Max(s, floor)
		raw[id] = w
		total += w
	}
	for id, w := range raw {
		raw[id] = w / total
	}
	return raw, nil
}

func finiteScore(scores map[string]float64, id string) (float64, bool) {
	s, ok := scores[id]
	if !ok || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, false
	}
	return s, true
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
