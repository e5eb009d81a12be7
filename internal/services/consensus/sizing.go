package consensus

import (
	"math"

	"BetPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

// SizingInput is everything the value & sizing step needs for one pick.
type SizingInput struct {
	Probability   float64
	Odds          float64
	Bankroll      float64
	KellyFraction float64
	// MaxStakePct caps the stake at this share of bankroll; 0 disables.
	MaxStakePct float64
}

// Sizing is the result of sizing one pick.
type Sizing struct {
	ImpliedProbability float64
	// Edge is p*odds - 1; nil when the inputs are degenerate.
	Edge            *float64
	FullKelly       float64
	AppliedFraction float64
	// Stake is in currency units, rounded down to cents, never negative.
	Stake  float64
	Capped bool
}

// Size converts an aggregate probability and decimal odds into an edge and
// a fractional-Kelly stake. Degenerate inputs (odds <= 1, p outside (0,1),
// non-finite values) yield a zero stake together with a
// *DegenerateMarketError the caller may record and continue past.
func Size(in SizingInput) (Sizing, error) {
	p, odds := in.Probability, in.Odds
	switch {
	case !finite(odds) || odds <= 1:
		return Sizing{}, &DegenerateMarketError{Odds: odds, Probability: p, Reason: "odds must exceed 1.0"}
	case !finite(p) || p <= 0 || p >= 1:
		return Sizing{}, &DegenerateMarketError{Odds: odds, Probability: p, Reason: "probability must lie strictly between 0 and 1"}
	}

	edge := p*odds - 1
	b := odds - 1
	q := 1 - p
	full := (b*p - q) / b

	s := Sizing{
		ImpliedProbability: 1 / odds,
		Edge:               &edge,
		FullKelly:          full,
		AppliedFraction:    math.Max(full*in.KellyFraction, 0),
	}
	if in.MaxStakePct > 0 && s.AppliedFraction > in.MaxStakePct {
		s.AppliedFraction = in.MaxStakePct
		s.Capped = true
	}
	if finite(in.Bankroll) && in.Bankroll > 0 {
		s.Stake = roundStake(s.AppliedFraction * in.Bankroll)
	}
	return s, nil
}

// Classify labels a sized pick. High conviction needs both the edge and the
// probability threshold; edge alone is low conviction.
func Classify(edge *float64, probability, valueEdge, conviction float64) models.SignalLabel {
	hasEdge := edge != nil && *edge > valueEdge
	confident := probability > conviction
	switch {
	case hasEdge && confident:
		return models.SignalStrongValue
	case hasEdge:
		return models.SignalValue
	case confident:
		return models.SignalNoValue
	default:
		return models.SignalNoTrade
	}
}

func roundStake(v float64) float64 {
	if v <= 0 || !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).RoundFloor(2).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Rate grades a pick. Conviction is the pick probability on a 0-10 scale:
// AAA needs 8 and a 10% edge, AA needs 7 and a 5% edge, A needs 5. A vetoed
// pick is always B.
func Rate(probability float64, edgePct *float64, vetoed bool) models.AlphaRating {
	if vetoed {
		return models.RatingB
	}
	conviction := probability * 10
	edge := 0.0
	if edgePct != nil {
		edge = *edgePct
	}
	switch {
	case conviction >= 8 && edge >= 10:
		return models.RatingAAA
	case conviction >= 7 && edge >= 5:
		return models.RatingAA
	case conviction >= 5:
		return models.RatingA
	default:
		return models.RatingB
	}
}
