package consensus

import (
	"errors"
	"math"
	"testing"

	"BetPulse/internal/domain/models"
)

func TestSizeQuarterKelly(t *testing.T) {
	s, err := Size(SizingInput{Probability: 0.62, Odds: 1.80, Bankroll: 10000, KellyFraction: 0.25})
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if s.Edge == nil {
		t.Fatal("edge missing")
	}
	if math.Abs(*s.Edge-0.116) > 1e-9 {
		t.Fatalf("edge = %v, want 0.116", *s.Edge)
	}
	// both forms of the edge agree
	alt := (0.62 - s.ImpliedProbability) * 1.80
	if math.Abs(*s.Edge-alt) > 1e-9 {
		t.Fatalf("edge %v != (p - 1/odds)*odds %v", *s.Edge, alt)
	}
	if math.Abs(s.FullKelly-0.145) > 1e-9 {
		t.Fatalf("full kelly = %v, want 0.145", s.FullKelly)
	}
	if s.Stake <= 0 || math.Abs(s.Stake-362.5) > 0.011 {
		t.Fatalf("stake = %v, want ~362.50", s.Stake)
	}
}

func TestSizeNoEdgeFloorsAtZero(t *testing.T) {
	s, err := Size(SizingInput{Probability: 0.4, Odds: 2.0, Bankroll: 10000, KellyFraction: 0.25})
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if s.FullKelly >= 0 {
		t.Fatalf("expected negative full kelly, got %v", s.FullKelly)
	}
	if s.Stake != 0 || s.AppliedFraction != 0 {
		t.Fatalf("stake = %v applied = %v, want 0", s.Stake, s.AppliedFraction)
	}
}

func TestSizeDegenerate(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		odds float64
	}{
		{"odds at one", 0.6, 1.0},
		{"odds below one", 0.6, 0.5},
		{"zero probability", 0, 2.0},
		{"certain probability", 1, 2.0},
		{"NaN odds", 0.6, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Size(SizingInput{Probability: tt.p, Odds: tt.odds, Bankroll: 10000, KellyFraction: 0.25})
			if !errors.Is(err, ErrDegenerateMarket) {
				t.Fatalf("expected degenerate market, got %v", err)
			}
			if s.Stake != 0 || s.Edge != nil {
				t.Fatalf("degenerate sizing must be zero stake and nil edge, got %+v", s)
			}
		})
	}
}

func TestSizeNeverNegative(t *testing.T) {
	probs := []float64{0, 1e-9, 0.01, 0.25, 0.5, 0.75, 0.99, 1 - 1e-9, 1}
	odds := []float64{1.0000001, 1.01, 1.5, 2, 3.5, 10, 1000, 1e9}
	for _, p := range probs {
		for _, o := range odds {
			s, _ := Size(SizingInput{Probability: p, Odds: o, Bankroll: 10000, KellyFraction: 0.25})
			if s.Stake < 0 || math.IsNaN(s.Stake) {
				t.Fatalf("p=%v odds=%v: stake %v", p, o, s.Stake)
			}
		}
	}
}

func TestSizeCap(t *testing.T) {
	s, err := Size(SizingInput{Probability: 0.9, Odds: 3, Bankroll: 1000, KellyFraction: 1, MaxStakePct: 0.05})
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if !s.Capped || s.Stake != 50 {
		t.Fatalf("expected capped stake 50, got %+v", s)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		edge *float64
		p    float64
		want models.SignalLabel
	}{
		{"edge and conviction", ptr(0.116), 0.62, models.SignalStrongValue},
		{"edge only", ptr(0.08), 0.45, models.SignalValue},
		{"conviction only", ptr(0.01), 0.7, models.SignalNoValue},
		{"neither", ptr(-0.1), 0.3, models.SignalNoTrade},
		{"edge unknown", nil, 0.7, models.SignalNoValue},
		{"edge at threshold", ptr(0.05), 0.9, models.SignalNoValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.edge, tt.p, 0.05, 0.60); got != tt.want {
				t.Fatalf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		name    string
		p       float64
		edgePct *float64
		vetoed  bool
		want    models.AlphaRating
	}{
		{"strong and wide", 0.82, ptr(12), false, models.RatingAAA},
		{"strong but thin edge", 0.82, ptr(6), false, models.RatingAA},
		{"conviction without edge", 0.72, nil, false, models.RatingA},
		{"coin flip", 0.5, ptr(20), false, models.RatingA},
		{"long shot", 0.3, ptr(40), false, models.RatingB},
		{"vetoed", 0.9, ptr(30), true, models.RatingB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rate(tt.p, tt.edgePct, tt.vetoed); got != tt.want {
				t.Fatalf("Rate = %s, want %s", got, tt.want)
			}
		})
	}
}
