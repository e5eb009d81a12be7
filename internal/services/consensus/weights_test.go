package consensus

import (
	"errors"
	"math"
	"testing"
)

func sumWeights(w map[string]float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func TestResolveWeights(t *testing.T) {
	tests := []struct {
		name   string
		agents []string
		scores map[string]float64
		want   map[string]float64
	}{
		{
			name:   "proportional to scores",
			agents: []string{"a", "b"},
			scores: map[string]float64{"a": 0.6, "b": 0.4},
			want:   map[string]float64{"a": 0.6, "b": 0.4},
		},
		{
			name:   "floor keeps bad agents in the vote",
			agents: []string{"a", "b"},
			scores: map[string]float64{"a": 0.9, "b": -3},
			want:   map[string]float64{"a": 0.9, "b": 0.1},
		},
		{
			name:   "all non-positive is uniform",
			agents: []string{"a", "b", "c", "d"},
			scores: map[string]float64{"a": 0, "b": -1, "c": -0.5, "d": 0},
			want:   map[string]float64{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25},
		},
		{
			name:   "no scores is uniform",
			agents: []string{"a", "b"},
			scores: nil,
			want:   map[string]float64{"a": 0.5, "b": 0.5},
		},
		{
			name:   "missing score gets mean of known",
			agents: []string{"a", "b", "c"},
			scores: map[string]float64{"a": 1, "b": 3},
			want:   map[string]float64{"a": 1.0 / 6, "b": 3.0 / 6, "c": 2.0 / 6},
		},
		{
			name:   "NaN treated as missing",
			agents: []string{"a", "b"},
			scores: map[string]float64{"a": 2, "b": math.NaN()},
			want:   map[string]float64{"a": 0.5, "b": 0.5},
		},
		{
			name:   "duplicates count once",
			agents: []string{"a", "a", "b"},
			scores: map[string]float64{"a": 1, "b": 1},
			want:   map[string]float64{"a": 0.5, "b": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWeights(tt.agents, tt.scores, 0.1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d weights, want %d", len(got), len(tt.want))
			}
			for id, w := range tt.want {
				if math.Abs(got[id]-w) > 1e-9 {
					t.Errorf("weight[%s] = %.6f, want %.6f", id, got[id], w)
				}
			}
			if s := sumWeights(got); math.Abs(s-1) > 1e-9 {
				t.Errorf("weights sum to %.12f", s)
			}
		})
	}
}

func TestResolveWeightsEmpty(t *testing.T) {
	_, err := ResolveWeights(nil, nil, 0.1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestResolveWeightsSumProperty(t *testing.T) {
	scores := []float64{-10, -0.2, 0, 0.05, 0.1, 0.3, 1, 7.5, 1e6}
	for i := range scores {
		agents := make([]string, 0, i+1)
		sc := make(map[string]float64, i+1)
		for j := 0; j <= i; j++ {
			id := string(rune('a' + j))
			agents = append(agents, id)
			sc[id] = scores[j]
		}
		w, err := ResolveWeights(agents, sc, 0.1)
		if err != nil {
			t.Fatalf("n=%d: %v", i+1, err)
		}
		if s := sumWeights(w); math.Abs(s-1) > 1e-9 {
			t.Fatalf("n=%d: weights sum to %.12f", i+1, s)
		}
		for id, v := range w {
			if v <= 0 || v > 1 {
				t.Fatalf("n=%d: weight[%s]=%v outside (0,1]", i+1, id, v)
			}
		}
	}
}

func TestScoreFromStats(t *testing.T) {
	if got := ScoreFromStats(1.2, 10); math.Abs(got-1.7) > 1e-12 {
		t.Fatalf("ScoreFromStats = %v, want 1.7", got)
	}
}
