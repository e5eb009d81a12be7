package repository

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubScores struct {
	scores map[string]float64
	err    error
}

func (s stubScores) Scores(_ context.Context, ids []string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]float64{}
	for _, id := range ids {
		if v, ok := s.scores[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func TestStaticScoreSource(t *testing.T) {
	s := NewStaticScoreSource([]AgentStats{
		{ID: "a", Sharpe: 1.5, ROIPct: 10},
		{ID: "b"},
	})
	got, err := s.Scores(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(got) != 1 || math.Abs(got["a"]-2.0) > 1e-9 {
		t.Fatalf("scores = %v", got)
	}
}

func TestFallbackScoreSource(t *testing.T) {
	secondary := stubScores{scores: map[string]float64{"a": 9, "b": 2}}
	tests := []struct {
		name    string
		primary stubScores
		want    map[string]float64
		errs    int
	}{
		{"primary wins", stubScores{scores: map[string]float64{"a": 1}}, map[string]float64{"a": 1, "b": 2}, 0},
		{"primary down", stubScores{err: errors.New("redis down")}, map[string]float64{"a": 9, "b": 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs int
			f := NewFallbackScoreSource(tt.primary, secondary, func(error) { errs++ })
			got, err := f.Scores(context.Background(), []string{"a", "b", "c"})
			if err != nil {
				t.Fatalf("scores: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("scores = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			if errs != tt.errs {
				t.Errorf("onError calls = %d, want %d", errs, tt.errs)
			}
		})
	}
}
