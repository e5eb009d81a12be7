package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	domrepo "BetPulse/internal/domain/repository"
	"BetPulse/internal/services/consensus"
)

// RedisScoreSource reads agent scores from one hash (field = agent id).
// Fields that are missing or not finite numbers are skipped.
type RedisScoreSource struct {
	cli redis.UniversalClient
	key string
}

func NewRedisScoreSource(cli redis.UniversalClient, key string) *RedisScoreSource {
	return &RedisScoreSource{cli: cli, key: key}
}

func (r *RedisScoreSource) Scores(ctx context.Context, agentIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	vals, err := r.cli.HMGet(ctx, r.key, agentIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis scores: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[agentIDs[i]] = f
	}
	return out, nil
}

// StaticScoreSource serves scores derived once from configured stats.
type StaticScoreSource struct {
	scores map[string]float64
}

// AgentStats carries the configured performance of one agent.
type AgentStats struct {
	ID     string
	Sharpe float64
	ROIPct float64
}

func NewStaticScoreSource(stats []AgentStats) *StaticScoreSource {
	s := &StaticScoreSource{scores: make(map[string]float64, len(stats))}
	for _, a := range stats {
		if a.Sharpe == 0 && a.ROIPct == 0 {
			continue
		}
		s.scores[a.ID] = consensus.ScoreFromStats(a.Sharpe, a.ROIPct)
	}
	return s
}

func (s *StaticScoreSource) Scores(_ context.Context, agentIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(agentIDs))
	for _, id := range agentIDs {
		if v, ok := s.scores[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// FallbackScoreSource asks primary first and fills gaps from secondary.
// A failing primary is treated as knowing nothing.
type FallbackScoreSource struct {
	primary, secondary domrepo.ScoreSource
	onError            func(error)
}

func NewFallbackScoreSource(primary, secondary domrepo.ScoreSource, onError func(error)) *FallbackScoreSource {
	return &FallbackScoreSource{primary: primary, secondary: secondary, onError: onError}
}

func (f *FallbackScoreSource) Scores(ctx context.Context, agentIDs []string) (map[string]float64, error) {
	out, err := f.primary.Scores(ctx, agentIDs)
	if err != nil {
		if f.onError != nil {
			f.onError(err)
		}
		out = make(map[string]float64, len(agentIDs))
	}
	var missing []string
	for _, id := range agentIDs {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	rest, err := f.secondary.Scores(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("fallback scores: %w", err)
	}
	for k, v := range rest {
		out[k] = v
	}
	return out, nil
}

var (
	_ domrepo.ScoreSource = (*RedisScoreSource)(nil)
	_ domrepo.ScoreSource = (*StaticScoreSource)(nil)
	_ domrepo.ScoreSource = (*FallbackScoreSource)(nil)
)
