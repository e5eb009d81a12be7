// Package consensus turns disagreeing agent forecasts and live prices into
// one sealed, sized decision per market.
//
// The engine performs no I/O and holds no mutable state after construction,
// so a single Engine may evaluate many fixtures concurrently.
package consensus

import (
	"fmt"
	"strings"
	"time"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/services/integrity"
)

// Engine evaluates fixtures with a fixed configuration.
type Engine struct {
	cfg     Config
	builder *recordBuilder
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the evaluation clock used when an input carries no time.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine validates cfg, filling defaults for zero fields.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.builder = &recordBuilder{cfg: cfg, sealer: integrity.NewSealer(integrity.WithClock(e.now))}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate produces the sealed decision for one fixture.
//
// Markets fail independently: a market nobody reported is flagged in the
// record while the rest are still decided. Evaluate only returns an error
// when the input as a whole is unusable or no market could be evaluated.
func (e *Engine) Evaluate(in models.FixtureInput) (*models.DecisionRecord, error) {
	if in.FixtureID == "" {
		return nil, &InvalidInputError{Field: "fixture_id", Reason: "required"}
	}
	if strings.Contains(in.FixtureID, integrity.Separator) {
		return nil, &InvalidInputError{Field: "fixture_id", Reason: fmt.Sprintf("must not contain %q", integrity.Separator)}
	}
	markets, err := e.requestedMarkets(in.Markets)
	if err != nil {
		return nil, err
	}

	forecasts, rejected := e.screen(in.Forecasts)
	agents := make([]string, 0, len(forecasts))
	for _, f := range forecasts {
		agents = append(agents, f.AgentID)
	}
	weights, err := ResolveWeights(agents, in.Scores, e.cfg.WeightFloor)
	if err != nil {
		return nil, err
	}

	bankroll := in.Bankroll
	if bankroll <= 0 {
		bankroll = e.cfg.Bankroll
	}
	ts := in.EvaluatedAt
	if ts.IsZero() {
		ts = e.now()
	}
	ts = time.Unix(ts.Unix(), 0).UTC()

	signals := make([]models.AggregateSignal, 0, len(markets))
	decisions := make([]models.MarketDecision, 0, len(markets))
	for _, m := range markets {
		sig, err := Aggregate(m, forecasts, weights)
		if err != nil {
			decisions = append(decisions, e.builder.failed(m, err))
			continue
		}
		sig.Divergence = PickSpread(m, sig.Pick, forecasts)
		signals = append(signals, sig)
		decisions = append(decisions, e.builder.decide(sig, in.Snapshots[m], bankroll, forecasts, weights))
	}

	div := Divergence(signals, e.cfg.DivergenceScale, e.cfg.DivergenceThreshold)
	rec, err := e.builder.build(in.FixtureID, ts, bankroll, decisions, div)
	if err != nil {
		return nil, err
	}
	rec.AgentSeals, err = e.builder.sealAgents(in.FixtureID, ts, forecasts, rec.Markets)
	if err != nil {
		return nil, err
	}
	rec.Weights = weights
	rec.Rejected = rejected
	if len(in.Unavailable) > 0 {
		rec.Unavailable = append([]string(nil), in.Unavailable...)
	}
	return rec, nil
}

func (e *Engine) requestedMarkets(req []models.Market) ([]models.Market, error) {
	if len(req) == 0 {
		req = e.cfg.Markets
	}
	seen := make(map[models.Market]struct{}, len(req))
	out := make([]models.Market, 0, len(req))
	for _, m := range req {
		if m == "" || strings.ContainsAny(string(m), integrity.Separator+":") {
			return nil, &InvalidInputError{Field: "markets", Reason: fmt.Sprintf("invalid market %q", m)}
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// screen drops unusable reports so one malformed forecast cannot corrupt
// the pool. Agents keep their valid markets; agents left with none are
// excluded entirely. The result is ordered by agent id.
func (e *Engine) screen(in []models.AgentForecast) ([]models.AgentForecast, []models.RejectedForecast) {
	var (
		out      []models.AgentForecast
		rejected []models.RejectedForecast
		seen     = make(map[string]struct{}, len(in))
	)
	for _, f := range in {
		switch {
		case f.AgentID == "" || strings.Contains(f.AgentID, integrity.Separator):
			rejected = append(rejected, models.RejectedForecast{AgentID: f.AgentID, Reason: "invalid agent id"})
			continue
		case hasKey(seen, f.AgentID):
			rejected = append(rejected, models.RejectedForecast{AgentID: f.AgentID, Reason: "duplicate agent report"})
			continue
		}
		seen[f.AgentID] = struct{}{}

		clean := models.AgentForecast{AgentID: f.AgentID, Markets: make(map[models.Market]models.Distribution, len(f.Markets)), Prices: f.Prices}
		for m, d := range f.Markets {
			if len(d) == 0 {
				continue
			}
			if err := ValidateDistribution(d, e.cfg.ProbabilityTolerance); err != nil {
				rejected = append(rejected, models.RejectedForecast{AgentID: f.AgentID, Market: m, Reason: err.Error()})
				continue
			}
			clean.Markets[m] = d.Clone()
		}
		if len(clean.Markets) == 0 {
			rejected = append(rejected, models.RejectedForecast{AgentID: f.AgentID, Reason: "no valid market reports"})
			continue
		}
		out = append(out, clean)
	}
	sortForecasts(out)
	sortRejected(rejected)
	return out, rejected
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
