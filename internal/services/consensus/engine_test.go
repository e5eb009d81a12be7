package consensus

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/services/integrity"
)

var evalTime = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := Config{}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg, WithClock(func() time.Time { return evalTime }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func homeDrawAway(h, d, a float64) models.Distribution {
	return models.Distribution{"Home": h, "Draw": d, "Away": a}
}

func valueFixture() models.FixtureInput {
	return models.FixtureInput{
		FixtureID: "epl-2026-ars-che",
		Markets:   []models.Market{models.Market1X2},
		Forecasts: []models.AgentForecast{
			forecast("agent-a", map[models.Market]models.Distribution{models.Market1X2: homeDrawAway(0.70, 0.20, 0.10)}),
			forecast("agent-b", map[models.Market]models.Distribution{models.Market1X2: homeDrawAway(0.50, 0.30, 0.20)}),
		},
		Scores: map[string]float64{"agent-a": 0.6, "agent-b": 0.4},
		Snapshots: map[models.Market]models.MarketSnapshot{
			models.Market1X2: {Outcomes: map[string]models.OutcomeQuote{
				"Home": {Price: 1.80},
				"Draw": {Price: 3.60},
				"Away": {Price: 5.00},
			}},
		},
		Bankroll: 10000,
	}
}

func TestEvaluateValueScenario(t *testing.T) {
	e := newTestEngine(t, nil)
	rec, err := e.Evaluate(valueFixture())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if rec.ChosenMarket != models.Market1X2 || rec.Selection != "Home" {
		t.Fatalf("chosen %s/%s, want 1x2/Home", rec.ChosenMarket, rec.Selection)
	}
	d, _ := rec.Market(models.Market1X2)
	if math.Abs(d.Probability-0.62) > 1e-9 {
		t.Fatalf("P(Home) = %v, want 0.62", d.Probability)
	}
	if rec.EdgePct == nil || math.Abs(*rec.EdgePct-11.6) > 1e-6 {
		t.Fatalf("edge pct = %v, want 11.6", rec.EdgePct)
	}
	if rec.Stake <= 0 {
		t.Fatalf("stake = %v, want > 0", rec.Stake)
	}
	if rec.Signal != models.SignalStrongValue {
		t.Fatalf("signal = %s", rec.Signal)
	}
	if rec.Chaos != models.ChaosLow {
		t.Fatalf("chaos = %s", rec.Chaos)
	}
	if rec.AlphaRating != models.RatingA {
		t.Fatalf("alpha rating = %s, want A", rec.AlphaRating)
	}
	if !d.Sized || d.Vetoed || d.VetoReason != nil {
		t.Fatalf("unexpected market decision %+v", d)
	}
	if !rec.Timestamp.Equal(evalTime) {
		t.Fatalf("timestamp = %v", rec.Timestamp)
	}
	if math.Abs(rec.Weights["agent-a"]-0.6) > 1e-9 {
		t.Fatalf("weights = %v", rec.Weights)
	}
	if err := VerifyRecord(rec); err != nil {
		t.Fatalf("fresh record must verify: %v", err)
	}
}

func TestEvaluateVetoScenario(t *testing.T) {
	in := valueFixture()
	in.Snapshots[models.Market1X2].Outcomes["Home"] = models.OutcomeQuote{Price: 1.80, PublicShare: ptr(0.72), Drift: ptr(0.15)}

	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !rec.Vetoed {
		t.Fatal("expected veto")
	}
	if rec.VetoReason == nil || !strings.Contains(*rec.VetoReason, "luring trap") {
		t.Fatalf("reason = %v", rec.VetoReason)
	}
	if rec.Stake != 0 || rec.EdgePct != nil {
		t.Fatalf("vetoed record must have zero stake and no edge, got stake=%v edge=%v", rec.Stake, rec.EdgePct)
	}
	if rec.Signal != models.SignalNoBet {
		t.Fatalf("signal = %s, want NO-BET", rec.Signal)
	}
	d, _ := rec.Market(models.Market1X2)
	if d.Sized {
		t.Fatal("vetoed market must never be sized")
	}
	if d.Stake == nil || *d.Stake != 0 || d.EdgePct != nil {
		t.Fatalf("market stake=%v edge=%v", d.Stake, d.EdgePct)
	}
	if d.Sentiment != models.SentimentLuringTrap {
		t.Fatalf("sentiment = %s", d.Sentiment)
	}
	if err := VerifyRecord(rec); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEvaluateChaosScenario(t *testing.T) {
	in := models.FixtureInput{
		FixtureID: "cup-final",
		Markets:   []models.Market{models.Market1X2},
		Forecasts: []models.AgentForecast{
			forecast("a", map[models.Market]models.Distribution{models.Market1X2: {"Home": 0.9, "Away": 0.1}}),
			forecast("b", map[models.Market]models.Distribution{models.Market1X2: {"Home": 0.1, "Away": 0.9}}),
		},
	}
	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	d, _ := rec.Market(models.Market1X2)
	if math.Abs(d.Distribution["Home"]-0.5) > 1e-9 {
		t.Fatalf("aggregate home = %v, want 0.5", d.Distribution["Home"])
	}
	if rec.Chaos != models.ChaosHigh {
		t.Fatalf("chaos = %s, want HIGH (index %v)", rec.Chaos, rec.DivergenceIndex)
	}
	if math.Abs(rec.DivergenceIndex-10*math.Sqrt(0.32)) > 1e-9 {
		t.Fatalf("index = %v", rec.DivergenceIndex)
	}
	if rec.HedgeMarket != models.Market1X2 {
		t.Fatalf("hedge market = %q", rec.HedgeMarket)
	}
	// agreeing agents must score lower
	calm, err := newTestEngine(t, nil).Evaluate(valueFixture())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if calm.DivergenceIndex >= rec.DivergenceIndex {
		t.Fatalf("expected chaos fixture to diverge most: %v vs %v", rec.DivergenceIndex, calm.DivergenceIndex)
	}
}

func TestEvaluatePartialMarkets(t *testing.T) {
	in := valueFixture()
	in.Markets = nil // all defaults
	in.Forecasts[0].Markets[models.MarketTotals] = models.Distribution{"Over": 0.6, "Under": 0.4}

	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(rec.Markets) != 3 {
		t.Fatalf("markets = %d, want 3", len(rec.Markets))
	}
	h, _ := rec.Market(models.MarketHandicap)
	if h.Status != models.MarketFailed || !strings.Contains(h.Error, "no data") {
		t.Fatalf("handicap should be flagged, got %+v", h)
	}
	tot, _ := rec.Market(models.MarketTotals)
	if tot.Status != models.MarketOK || math.Abs(tot.Probability-0.6) > 1e-9 {
		t.Fatalf("totals = %+v", tot)
	}
	if tot.Reporters != 1 || tot.Divergence != 0 {
		t.Fatalf("single reporter must not diverge: %+v", tot)
	}
	if tot.Price != nil || tot.Sized || tot.Warning == "" {
		t.Fatalf("totals without price must be flagged unsized: %+v", tot)
	}
	if rec.ChosenMarket != models.Market1X2 {
		t.Fatalf("chosen = %s", rec.ChosenMarket)
	}
}

func TestEvaluateRejectsMalformedForecast(t *testing.T) {
	in := valueFixture()
	in.Forecasts = append(in.Forecasts,
		forecast("agent-c", map[models.Market]models.Distribution{models.Market1X2: homeDrawAway(0.9, 0.9, 0.9)}),
		forecast("agent-a", map[models.Market]models.Distribution{models.Market1X2: homeDrawAway(0.1, 0.1, 0.8)}),
	)
	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, ok := rec.Weights["agent-c"]; ok {
		t.Fatal("malformed agent must not be weighted")
	}
	// agent-c loses its only market and then the agent itself; agent-a is a duplicate
	if len(rec.Rejected) != 3 {
		t.Fatalf("rejected = %+v", rec.Rejected)
	}
	d, _ := rec.Market(models.Market1X2)
	if math.Abs(d.Probability-0.62) > 1e-9 {
		t.Fatalf("malformed input leaked into the pool: %v", d.Probability)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.FixtureInput)
		target error
	}{
		{"missing fixture", func(in *models.FixtureInput) { in.FixtureID = "" }, ErrInvalidInput},
		{"separator in fixture", func(in *models.FixtureInput) { in.FixtureID = "a|b" }, ErrInvalidInput},
		{"no agents", func(in *models.FixtureInput) { in.Forecasts = nil }, ErrInvalidInput},
		{"nothing reported", func(in *models.FixtureInput) { in.Markets = []models.Market{models.MarketTotals} }, ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valueFixture()
			tt.mutate(&in)
			_, err := newTestEngine(t, nil).Evaluate(in)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := newTestEngine(t, nil)
	a, err := e.Evaluate(valueFixture())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	b, err := e.Evaluate(valueFixture())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if a.ID != b.ID || a.Seal != b.Seal {
		t.Fatalf("same inputs must give the same record id and seal")
	}
	if len(a.AgentSeals) != 2 || a.AgentSeals[0].AgentID != "agent-a" {
		t.Fatalf("agent seals = %+v", a.AgentSeals)
	}
}

func TestEvaluateDegenerateOdds(t *testing.T) {
	in := valueFixture()
	in.Snapshots[models.Market1X2].Outcomes["Home"] = models.OutcomeQuote{Price: 1.0}
	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("degenerate odds must not be fatal: %v", err)
	}
	d, _ := rec.Market(models.Market1X2)
	if d.Stake == nil || *d.Stake != 0 || d.EdgePct != nil {
		t.Fatalf("stake=%v edge=%v", d.Stake, d.EdgePct)
	}
	if !strings.Contains(d.Warning, "degenerate") {
		t.Fatalf("warning = %q", d.Warning)
	}
}

func TestEvaluateDiamondPick(t *testing.T) {
	in := valueFixture()
	in.Forecasts[1].Markets[models.Market1X2] = homeDrawAway(0.66, 0.22, 0.12)
	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rec.Signal != models.SignalStrongValue || !rec.DiamondPick {
		t.Fatalf("expected diamond pick, signal=%s index=%v", rec.Signal, rec.DivergenceIndex)
	}
}

func TestVerifyRecordDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(*models.DecisionRecord)
	}{
		{"selection", func(r *models.DecisionRecord) { r.Selection = "Away" }},
		{"signal", func(r *models.DecisionRecord) { r.Signal = models.SignalValue }},
		{"timestamp", func(r *models.DecisionRecord) { r.Timestamp = r.Timestamp.Add(time.Hour) }},
		{"digest", func(r *models.DecisionRecord) { r.Seal.Digest = strings.Repeat("0", 64) }},
		{"market pick", func(r *models.DecisionRecord) { r.Markets[0].Pick = "Draw" }},
		{"agent pick", func(r *models.DecisionRecord) { r.AgentSeals[1].Pick = "Away" }},
		{"vetoed with stake", func(r *models.DecisionRecord) { r.Vetoed = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newTestEngine(t, nil).Evaluate(valueFixture())
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			tt.tamper(rec)
			if err := VerifyRecord(rec); !errors.Is(err, integrity.ErrIntegrityMismatch) {
				t.Fatalf("expected integrity mismatch, got %v", err)
			}
		})
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := NewEngine(Config{KellyFraction: 2})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.KellyFraction != 0.25 || c.DivergenceThreshold != 2.5 || c.VetoPublicShare != 0.65 ||
		c.VetoDrift != 0.10 || c.WeightFloor != 0.1 || c.Bankroll != 10000 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if len(c.Markets) != 3 {
		t.Fatalf("markets = %v", c.Markets)
	}
}

func TestEvaluateFallsBackToReportedPrice(t *testing.T) {
	in := valueFixture()
	in.Snapshots = nil
	prices := map[models.Market]map[string]float64{models.Market1X2: {"Home": 1.80}}
	for i := range in.Forecasts {
		in.Forecasts[i].Prices = prices
	}
	in.Forecasts[1].Prices = map[models.Market]map[string]float64{models.Market1X2: {"Home": 2.00}}

	rec, err := newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	d, _ := rec.Market(models.Market1X2)
	// weights 0.6/0.4 over 1.80 and 2.00
	if d.Price == nil || math.Abs(*d.Price-1.88) > 1e-9 {
		t.Fatalf("price = %v, want 1.88", d.Price)
	}
	if !d.Sized || d.Stake == nil || *d.Stake <= 0 {
		t.Fatalf("market should be sized from reported prices: %+v", d)
	}
	if !strings.Contains(d.Warning, "agent-reported price") {
		t.Fatalf("warning = %q", d.Warning)
	}

	in.Forecasts[0].Prices = nil
	in.Forecasts[1].Prices = map[models.Market]map[string]float64{models.Market1X2: {"Home": 1.0}}
	rec, err = newTestEngine(t, nil).Evaluate(in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	d, _ = rec.Market(models.Market1X2)
	if d.Price != nil || d.Sized || !strings.Contains(d.Warning, "no market price") {
		t.Fatalf("degenerate reported prices must be ignored: %+v", d)
	}
}
