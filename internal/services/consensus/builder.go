package consensus

import (
	"fmt"
	"strings"
	"time"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/services/integrity"

	"github.com/google/uuid"
)

// recordBuilder turns aggregated markets into sealed decisions.
type recordBuilder struct {
	cfg    Config
	sealer *integrity.Sealer
}

// decide runs the veto check and, only when it passes, the sizing step.
// A vetoed market is never sized.
// Without a snapshot quote for the pick, the reporters' own prices stand in.
func (b *recordBuilder) decide(sig models.AggregateSignal, snap models.MarketSnapshot, bankroll float64, forecasts []models.AgentForecast, weights map[string]float64) models.MarketDecision {
	d := models.MarketDecision{
		Market:       sig.Market,
		Status:       models.MarketOK,
		Distribution: sig.Distribution,
		Pick:         sig.Pick,
		Probability:  sig.Probability,
		Reporters:    len(sig.Reporters),
		Divergence:   sig.Divergence * b.cfg.DivergenceScale,
	}
	d.Chaos = ClassifyChaos(d.Divergence, b.cfg.DivergenceThreshold)
	if q, ok := snap.Quote(sig.Pick); ok {
		price := q.Price
		d.Price = &price
	}
	var fallback bool
	if d.Price == nil {
		if price, ok := reportedPrice(sig, forecasts, weights); ok {
			d.Price = &price
			fallback = true
		}
	}

	veto := CheckVeto(snap, sig.Pick, b.cfg.VetoPublicShare, b.cfg.VetoDrift)
	d.Sentiment = veto.Sentiment
	if veto.Vetoed {
		reason := veto.Reason
		zero := 0.0
		d.Vetoed = true
		d.VetoReason = &reason
		d.Stake = &zero
		d.Signal = models.SignalNoBet
		return d
	}

	if d.Price == nil {
		d.Warning = fmt.Sprintf("no market price for %s", sig.Pick)
		d.Signal = Classify(nil, sig.Probability, b.cfg.ValueEdge, b.cfg.ConvictionProbability)
		return d
	}

	d.Sized = true
	sz, err := Size(SizingInput{
		Probability:   sig.Probability,
		Odds:          *d.Price,
		Bankroll:      bankroll,
		KellyFraction: b.cfg.KellyFraction,
		MaxStakePct:   b.cfg.MaxStakePct,
	})
	var warnings []string
	if fallback {
		warnings = append(warnings, fmt.Sprintf("agent-reported price used for %s", sig.Pick))
	}
	if err != nil {
		warnings = append(warnings, err.Error())
	} else if sz.Capped {
		warnings = append(warnings, "stake capped at max_stake_pct")
	}
	d.Warning = strings.Join(warnings, "; ")
	if sz.Edge != nil {
		pct := *sz.Edge * 100
		d.EdgePct = &pct
	}
	stake := sz.Stake
	d.Stake = &stake
	d.Signal = Classify(sz.Edge, sig.Probability, b.cfg.ValueEdge, b.cfg.ConvictionProbability)
	return d
}

// reportedPrice is the weight-averaged price the pick's reporters quoted.
// Prices at or below 1 are ignored and the remaining weights renormalized.
func reportedPrice(sig models.AggregateSignal, forecasts []models.AgentForecast, weights map[string]float64) (float64, bool) {
	reporters := make(map[string]struct{}, len(sig.Reporters))
	for _, id := range sig.Reporters {
		reporters[id] = struct{}{}
	}
	var sum, wsum float64
	for _, f := range forecasts {
		if _, ok := reporters[f.AgentID]; !ok {
			continue
		}
		price, ok := f.Prices[sig.Market][sig.Pick]
		if !ok || !finite(price) || price <= 1 {
			continue
		}
		w := weights[f.AgentID]
		sum += w * price
		wsum += w
	}
	if wsum <= 0 {
		return 0, false
	}
	return sum / wsum, true
}

// failed flags a market that could not be aggregated.
func (b *recordBuilder) failed(m models.Market, err error) models.MarketDecision {
	return models.MarketDecision{Market: m, Status: models.MarketFailed, Error: err.Error()}
}

// build assembles and seals the record. decisions must be in requested
// market order.
func (b *recordBuilder) build(fixtureID string, ts time.Time, bankroll float64, decisions []models.MarketDecision, div DivergenceResult) (*models.DecisionRecord, error) {
	rec := &models.DecisionRecord{
		ID:              recordID(fixtureID, b.cfg.ModelID, ts),
		FixtureID:       fixtureID,
		ModelID:         b.cfg.ModelID,
		Timestamp:       ts,
		Bankroll:        bankroll,
		DivergenceIndex: div.Index,
		Chaos:           div.Chaos,
		Markets:         decisions,
	}

	for i := range rec.Markets {
		d := &rec.Markets[i]
		if d.Status != models.MarketOK {
			continue
		}
		seal, err := b.sealer.SealAt(fixtureID, b.cfg.ModelID, MarketSelection(d.Market, d.Pick, d.Signal), ts)
		if err != nil {
			return nil, &InvalidInputError{Field: string(d.Market), Reason: err.Error()}
		}
		d.Seal = &seal
	}

	chosen := chooseMarket(rec.Markets)
	if chosen < 0 {
		return nil, &NoDataError{}
	}
	c := rec.Markets[chosen]
	rec.ChosenMarket = c.Market
	rec.Selection = c.Pick
	rec.Signal = c.Signal
	rec.Vetoed = c.Vetoed
	rec.VetoReason = c.VetoReason
	if !c.Vetoed {
		rec.EdgePct = c.EdgePct
		if c.Stake != nil {
			rec.Stake = *c.Stake
		}
	}

	if div.Chaos == models.ChaosHigh {
		rec.HedgeMarket = widestMarket(rec.Markets)
	}
	rec.DiamondPick = c.Signal == models.SignalStrongValue && div.Index < b.cfg.DiamondDivergence
	rec.AlphaRating = Rate(c.Probability, c.EdgePct, c.Vetoed)

	seal, err := b.sealer.SealAt(fixtureID, b.cfg.ModelID, MarketSelection(c.Market, c.Pick, c.Signal), ts)
	if err != nil {
		return nil, &InvalidInputError{Field: "record", Reason: err.Error()}
	}
	rec.Seal = seal
	return rec, nil
}

// sealAgents seals every agent's own primary pick for each evaluated market.
func (b *recordBuilder) sealAgents(fixtureID string, ts time.Time, forecasts []models.AgentForecast, decisions []models.MarketDecision) ([]models.AgentSeal, error) {
	var out []models.AgentSeal
	for _, f := range forecasts {
		for _, d := range decisions {
			if d.Status != models.MarketOK {
				continue
			}
			dist, ok := f.Reported(d.Market)
			if !ok {
				continue
			}
			pick, _ := PrimaryPick(dist)
			seal, err := b.sealer.SealAt(fixtureID, f.AgentID, AgentSelection(d.Market, pick), ts)
			if err != nil {
				return nil, &InvalidInputError{Field: f.AgentID, Reason: err.Error()}
			}
			out = append(out, models.AgentSeal{AgentID: f.AgentID, Market: d.Market, Pick: pick, Seal: seal})
		}
	}
	return out, nil
}

// MarketSelection is the sealed selection string of a market decision.
func MarketSelection(m models.Market, pick string, signal models.SignalLabel) string {
	return strings.Join([]string{string(m), pick, string(signal)}, ":")
}

// AgentSelection is the sealed selection string of an agent pick.
func AgentSelection(m models.Market, pick string) string {
	return string(m) + ":" + pick
}

// chooseMarket prefers the non-vetoed market with the largest edge, then
// falls back to the first evaluated market. Returns -1 when none was
// evaluated.
func chooseMarket(ds []models.MarketDecision) int {
	best, first := -1, -1
	for i, d := range ds {
		if d.Status != models.MarketOK {
			continue
		}
		if first < 0 {
			first = i
		}
		if d.Vetoed || d.EdgePct == nil {
			continue
		}
		if best < 0 || *d.EdgePct > *ds[best].EdgePct {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	return first
}

func widestMarket(ds []models.MarketDecision) models.Market {
	var (
		m     models.Market
		width = -1.0
	)
	for _, d := range ds {
		if d.Status == models.MarketOK && d.Divergence > width {
			m, width = d.Market, d.Divergence
		}
	}
	return m
}

func recordID(fixtureID, modelID string, ts time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(integrity.CanonicalPayload(fixtureID, modelID, "record", ts.Unix()))).String()
}
