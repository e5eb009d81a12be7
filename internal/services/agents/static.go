package agents

import (
	"context"
	"fmt"

	"BetPulse/internal/domain/models"
	domsvc "BetPulse/internal/domain/service"
)

// StaticAgent serves canned forecasts keyed by fixture id. It backs
// replays of recorded agent output.
type StaticAgent struct {
	id        string
	forecasts map[string]map[models.Market]models.Distribution
}

func NewStaticAgent(id string, forecasts map[string]map[models.Market]models.Distribution) *StaticAgent {
	return &StaticAgent{id: id, forecasts: forecasts}
}

func (a *StaticAgent) ID() string { return a.id }

// Forecast returns the stored distributions restricted to markets.
func (a *StaticAgent) Forecast(ctx context.Context, fixtureID string, markets []models.Market) (models.AgentForecast, error) {
	if err := ctx.Err(); err != nil {
		return models.AgentForecast{}, err
	}
	all, ok := a.forecasts[fixtureID]
	if !ok {
		return models.AgentForecast{}, fmt.Errorf("agent %s: no forecast for %s", a.id, fixtureID)
	}
	out := models.AgentForecast{AgentID: a.id, Markets: make(map[models.Market]models.Distribution, len(markets))}
	for _, m := range markets {
		if d, ok := all[m]; ok {
			out.Markets[m] = d.Clone()
		}
	}
	return out, nil
}

var _ domsvc.ForecastAgent = (*StaticAgent)(nil)
