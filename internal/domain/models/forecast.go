package models

import "time"

// AgentForecast is one agent's probability report for a fixture.
// Markets the agent did not report are simply absent.
type AgentForecast struct {
	AgentID string                        `json:"agent_id"`
	Markets map[Market]Distribution       `json:"markets"`
	Prices  map[Market]map[string]float64 `json:"prices,omitempty"`
}

// Reported returns the distribution for m when the agent reported it.
func (f AgentForecast) Reported(m Market) (Distribution, bool) {
	d, ok := f.Markets[m]
	return d, ok && len(d) > 0
}

// FixtureInput is everything the engine needs to evaluate one fixture.
type FixtureInput struct {
	FixtureID   string                    `json:"fixture_id"`
	Forecasts   []AgentForecast           `json:"forecasts"`
	Snapshots   map[Market]MarketSnapshot `json:"snapshots,omitempty"`
	Scores      map[string]float64        `json:"scores,omitempty"`
	Bankroll    float64                   `json:"bankroll,omitempty"`
	Markets     []Market                  `json:"markets,omitempty"`
	Unavailable []string                  `json:"unavailable,omitempty"`
	EvaluatedAt time.Time                 `json:"evaluated_at,omitempty"`
}

// AgentStats are the raw historical performance figures of an agent.
type AgentStats struct {
	AgentID string  `json:"agent_id"`
	Sharpe  float64 `json:"sharpe"`
	ROIPct  float64 `json:"roi_pct"`
}
