package service

import (
	"context"

	"BetPulse/internal/domain/models"
)

// ForecastAgent produces a probability report for a fixture. Agents are
// black boxes; an error means the agent is unavailable for that fixture.
type ForecastAgent interface {
	ID() string
	Forecast(ctx context.Context, fixtureID string, markets []models.Market) (models.AgentForecast, error)
}

// Broadcaster pushes sealed decisions to live subscribers.
type Broadcaster interface {
	Broadcast(rec *models.DecisionRecord)
}
