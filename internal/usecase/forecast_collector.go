package usecase

import (
	"context"
	"time"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	domsvc "BetPulse/internal/domain/service"
	applogger "BetPulse/pkg/logger"
)

// ForecastCollector fans a fixture out to every agent in parallel.
type ForecastCollector struct {
	agents   []domsvc.ForecastAgent
	timeout  time.Duration
	perAgent time.Duration
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewForecastCollector(agents []domsvc.ForecastAgent, timeout, perAgent time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *ForecastCollector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if perAgent <= 0 || perAgent > timeout {
		perAgent = timeout
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastCollector{agents: agents, timeout: timeout, perAgent: perAgent, metrics: metrics, l: l}
}

// Agents reports how many agents are configured.
func (c *ForecastCollector) Agents() int { return len(c.agents) }

// Collect returns the forecasts of agents that answered in time, in
// configuration order, and the ids of those that did not. It returns once
// every agent answered or the overall timeout passed, whichever is first;
// an agent that ignores its context is abandoned, not awaited.
func (c *ForecastCollector) Collect(ctx context.Context, fixtureID string, markets []models.Market) ([]models.AgentForecast, []string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type item struct {
		i   int
		f   models.AgentForecast
		err error
	}
	// buffered so late agents can finish and exit after Collect returns
	ch := make(chan item, len(c.agents))
	for i, a := range c.agents {
		go func(i int, a domsvc.ForecastAgent) {
			actx, acancel := context.WithTimeout(ctx, c.perAgent)
			defer acancel()
			f, err := a.Forecast(actx, fixtureID, markets)
			if err == nil && f.AgentID == "" {
				f.AgentID = a.ID()
			}
			ch <- item{i, f, err}
		}(i, a)
	}

	results := make([]*item, len(c.agents))
wait:
	for n := 0; n < len(c.agents); n++ {
		select {
		case r := <-ch:
			results[r.i] = &r
		case <-ctx.Done():
			break wait
		}
	}

	forecasts := make([]models.AgentForecast, 0, len(c.agents))
	var unavailable []string
	for i, r := range results {
		id := c.agents[i].ID()
		err := ctx.Err()
		if r != nil {
			err = r.err
		}
		if err != nil {
			unavailable = append(unavailable, id)
			c.metrics.RecordAgentUnavailable(id)
			c.l.Warn("agent unavailable",
				applogger.String("fixture_id", fixtureID),
				applogger.String("agent", id),
				applogger.Error(err),
			)
			continue
		}
		forecasts = append(forecasts, r.f)
	}
	return forecasts, unavailable
}
