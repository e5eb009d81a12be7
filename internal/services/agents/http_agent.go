package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BetPulse/internal/domain/models"
	domsvc "BetPulse/internal/domain/service"
	svcmetrics "BetPulse/internal/service/metrics"
	"BetPulse/pkg/config"
	xhttp "BetPulse/pkg/http"
)

// HTTPAgent asks a remote model service for a fixture forecast.
type HTTPAgent struct {
	id   string
	base *HTTPServiceBase
}

func NewHTTPAgent(cfg config.Agent) *HTTPAgent {
	return &HTTPAgent{id: cfg.ID, base: NewHTTPServiceBase(cfg.URL, cfg.Timeout, cfg.Retries)}
}

// NewHTTPAgents builds one client per configured agent.
func NewHTTPAgents(cfgs []config.Agent) []domsvc.ForecastAgent {
	out := make([]domsvc.ForecastAgent, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, NewHTTPAgent(c))
	}
	return out
}

type forecastReq struct {
	FixtureID string          `json:"fixture_id"`
	Markets   []models.Market `json:"markets"`
}

type forecastResp struct {
	Markets map[models.Market]models.Distribution `json:"markets"`
	Prices  map[models.Market]map[string]float64  `json:"prices,omitempty"`
}

func (a *HTTPAgent) ID() string { return a.id }

// Forecast posts to /forecast. An empty report counts as a failure.
func (a *HTTPAgent) Forecast(ctx context.Context, fixtureID string, markets []models.Market) (models.AgentForecast, error) {
	start := time.Now()
	var resp forecastResp
	err := a.base.PostJSON(ctx, "/forecast", forecastReq{FixtureID: fixtureID, Markets: markets}, &resp)
	svcmetrics.AgentLatency.WithLabelValues(a.id).Observe(time.Since(start).Seconds())
	if err != nil {
		svcmetrics.AgentErrors.WithLabelValues(a.id, failureReason(err)).Inc()
		return models.AgentForecast{}, fmt.Errorf("agent %s: %w", a.id, err)
	}
	if len(resp.Markets) == 0 {
		svcmetrics.AgentErrors.WithLabelValues(a.id, "empty").Inc()
		return models.AgentForecast{}, fmt.Errorf("agent %s: empty forecast", a.id)
	}
	return models.AgentForecast{AgentID: a.id, Markets: resp.Markets, Prices: resp.Prices}, nil
}

func failureReason(err error) string {
	var se *xhttp.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &se):
		return "status"
	default:
		return "transport"
	}
}

var _ domsvc.ForecastAgent = (*HTTPAgent)(nil)
