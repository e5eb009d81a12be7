package models

// Requests for the decision HTTP endpoints. Defined in domain for reuse by
// the HTTP and Kafka entry points.

type EvaluateRequest struct {
	FixtureID string                    `json:"fixture_id" validate:"required,max=128,excludes=0x7C"`
	Markets   []Market                  `json:"markets" validate:"omitempty,dive,oneof=1x2 handicap totals"`
	Forecasts []AgentForecast           `json:"forecasts" validate:"omitempty,dive"`
	Snapshots map[Market]MarketSnapshot `json:"snapshots"`
	Scores    map[string]float64        `json:"scores"`
	Bankroll  float64                   `json:"bankroll" validate:"gte=0"`
	Collect   bool                      `json:"collect" default:"false"`
}

// ToInput converts the request into an engine input.
func (r *EvaluateRequest) ToInput() FixtureInput {
	return FixtureInput{
		FixtureID: r.FixtureID,
		Forecasts: r.Forecasts,
		Snapshots: r.Snapshots,
		Scores:    r.Scores,
		Bankroll:  r.Bankroll,
		Markets:   r.Markets,
	}
}

type DecisionRequest struct {
	FixtureID string `param:"fixture_id" validate:"required"`
}

type LedgerRequest struct {
	Limit int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
	Since string `query:"since"`
}

type VerifySealRequest struct {
	Digest    string `json:"digest" validate:"required,len=64,hexadecimal"`
	Payload   string `json:"payload" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
}

// Seal returns the seal under verification.
func (r *VerifySealRequest) Seal() IntegritySeal {
	return IntegritySeal{Digest: r.Digest, Payload: r.Payload, Timestamp: r.Timestamp}
}

type VerifyRecordRequest struct {
	Record *DecisionRecord `json:"record" validate:"required"`
}
