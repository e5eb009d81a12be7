package repository

import (
	"context"
	"errors"

	"BetPulse/internal/domain/models"
)

// ErrNotFound is returned when no decision exists for a fixture.
var ErrNotFound = errors.New("decision not found")

// DecisionStore persists sealed decisions. Upsert is idempotent and keyed
// by fixture id: a resubmitted fixture overwrites, never duplicates.
type DecisionStore interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, rec *models.DecisionRecord) error
	Get(ctx context.Context, fixtureID string) (*models.DecisionRecord, error)
	Health(ctx context.Context) error
	Close() error
}

type DecisionPublisher interface {
	Publish(ctx context.Context, rec *models.DecisionRecord) error
	Close() error
}

// ScoreSource supplies per-agent performance scores. Agents without a
// known score are omitted from the returned map.
type ScoreSource interface {
	Scores(ctx context.Context, agentIDs []string) (map[string]float64, error)
}

type LedgerStore interface {
	Append(ctx context.Context, entries ...models.LedgerEntry) error
	Recent(ctx context.Context, limit int) ([]models.LedgerEntry, error)
}

type Metrics interface {
	RecordEvaluation(result string)
	RecordMarket(market, signal string)
	RecordVeto(market string)
	RecordChaos(level string, index float64)
	RecordStake(market string, stake float64)
	RecordAgentUnavailable(agent string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
