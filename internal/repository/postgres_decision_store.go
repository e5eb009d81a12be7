package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	"BetPulse/pkg/postgres"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
        fixture_id    TEXT PRIMARY KEY,
        record_id     TEXT NOT NULL,
        model_id      TEXT NOT NULL,
        ts            TIMESTAMPTZ NOT NULL,
        chosen_market TEXT NOT NULL,
        signal        TEXT NOT NULL,
        stake         DOUBLE PRECISION NOT NULL,
        vetoed        BOOLEAN NOT NULL,
        digest        TEXT NOT NULL,
        body          JSONB NOT NULL,
        version       BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS ledger (
        seq        BIGSERIAL PRIMARY KEY,
        id         TEXT NOT NULL UNIQUE,
        kind       TEXT NOT NULL,
        fixture_id TEXT NOT NULL,
        record_id  TEXT NOT NULL,
        body       JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS ledger_fixture_idx ON ledger (fixture_id)`,
}

// PGDecisionStore upserts on fixture_id; an older version never replaces
// a newer one.
type PGDecisionStore struct {
	db *sql.DB
}

func NewPGDecisionStore(db *sql.DB) *PGDecisionStore { return &PGDecisionStore{db: db} }

func (s *PGDecisionStore) Init(ctx context.Context) error {
	return postgres.Migrate(ctx, s.db, pgSchema)
}

const pgUpsert = `
INSERT INTO decisions (fixture_id, record_id, model_id, ts, chosen_market, signal, stake, vetoed, digest, body, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (fixture_id) DO UPDATE SET
    record_id = EXCLUDED.record_id,
    model_id = EXCLUDED.model_id,
    ts = EXCLUDED.ts,
    chosen_market = EXCLUDED.chosen_market,
    signal = EXCLUDED.signal,
    stake = EXCLUDED.stake,
    vetoed = EXCLUDED.vetoed,
    digest = EXCLUDED.digest,
    body = EXCLUDED.body,
    version = EXCLUDED.version
WHERE decisions.version <= EXCLUDED.version`

func (s *PGDecisionStore) Upsert(ctx context.Context, rec *models.DecisionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx, pgUpsert,
		rec.FixtureID, rec.ID, rec.ModelID, rec.Timestamp,
		string(rec.ChosenMarket), string(rec.Signal), rec.Stake, rec.Vetoed,
		rec.Seal.Digest, string(body), int64(rec.Version()),
	)
	if err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}
	return nil
}

func (s *PGDecisionStore) Get(ctx context.Context, fixtureID string) (*models.DecisionRecord, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM decisions WHERE fixture_id = $1`, fixtureID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	var rec models.DecisionRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &rec, nil
}

func (s *PGDecisionStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGDecisionStore) Close() error { return s.db.Close() }

// PGLedger is the durable ledger. Entries are never updated; a replayed
// id is ignored.
type PGLedger struct {
	db *sql.DB
}

func NewPGLedger(db *sql.DB) *PGLedger { return &PGLedger{db: db} }

func (l *PGLedger) Append(ctx context.Context, entries ...models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	for _, e := range entries {
		body, err := json.Marshal(e)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal ledger entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger (id, kind, fixture_id, record_id, body, created_at)
             VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			e.ID, string(e.Kind), e.FixtureID, e.RecordID, string(body), e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ledger append: %w", err)
		}
	}
	return tx.Commit()
}

func (l *PGLedger) Recent(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT body::text FROM ledger ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}
	defer rows.Close()
	return scanLedger(rows, limit)
}

var (
	_ domrepo.DecisionStore = (*PGDecisionStore)(nil)
	_ domrepo.LedgerStore   = (*PGLedger)(nil)
)
