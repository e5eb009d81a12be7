package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	pkgch "BetPulse/pkg/clickhouse"
	applogger "BetPulse/pkg/logger"
)

// CHDecisionStore keeps the latest record per fixture in a
// ReplacingMergeTree; reads use FINAL so superseded rows never surface.
type CHDecisionStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHDecisionStore(ch *pkgch.Client) *CHDecisionStore {
	return &CHDecisionStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHDecisionStore) SetLogger(l *applogger.Logger) { s.l = l }

func chSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
            fixture_id    String,
            record_id     String,
            model_id      LowCardinality(String),
            ts            DateTime64(3),
            chosen_market LowCardinality(String),
            signal        LowCardinality(String),
            stake         Float64,
            vetoed        UInt8,
            digest        String,
            body          String,
            version       UInt64
        ) ENGINE = ReplacingMergeTree(version)
        ORDER BY fixture_id`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ledger (
            id         String,
            kind       LowCardinality(String),
            fixture_id String,
            record_id  String,
            body       String,
            created_at DateTime64(3)
        ) ENGINE = MergeTree
        ORDER BY (created_at, id)`, database),
	}
}

func (s *CHDecisionStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, chSchema(s.ch.Database()))
}

func (s *CHDecisionStore) Upsert(ctx context.Context, rec *models.DecisionRecord) error {
	start := time.Now()
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s.decisions
        (fixture_id, record_id, model_id, ts, chosen_market, signal, stake, vetoed, digest, body, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.ch.Database())
	var vetoed uint8
	if rec.Vetoed {
		vetoed = 1
	}
	_, err = s.db.ExecContext(ctx, q,
		rec.FixtureID, rec.ID, rec.ModelID, rec.Timestamp,
		string(rec.ChosenMarket), string(rec.Signal), rec.Stake, vetoed,
		rec.Seal.Digest, string(body), rec.Version(),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert decision error",
				applogger.String("fixture_id", rec.FixtureID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert decision: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse upsert decision ok",
			applogger.String("fixture_id", rec.FixtureID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHDecisionStore) Get(ctx context.Context, fixtureID string) (*models.DecisionRecord, error) {
	q := fmt.Sprintf(`SELECT body FROM %s.decisions FINAL WHERE fixture_id = ? LIMIT 1`, s.ch.Database())
	var body string
	if err := s.db.QueryRowContext(ctx, q, fixtureID).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	var rec models.DecisionRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &rec, nil
}

func (s *CHDecisionStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHDecisionStore) Close() error { return s.ch.Close() }

// CHLedger appends ledger lines next to the decisions table.
type CHLedger struct {
	ch *pkgch.Client
}

func NewCHLedger(ch *pkgch.Client) *CHLedger { return &CHLedger{ch: ch} }

func (l *CHLedger) Append(ctx context.Context, entries ...models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := l.ch.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s.ledger (id, kind, fixture_id, record_id, body, created_at)`, l.ch.Database()))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("ledger prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		body, err := json.Marshal(e)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal ledger entry: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.Kind), e.FixtureID, e.RecordID, string(body), e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ledger append: %w", err)
		}
	}
	return tx.Commit()
}

func (l *CHLedger) Recent(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	rows, err := l.ch.DB().QueryContext(ctx, fmt.Sprintf(
		`SELECT body FROM %s.ledger ORDER BY created_at DESC, id DESC LIMIT ?`, l.ch.Database()), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}
	defer rows.Close()
	return scanLedger(rows, limit)
}

func scanLedger(rows *sql.Rows, limit int) ([]models.LedgerEntry, error) {
	out := make([]models.LedgerEntry, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		var e models.LedgerEntry
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var (
	_ domrepo.DecisionStore = (*CHDecisionStore)(nil)
	_ domrepo.LedgerStore   = (*CHLedger)(nil)
)
