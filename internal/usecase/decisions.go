package usecase

import (
	"context"
	"encoding/json"
	"time"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	"BetPulse/internal/service/cache"
	svcmetrics "BetPulse/internal/service/metrics"
	"BetPulse/internal/services/consensus"
	"BetPulse/internal/services/integrity"
	"BetPulse/pkg/util"
)

// DecisionQueries serves stored decisions and audit checks.
type DecisionQueries struct {
	store  domrepo.DecisionStore
	ledger domrepo.LedgerStore
	cache  cache.BytesCache
	ttl    time.Duration
}

func NewDecisionQueries(store domrepo.DecisionStore, ledger domrepo.LedgerStore, c cache.BytesCache, ttl time.Duration) *DecisionQueries {
	return &DecisionQueries{store: store, ledger: ledger, cache: c, ttl: ttl}
}

// Get loads a fixture's latest decision, reading through the cache.
func (q *DecisionQueries) Get(ctx context.Context, fixtureID string) (*models.DecisionRecord, error) {
	key := cache.DecisionKey(fixtureID)
	if q.cache != nil {
		if b, ok, err := q.cache.GetBytes(ctx, key); err == nil && ok {
			var rec models.DecisionRecord
			if json.Unmarshal(b, &rec) == nil {
				svcmetrics.CacheLookups.WithLabelValues("hit").Inc()
				return &rec, nil
			}
		}
		svcmetrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	rec, err := q.store.Get(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	if q.cache != nil && q.ttl > 0 {
		if b, err := json.Marshal(rec); err == nil {
			_ = q.cache.SetBytes(ctx, key, b, q.ttl)
		}
	}
	return rec, nil
}

// VerifyStored re-checks every seal of the stored decision.
func (q *DecisionQueries) VerifyStored(ctx context.Context, fixtureID string) (*models.DecisionRecord, error) {
	rec, err := q.store.Get(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	return rec, consensus.VerifyRecord(rec)
}

// VerifyRecord checks a record presented by a caller.
func (q *DecisionQueries) VerifyRecord(rec *models.DecisionRecord) error {
	return consensus.VerifyRecord(rec)
}

// VerifySeal checks a single seal's digest against its payload.
func (q *DecisionQueries) VerifySeal(seal models.IntegritySeal) error {
	return integrity.Verify(seal)
}

// Ledger returns recent entries, newest first, optionally only those
// created at or after since (RFC3339 or unix seconds).
func (q *DecisionQueries) Ledger(ctx context.Context, limit int, since string) ([]models.LedgerEntry, error) {
	entries, err := q.ledger.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	from, ok := util.ParseTime(since)
	if !ok {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.CreatedAt.Before(from) {
			out = append(out, e)
		}
	}
	return out, nil
}
