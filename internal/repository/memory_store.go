package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
)

// MemoryDecisionStore keeps encoded records per fixture. Callers never
// share memory with stored records.
type MemoryDecisionStore struct {
	mu   sync.RWMutex
	recs map[string]memoryRecord
}

type memoryRecord struct {
	version uint64
	body    []byte
}

func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{recs: make(map[string]memoryRecord)}
}

func (s *MemoryDecisionStore) Init(context.Context) error { return nil }

// Upsert replaces the fixture's record unless the stored one is newer.
func (s *MemoryDecisionStore) Upsert(_ context.Context, rec *models.DecisionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	v := rec.Version()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.recs[rec.FixtureID]; ok && cur.version > v {
		return nil
	}
	s.recs[rec.FixtureID] = memoryRecord{version: v, body: body}
	return nil
}

func (s *MemoryDecisionStore) Get(_ context.Context, fixtureID string) (*models.DecisionRecord, error) {
	s.mu.RLock()
	cur, ok := s.recs[fixtureID]
	s.mu.RUnlock()
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	var rec models.DecisionRecord
	if err := json.Unmarshal(cur.body, &rec); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &rec, nil
}

// Len reports how many fixtures are stored.
func (s *MemoryDecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *MemoryDecisionStore) Health(context.Context) error { return nil }
func (s *MemoryDecisionStore) Close() error                 { return nil }

// MemoryLedger is a bounded ring of the most recent entries.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	cap     int
}

func NewMemoryLedger(capacity int) *MemoryLedger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryLedger{cap: capacity}
}

func (l *MemoryLedger) Append(_ context.Context, entries ...models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
	if over := len(l.entries) - l.cap; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *MemoryLedger) Recent(_ context.Context, limit int) ([]models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]models.LedgerEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

var (
	_ domrepo.DecisionStore = (*MemoryDecisionStore)(nil)
	_ domrepo.LedgerStore   = (*MemoryLedger)(nil)
)
