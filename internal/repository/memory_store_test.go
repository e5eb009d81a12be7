package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
)

func record(fixture string, ts time.Time, selection string) *models.DecisionRecord {
	return &models.DecisionRecord{
		ID:        fixture + "-" + selection,
		FixtureID: fixture,
		Timestamp: ts,
		Selection: selection,
		Weights:   map[string]float64{"a": 1},
	}
}

func TestMemoryDecisionStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDecisionStore()
	t0 := time.Unix(1700000000, 0).UTC()

	if err := s.Upsert(ctx, record("f1", t0, "1x2:Home:VALUE")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, record("f1", t0.Add(time.Minute), "1x2:Away:VALUE")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// a stale resubmission does not win
	if err := s.Upsert(ctx, record("f1", t0, "1x2:Draw:VALUE")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	got, err := s.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Selection != "1x2:Away:VALUE" {
		t.Fatalf("selection = %q", got.Selection)
	}

	got.Weights["a"] = 42
	again, _ := s.Get(ctx, "f1")
	if again.Weights["a"] != 1 {
		t.Fatal("stored record shares memory with caller")
	}
}

func TestMemoryDecisionStoreNotFound(t *testing.T) {
	_, err := NewMemoryDecisionStore().Get(context.Background(), "missing")
	if !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryLedgerCapacity(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(3)
	for i := 0; i < 5; i++ {
		if err := l.Append(ctx, models.LedgerEntry{ID: fmt.Sprint(i), Kind: models.LedgerPrediction}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "4" || got[2].ID != "2" {
		t.Fatalf("recent = %+v", got)
	}
	got, _ = l.Recent(ctx, 1)
	if len(got) != 1 || got[0].ID != "4" {
		t.Fatalf("recent(1) = %+v", got)
	}
}
