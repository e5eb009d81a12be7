package integrity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSealDeterministic(t *testing.T) {
	s := NewSealer()
	ts := time.Unix(1_700_000_000, 0)

	a, err := s.SealAt("fx-1", "consensus", "1x2:Home", ts)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := s.SealAt("fx-1", "consensus", "1x2:Home", ts)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical seals, got %+v and %+v", a, b)
	}
	if a.Payload != "fx-1|consensus|1x2:Home|1700000000" {
		t.Fatalf("unexpected payload %q", a.Payload)
	}
	if len(a.Digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a.Digest))
	}
}

func TestSealSensitivity(t *testing.T) {
	s := NewSealer()
	ts := time.Unix(1_700_000_000, 0)
	base, _ := s.SealAt("fx-1", "consensus", "1x2:Home", ts)

	tests := []struct {
		name      string
		fixture   string
		model     string
		selection string
		ts        time.Time
	}{
		{"fixture", "fx-2", "consensus", "1x2:Home", ts},
		{"model", "fx-1", "agent-a", "1x2:Home", ts},
		{"selection", "fx-1", "consensus", "1x2:Away", ts},
		{"timestamp", "fx-1", "consensus", "1x2:Home", ts.Add(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SealAt(tt.fixture, tt.model, tt.selection, tt.ts)
			if err != nil {
				t.Fatalf("seal: %v", err)
			}
			if got.Digest == base.Digest {
				t.Fatalf("changing %s did not change the digest", tt.name)
			}
		})
	}
}

func TestSealUsesClock(t *testing.T) {
	fixed := time.Unix(1_650_000_000, 999)
	s := NewSealer(WithClock(func() time.Time { return fixed }))
	seal, err := s.Seal("fx", "m", "sel")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if seal.Timestamp != 1_650_000_000 {
		t.Fatalf("timestamp = %d", seal.Timestamp)
	}
}

func TestSealRejectsSeparator(t *testing.T) {
	s := NewSealer()
	if _, err := s.Seal("fx|1", "m", "sel"); err == nil {
		t.Fatal("expected error for separator in fixture id")
	}
	if _, err := s.Seal("fx", "", "sel"); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestVerify(t *testing.T) {
	s := NewSealer()
	seal, _ := s.SealAt("fx-1", "consensus", "1x2:Home", time.Unix(1_700_000_000, 0))

	if err := Verify(seal); err != nil {
		t.Fatalf("valid seal rejected: %v", err)
	}

	tampered := seal
	tampered.Payload = "fx-1|consensus|1x2:Away|1700000000"
	err := Verify(tampered)
	if !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("expected integrity mismatch, got %v", err)
	}
	var mm *IntegrityMismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("expected *IntegrityMismatchError, got %T", err)
	}

	forgedTS := seal
	forgedTS.Timestamp++
	if err := Verify(forgedTS); !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("expected mismatch for forged timestamp, got %v", err)
	}

	recased := seal
	recased.Digest = strings.ToUpper(seal.Digest)
	if err := Verify(recased); !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("digest comparison must be exact, got %v", err)
	}
}

func TestVerifyFields(t *testing.T) {
	s := NewSealer()
	seal, _ := s.SealAt("fx-1", "consensus", "1x2:Home", time.Unix(1_700_000_000, 0))

	if err := VerifyFields(seal, "fx-1", "consensus", "1x2:Home"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := VerifyFields(seal, "fx-1", "consensus", "1x2:Draw"); !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
