package di

import (
	"testing"

	"BetPulse/internal/repository"
	"BetPulse/pkg/config"
	applogger "BetPulse/pkg/logger"
)

const minimalConfig = `
environment: test
agents:
  - id: poisson
    url: http://localhost:9001
    sharpe: 1.2
    roi_pct: 8
`

func TestProvideStorageDefaultsToMemory(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := ProvideStorage(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if _, ok := s.Decisions.(*repository.MemoryDecisionStore); !ok {
		t.Fatalf("decisions = %T", s.Decisions)
	}
	if _, ok := s.Ledger.(*repository.MemoryLedger); !ok {
		t.Fatalf("ledger = %T", s.Ledger)
	}
}

func TestDisabledInfrastructureIsNil(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rdb, err := ProvideRedisClient(cfg); err != nil || rdb != nil {
		t.Fatalf("redis = %v, %v", rdb, err)
	}
	p, err := ProvideKafkaProducer(cfg)
	if err != nil || p != nil {
		t.Fatalf("producer = %v, %v", p, err)
	}
	if _, ok := ProvideDecisionPublisher(cfg, p).(repository.NopPublisher); !ok {
		t.Fatal("expected nop publisher without kafka")
	}
	if _, ok := ProvideScoreSource(cfg, nil, applogger.Nop()).(*repository.StaticScoreSource); !ok {
		t.Fatal("expected static score source without redis")
	}
}
