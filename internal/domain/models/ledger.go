package models

import "time"

// LedgerKind distinguishes ledger entry types. Only predictions are
// recorded today.
type LedgerKind string

const (
	LedgerPrediction LedgerKind = "PREDICTION"
)

// LedgerEntry is an append-only audit line for one evaluation.
type LedgerEntry struct {
	ID        string      `json:"id"`
	Kind      LedgerKind  `json:"kind"`
	FixtureID string      `json:"fixture_id"`
	RecordID  string      `json:"record_id"`
	Market    Market      `json:"market,omitempty"`
	Selection string      `json:"selection,omitempty"`
	Signal    SignalLabel `json:"signal"`
	Stake     float64     `json:"stake"`
	EdgePct   *float64    `json:"edge_pct,omitempty"`
	Chaos     ChaosLevel  `json:"chaos"`
	Vetoed    bool        `json:"vetoed"`
	Digest    string      `json:"digest"`
	CreatedAt time.Time   `json:"created_at"`
}
