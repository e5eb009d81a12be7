package models

import "time"

// ChaosLevel classifies how strongly agents disagree.
type ChaosLevel string

const (
	ChaosLow  ChaosLevel = "LOW"
	ChaosHigh ChaosLevel = "HIGH"
)

// SignalLabel is the actionable verdict for a market.
type SignalLabel string

const (
	// SignalStrongValue is value with high conviction.
	SignalStrongValue SignalLabel = "STRONG_VALUE"
	// SignalValue is value with low conviction.
	SignalValue   SignalLabel = "VALUE"
	SignalNoValue SignalLabel = "NO_VALUE"
	SignalNoTrade SignalLabel = "NO_TRADE"
	// SignalNoBet is forced by a veto and overrides any other label.
	SignalNoBet SignalLabel = "NO-BET"
)

// AlphaRating grades the chosen pick by conviction and edge.
type AlphaRating string

const (
	RatingAAA AlphaRating = "AAA"
	RatingAA  AlphaRating = "AA"
	RatingA   AlphaRating = "A"
	RatingB   AlphaRating = "B"
)

// Sentiment summarises the public-money picture of a market.
type Sentiment string

const (
	SentimentNormal      Sentiment = "Normal"
	SentimentHeavyPublic Sentiment = "Heavy Public"
	SentimentLuringTrap  Sentiment = "Luring Trap"
)

// MarketStatus tells whether a market could be evaluated.
type MarketStatus string

const (
	MarketOK     MarketStatus = "ok"
	MarketFailed MarketStatus = "failed"
)

// AggregateSignal is the weighted consensus for one market.
type AggregateSignal struct {
	Market       Market
	Distribution Distribution
	Pick         string
	Probability  float64
	Reporters    []string
	// Divergence is the sample standard deviation of the reporters'
	// probabilities for Pick, unscaled.
	Divergence float64
}

// IntegritySeal is a digest over a canonical payload.
type IntegritySeal struct {
	Digest    string `json:"digest"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// MarketDecision is the evaluated outcome for one market of a fixture.
type MarketDecision struct {
	Market       Market         `json:"market"`
	Status       MarketStatus   `json:"status"`
	Error        string         `json:"error,omitempty"`
	Warning      string         `json:"warning,omitempty"`
	Distribution Distribution   `json:"distribution,omitempty"`
	Pick         string         `json:"pick,omitempty"`
	Probability  float64        `json:"probability"`
	Reporters    int            `json:"reporters"`
	Divergence   float64        `json:"divergence"`
	Chaos        ChaosLevel     `json:"chaos,omitempty"`
	Price        *float64       `json:"price,omitempty"`
	Vetoed       bool           `json:"vetoed"`
	VetoReason   *string        `json:"veto_reason"`
	Sentiment    Sentiment      `json:"sentiment,omitempty"`
	Sized        bool           `json:"sized"`
	EdgePct      *float64       `json:"edge_pct"`
	Stake        *float64       `json:"stake"`
	Signal       SignalLabel    `json:"signal,omitempty"`
	Seal         *IntegritySeal `json:"seal,omitempty"`
}

// AgentSeal records the sealed primary pick of a single agent.
type AgentSeal struct {
	AgentID string        `json:"agent_id"`
	Market  Market        `json:"market"`
	Pick    string        `json:"pick"`
	Seal    IntegritySeal `json:"seal"`
}

// RejectedForecast is an agent report excluded before aggregation.
type RejectedForecast struct {
	AgentID string `json:"agent_id"`
	Market  Market `json:"market,omitempty"`
	Reason  string `json:"reason"`
}

// DecisionRecord is the sealed result of one evaluation cycle.
// FixtureID is the idempotency key for persistence.
type DecisionRecord struct {
	ID              string             `json:"id"`
	FixtureID       string             `json:"fixture_id"`
	ModelID         string             `json:"model_id"`
	Timestamp       time.Time          `json:"timestamp"`
	ChosenMarket    Market             `json:"chosen_market"`
	Selection       string             `json:"selection"`
	EdgePct         *float64           `json:"edge_pct"`
	Stake           float64            `json:"stake"`
	Bankroll        float64            `json:"bankroll"`
	DivergenceIndex float64            `json:"divergence_index"`
	Chaos           ChaosLevel         `json:"chaos"`
	Vetoed          bool               `json:"vetoed"`
	VetoReason      *string            `json:"veto_reason"`
	Signal          SignalLabel        `json:"signal"`
	HedgeMarket     Market             `json:"hedge_market,omitempty"`
	DiamondPick     bool               `json:"diamond_pick"`
	AlphaRating     AlphaRating        `json:"alpha_rating"`
	Weights         map[string]float64 `json:"weights"`
	Unavailable     []string           `json:"unavailable,omitempty"`
	Rejected        []RejectedForecast `json:"rejected,omitempty"`
	Markets         []MarketDecision   `json:"markets"`
	AgentSeals      []AgentSeal        `json:"agent_seals,omitempty"`
	Seal            IntegritySeal      `json:"seal"`
}

// Market returns the decision for m, if it was evaluated.
func (r *DecisionRecord) Market(m Market) (MarketDecision, bool) {
	for _, d := range r.Markets {
		if d.Market == m {
			return d, true
		}
	}
	return MarketDecision{}, false
}

// Version orders superseding records of the same fixture.
func (r *DecisionRecord) Version() uint64 {
	return uint64(r.Timestamp.UnixNano())
}
