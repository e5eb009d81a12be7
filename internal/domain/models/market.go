package models

import (
	"sort"
	"time"
)

// Market identifies a class of wager with a finite outcome set.
type Market string

const (
	Market1X2      Market = "1x2"
	MarketHandicap Market = "handicap"
	MarketTotals   Market = "totals"
)

// DefaultMarkets returns the markets evaluated when a request names none.
func DefaultMarkets() []Market {
	return []Market{Market1X2, MarketHandicap, MarketTotals}
}

// Distribution maps an outcome label to its probability.
type Distribution map[string]float64

// Labels returns the outcome labels in alphabetical order.
func (d Distribution) Labels() []string {
	labels := make([]string, 0, len(d))
	for k := range d {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, p := range d {
		s += p
	}
	return s
}

// Clone returns an independent copy.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// OutcomeQuote is the bookmaker view of a single outcome.
type OutcomeQuote struct {
	Price       float64  `json:"price"`
	Drift       *float64 `json:"drift,omitempty"`
	PublicShare *float64 `json:"public_share,omitempty"`
}

// MarketSnapshot holds current quotes for every outcome of one market.
type MarketSnapshot struct {
	Outcomes map[string]OutcomeQuote `json:"outcomes"`
	// Lookback is the window the drift values were measured over.
	Lookback time.Duration `json:"lookback,omitempty"`
}

// Quote returns the quote for label, if present.
func (s MarketSnapshot) Quote(label string) (OutcomeQuote, bool) {
	if s.Outcomes == nil {
		return OutcomeQuote{}, false
	}
	q, ok := s.Outcomes[label]
	return q, ok
}
