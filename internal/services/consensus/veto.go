package consensus

import "BetPulse/internal/domain/models"

// LuringTrapReason is the fixed reason attached to a luring-trap veto.
const LuringTrapReason = "luring trap: public heavy but price drifting favorably for the book."

// VetoResult is the outcome of the manipulation check for one market.
type VetoResult struct {
	Vetoed    bool
	Reason    string
	Sentiment models.Sentiment
}

// CheckVeto applies the luring-trap rule to the candidate pick: public
// share above publicShare and upward price drift above drift, both strict.
// Missing sentiment data never vetoes.
func CheckVeto(snap models.MarketSnapshot, pick string, publicShare, drift float64) VetoResult {
	res := VetoResult{Sentiment: models.SentimentNormal}
	q, ok := snap.Quote(pick)
	if !ok || q.PublicShare == nil {
		return res
	}
	if *q.PublicShare <= publicShare {
		return res
	}
	res.Sentiment = models.SentimentHeavyPublic
	if q.Drift != nil && *q.Drift > drift {
		res.Vetoed = true
		res.Reason = LuringTrapReason
		res.Sentiment = models.SentimentLuringTrap
	}
	return res
}
