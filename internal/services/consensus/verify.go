package consensus

import (
	"fmt"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/services/integrity"
)

// VerifyRecord re-verifies every seal on rec and checks that each seal was
// issued for the fields the record currently shows. Any failure is an
// *integrity.IntegrityMismatchError.
func VerifyRecord(rec *models.DecisionRecord) error {
	if rec == nil {
		return &integrity.IntegrityMismatchError{Reason: "record is nil"}
	}
	if rec.Seal.Timestamp != rec.Timestamp.Unix() {
		return &integrity.IntegrityMismatchError{Payload: rec.Seal.Payload, Reason: "record timestamp differs from seal"}
	}
	if rec.Vetoed && (rec.Stake != 0 || rec.EdgePct != nil) {
		return &integrity.IntegrityMismatchError{Payload: rec.Seal.Payload, Reason: "vetoed record carries a stake or edge"}
	}
	if err := integrity.VerifyFields(rec.Seal, rec.FixtureID, rec.ModelID, MarketSelection(rec.ChosenMarket, rec.Selection, rec.Signal)); err != nil {
		return fmt.Errorf("record seal: %w", err)
	}
	for _, d := range rec.Markets {
		if d.Status != models.MarketOK {
			continue
		}
		if d.Seal == nil {
			return &integrity.IntegrityMismatchError{Reason: fmt.Sprintf("market %s is unsealed", d.Market)}
		}
		if err := integrity.VerifyFields(*d.Seal, rec.FixtureID, rec.ModelID, MarketSelection(d.Market, d.Pick, d.Signal)); err != nil {
			return fmt.Errorf("market %s seal: %w", d.Market, err)
		}
	}
	for _, s := range rec.AgentSeals {
		if err := integrity.VerifyFields(s.Seal, rec.FixtureID, s.AgentID, AgentSelection(s.Market, s.Pick)); err != nil {
			return fmt.Errorf("agent %s seal: %w", s.AgentID, err)
		}
	}
	return nil
}
