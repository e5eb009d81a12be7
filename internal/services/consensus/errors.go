package consensus

import (
	"errors"
	"fmt"

	"BetPulse/internal/domain/models"
)

// Sentinels for errors.Is matching.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoData           = errors.New("no data")
	ErrDegenerateMarket = errors.New("degenerate market")
)

// InvalidInputError reports malformed probability vectors, an empty agent
// set or an invalid configuration.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// NoDataError reports a requested market no agent reported.
type NoDataError struct {
	Market models.Market
}

func (e *NoDataError) Error() string {
	if e.Market == "" {
		return "no data: no market could be evaluated"
	}
	return fmt.Sprintf("no data: no agent reported market %s", e.Market)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// DegenerateMarketError reports sizing inputs that admit no stake. It is
// recoverable: the stake is zeroed.
type DegenerateMarketError struct {
	Odds        float64
	Probability float64
	Reason      string
}

func (e *DegenerateMarketError) Error() string {
	return fmt.Sprintf("degenerate market: %s (odds=%.4f p=%.4f)", e.Reason, e.Odds, e.Probability)
}

func (e *DegenerateMarketError) Is(target error) bool { return target == ErrDegenerateMarket }
