package consensus

import (
	"fmt"

	"BetPulse/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config carries every tunable constant of the engine. It is passed by
// value into NewEngine; zero fields take their defaults.
type Config struct {
	KellyFraction         float64         `yaml:"kelly_fraction" default:"0.25" validate:"gt=0,lte=1"`
	Bankroll              float64         `yaml:"bankroll" default:"10000" validate:"gt=0"`
	MaxStakePct           float64         `yaml:"max_stake_pct" validate:"gte=0,lte=1"`
	DivergenceThreshold   float64         `yaml:"divergence_threshold" default:"2.5" validate:"gt=0"`
	DivergenceScale       float64         `yaml:"divergence_scale" default:"10" validate:"gt=0"`
	DiamondDivergence     float64         `yaml:"diamond_divergence" default:"1.0" validate:"gte=0"`
	VetoPublicShare       float64         `yaml:"veto_public_share" default:"0.65" validate:"gt=0,lt=1"`
	VetoDrift             float64         `yaml:"veto_drift" default:"0.10" validate:"gt=0"`
	WeightFloor           float64         `yaml:"weight_floor" default:"0.1" validate:"gt=0"`
	ProbabilityTolerance  float64         `yaml:"probability_tolerance" default:"0.01" validate:"gt=0,lt=1"`
	ValueEdge             float64         `yaml:"value_edge" default:"0.05" validate:"gte=0"`
	ConvictionProbability float64         `yaml:"conviction_probability" default:"0.60" validate:"gt=0,lt=1"`
	ModelID               string          `yaml:"model_id" default:"consensus" validate:"required,excludes=0x7C"`
	Markets               []models.Market `yaml:"markets" validate:"omitempty,dive,oneof=1x2 handicap totals"`
}

var validate = validator.New()

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	var c Config
	_ = c.Normalize()
	return c
}

// Normalize fills zero fields with defaults and validates ranges.
func (c *Config) Normalize() error {
	if err := defaults.Set(c); err != nil {
		return &InvalidInputError{Field: "config", Reason: err.Error()}
	}
	if len(c.Markets) == 0 {
		c.Markets = models.DefaultMarkets()
	}
	if err := validate.Struct(c); err != nil {
		return &InvalidInputError{Field: "config", Reason: fmt.Sprintf("validate: %v", err)}
	}
	return nil
}
