package predict

import (
	"time"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Strategy selects how the intent label is produced
type Strategy string

const (
	// StrategyBlend mixes classifier and memory distributions, like emotion
	StrategyBlend Strategy = "blend"
	// StrategyGated trusts the nearest memory match or asks the fallback oracle
	StrategyGated Strategy = "gated"
)

// Params are the routing parameters of the ensemble router
type Params struct {
	AlphaEmotion      float64       `yaml:"alpha_emotion"`
	AlphaIntent       float64       `yaml:"alpha_intent"`
	Strategy          Strategy      `yaml:"intent_strategy"`
	DistanceThreshold float64       `yaml:"distance_threshold"`
	StoreThreshold    float64       `yaml:"store_threshold"`
	K                 int           `yaml:"k"`
	AutoStore         bool          `yaml:"auto_store"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout"`
}

// DefaultParams returns the default routing parameters
func DefaultParams() Params {
	return Params{
		AlphaEmotion:      0.7,
		AlphaIntent:       0.7,
		Strategy:          StrategyBlend,
		DistanceThreshold: 0.9,
		StoreThreshold:    0.8,
		K:                 5,
		AutoStore:         true,
		OracleTimeout:     30 * time.Second,
	}
}

// Validate checks the parameter ranges
func (p Params) Validate() error {
	if p.AlphaEmotion < 0 || p.AlphaEmotion > 1 {
		return goerr.Wrap(model.ErrInvalidConfig, "alpha_emotion must be in [0,1]", goerr.V("value", p.AlphaEmotion))
	}
	if p.AlphaIntent < 0 || p.AlphaIntent > 1 {
		return goerr.Wrap(model.ErrInvalidConfig, "alpha_intent must be in [0,1]", goerr.V("value", p.AlphaIntent))
	}
	switch p.Strategy {
	case StrategyBlend, StrategyGated:
	default:
		return goerr.Wrap(model.ErrInvalidConfig, "unknown intent strategy", goerr.V("value", p.Strategy))
	}
	if p.DistanceThreshold < 0 {
		return goerr.Wrap(model.ErrInvalidConfig, "distance_threshold must not be negative", goerr.V("value", p.DistanceThreshold))
	}
	if p.StoreThreshold < 0 {
		return goerr.Wrap(model.ErrInvalidConfig, "store_threshold must not be negative", goerr.V("value", p.StoreThreshold))
	}
	if p.K < 1 {
		return goerr.Wrap(model.ErrInvalidConfig, "k must be positive", goerr.V("value", p.K))
	}
	if p.OracleTimeout < 0 {
		return goerr.Wrap(model.ErrInvalidConfig, "oracle_timeout must not be negative", goerr.V("value", p.OracleTimeout))
	}
	return nil
}
