// internal/dispatch/ruleengine/weights.go
package ruleengine

import (
	"fmt"
	"math"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/models"
)

// FactorWeights are the weights applied to the five rule factors.
// They must sum to 1.0; invalid sets are rejected at configuration time,
// never renormalized.
type FactorWeights struct {
	Availability         float64
	Proximity            float64
	Certification        float64
	Capacity             float64
	HistoricalCompletion float64
}

// DefaultFactorWeights returns the standard factor weighting.
func DefaultFactorWeights() FactorWeights {
	return FactorWeights{
		Availability:         0.25,
		Proximity:            0.20,
		Certification:        0.20,
		Capacity:             0.15,
		HistoricalCompletion: 0.20,
	}
}

// FactorWeightsFromConfig lifts the configured factor override block, or
// returns the defaults when none is configured.
func FactorWeightsFromConfig(cfg *config.FactorWeightsConfig) FactorWeights {
	if cfg == nil {
		return DefaultFactorWeights()
	}
	return FactorWeights{
		Availability:         cfg.Availability,
		Proximity:            cfg.Proximity,
		Certification:        cfg.Certification,
		Capacity:             cfg.Capacity,
		HistoricalCompletion: cfg.HistoricalCompletion,
	}
}

// Sum returns the total of all factor weights.
func (w FactorWeights) Sum() float64 {
	return w.Availability + w.Proximity + w.Certification + w.Capacity + w.HistoricalCompletion
}

// Validate checks the sum-to-1.0 invariant.
func (w FactorWeights) Validate() error {
	for name, v := range map[string]float64{
		"availability":          w.Availability,
		"proximity":             w.Proximity,
		"certification":         w.Certification,
		"capacity":              w.Capacity,
		"historical_completion": w.HistoricalCompletion,
	} {
		if v < 0 {
			return fmt.Errorf("factor weight %s must be non-negative, got %.3f", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > models.FloatTolerance {
		return fmt.Errorf("factor weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}
