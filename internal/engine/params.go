package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParams marks engine configuration errors. The engine refuses to
// run with invalid thresholds rather than produce undefined output.
var ErrInvalidParams = errors.New("invalid engine params")

// Fixed sub-condition thresholds, matching the alert rules the score was
// calibrated against. Only the score thresholds and smoothing are tunable.
const (
	adxTrendMin     = 20.0
	rsiOversoldMax  = 35.0
	rsiOverboughtMin = 70.0
	bandLowMax      = 0.10
	bandHighMin     = 0.90
)

// Confidence weights: proximity of the smoothed score to the buy extreme vs
// satisfied oversold sub-conditions. The sub-condition term divides by 3
// regardless of how many sub-conditions exist, so it tops out at 2/3.
const (
	proximityWeight = 0.6
	secondaryWeight = 0.4
	secondaryDiv    = 3.0
)

// Params holds the tunable alert engine configuration.
type Params struct {
	BuyThreshold  float64       // smoothed score at or below triggers buy side
	SellThreshold float64       // smoothed score at or above triggers sell side
	ScoreEMAAlpha float64       // EMA smoothing factor in (0,1]
	Cooldown      time.Duration // min gap between allowed alerts of one direction
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		BuyThreshold:  -2.75,
		SellThreshold: 0.75,
		ScoreEMAAlpha: 0.4,
		Cooldown:      12 * time.Hour,
	}
}

// Validate rejects configurations the engine cannot run with.
func (p Params) Validate() error {
	if p.BuyThreshold >= p.SellThreshold {
		return fmt.Errorf("%w: buy_thr %.4f must be below sell_thr %.4f",
			ErrInvalidParams, p.BuyThreshold, p.SellThreshold)
	}
	if p.ScoreEMAAlpha <= 0 || p.ScoreEMAAlpha > 1 {
		return fmt.Errorf("%w: score_ema_alpha %.4f must be in (0,1]", ErrInvalidParams, p.ScoreEMAAlpha)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown %s must be non-negative", ErrInvalidParams, p.Cooldown)
	}
	return nil
}
