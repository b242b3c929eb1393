package engine

import (
	"context"
	"time"
)

// SymbolState is the only state the engine carries across records of one
// symbol: the running smoothed score and the timestamps of the last allowed
// alert per direction. Zero times mean no alert has been allowed yet.
type SymbolState struct {
	SmoothedScore float64   `json:"smoothed_score"`
	HasScore      bool      `json:"has_score"`
	LastBuyAlert  time.Time `json:"last_buy_alert"`
	LastSellAlert time.Time `json:"last_sell_alert"`
}

// smooth folds the raw score into the causal EMA. The first observation
// seeds the average; only current and past records influence the result.
func (s *SymbolState) smooth(raw, alpha float64) float64 {
	if !s.HasScore {
		s.SmoothedScore = raw
		s.HasScore = true
		return raw
	}
	s.SmoothedScore = alpha*raw + (1-alpha)*s.SmoothedScore
	return s.SmoothedScore
}

func (s *SymbolState) lastAlert(dir Direction) time.Time {
	if dir == Buy {
		return s.LastBuyAlert
	}
	return s.LastSellAlert
}

// allow applies the cooldown window for one direction. The window is
// measured from the last allowed alert, not the last triggered condition:
// suppressed triggers leave the stored timestamp untouched.
func (s *SymbolState) allow(dir Direction, ts time.Time, triggered bool, window time.Duration) bool {
	if !triggered {
		return false
	}
	last := s.lastAlert(dir)
	if !last.IsZero() && ts.Sub(last) < window {
		return false
	}
	if dir == Buy {
		s.LastBuyAlert = ts
	} else {
		s.LastSellAlert = ts
	}
	return true
}

// StateStore persists per-symbol engine state between runs, for hosts that
// want incremental execution instead of recomputing from full history.
type StateStore interface {
	Load(ctx context.Context, symbol string) (SymbolState, bool, error)
	Save(ctx context.Context, symbol string, st SymbolState) error
}
