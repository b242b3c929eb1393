package models

import "time"

// Alert is one evaluated period for one symbol. Exactly one row is produced
// per input row; the boolean flags are false for most rows. BuyAlert and
// SellAlert are never both true.
type Alert struct {
	Timestamp     time.Time `json:"ts"`
	Symbol        string    `json:"symbol"`
	Close         float64   `json:"close"`
	RawScore      float64   `json:"signal_score"`
	SmoothedScore float64   `json:"score_smooth"`
	RSI           float64   `json:"rsi_14"`
	BandPosition  *float64  `json:"bb_pct_b,omitempty"`
	FundingBps    *float64  `json:"funding_bps,omitempty"`
	BullRegime    bool      `json:"bull_regime"`
	BuyAlert      bool      `json:"buy_alert"`
	SellAlert     bool      `json:"sell_alert"`
	Confidence    float64   `json:"alert_confidence"`
	Reasons       []string  `json:"alert_reasons"`
}

// Triggered reports whether either direction fired after deduplication.
func (a *Alert) Triggered() bool { return a.BuyAlert || a.SellAlert }
