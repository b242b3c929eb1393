package models

import "time"

// WatchlistEntry is an indicator row that passed the watchlist filter,
// annotated with the event reasons that qualified it.
type WatchlistEntry struct {
	Bucket      time.Time `json:"ts"`
	Symbol      string    `json:"symbol"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	SignalScore float64   `json:"signal_score"`
	RSI14       float64   `json:"rsi_14"`
	BBPercentB  float64   `json:"bb_pct_b"`
	Reasons     string    `json:"reasons"` // comma-joined event tags
}
