package models

import "time"

// Candle is one OHLCV bucket for a symbol.
type Candle struct {
	Bucket      time.Time
	Symbol      string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	TradesCount uint64
	VWAP        float64
}
