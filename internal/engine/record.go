package engine

import (
	"math"
	"time"
)

// Record is the engine input: one indicator row per symbol per period.
// Optional or upstream-missing numeric fields carry NaN; the engine treats
// NaN as "condition not satisfied" and never fabricates a trigger from it.
type Record struct {
	Timestamp     time.Time
	Symbol        string
	Close         float64
	RawScore      float64 // composite signal score for the period
	TrendMA       float64 // long trend moving average (e.g. SMA 200)
	TrendStrength float64 // e.g. ADX 14
	RSI           float64
	BandLow       float64 // volatility band floor (e.g. lower Bollinger)
	BandHigh      float64 // volatility band ceiling
	FundingRate   float64 // NaN when the venue has no funding
}

// Direction tags an alert side. Using a closed two-variant type keeps the
// buy/sell mutual exclusion structural instead of asserted.
type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Buy {
		return "buy"
	}
	return "sell"
}

// BullRegime labels the period bullish when price sits above the long trend
// average or the trend strength clears the fixed ADX floor. NaN inputs
// conservatively count as not bullish.
func BullRegime(close, trendMA, trendStrength float64) bool {
	aboveTrend := !math.IsNaN(close) && !math.IsNaN(trendMA) && close > trendMA
	strongTrend := !math.IsNaN(trendStrength) && trendStrength >= adxTrendMin
	return aboveTrend || strongTrend
}

// BandPosition normalizes close within the volatility band. The result is
// undefined (ok=false) when the band has zero width or any input is NaN;
// callers must treat undefined as "condition not satisfied", never as a
// boundary value.
func BandPosition(close, bandLow, bandHigh float64) (float64, bool) {
	if math.IsNaN(close) || math.IsNaN(bandLow) || math.IsNaN(bandHigh) {
		return 0, false
	}
	width := bandHigh - bandLow
	if width == 0 {
		return 0, false
	}
	return (close - bandLow) / width, true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
