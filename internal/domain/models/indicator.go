package models

import "time"

// IndicatorRow is one fully enriched period for a symbol: the candle, the
// derived indicators, the per-period event flags and the composite signal
// score the alert engine consumes. Indicator fields that have not warmed up
// carry NaN.
type IndicatorRow struct {
	Bucket time.Time
	Symbol string

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	SMA10  float64
	SMA20  float64
	SMA50  float64
	SMA200 float64
	EMA12  float64
	EMA26  float64

	RSI14      float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64

	BBMid20    float64
	BBUp20     float64
	BBLow20    float64
	BBStd20    float64
	BBPercentB float64

	ATR14   float64
	ADX14   float64
	OBV     float64
	VWAP24h float64
	VWAP72h float64

	Ret1h     float64
	Ret24h    float64
	ZScore24h float64

	FundingRate float64 // NaN when the venue has no funding

	MACDBullCross  bool
	MACDBearCross  bool
	RSIOverbought  bool
	RSIOversold    bool
	BBBreakoutUp   bool
	BBBreakoutDown bool
	GoldenCross    bool
	DeathCross     bool
	TrendUp        bool
	TrendDown      bool
	AboveVWAP24h   bool
	BelowVWAP24h   bool
	ATRRising      bool

	SignalScore float64
}
