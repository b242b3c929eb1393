package indicators

import (
	"math"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
)

// Compute enriches a symbol's candles, ascending by bucket, into full
// indicator rows: moving averages, oscillators, bands, event flags and the
// composite signal score. Funding is left NaN; the caller overlays it when
// the venue provides one.
func Compute(candles []models.Candle) []models.IndicatorRow {
	n := len(candles)
	if n == 0 {
		return nil
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	sma10 := SMA(closes, 10, 1)
	sma20 := SMA(closes, 20, 1)
	sma50 := SMA(closes, 50, 1)
	sma200 := SMA(closes, 200, 5)
	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	rsi14 := RSI(closes, 14)
	macd, macdSig, macdHist := MACD(closes, 12, 26, 9)
	bbMid, bbUp, bbLow, bbStd := Bollinger(closes, 20, 2)
	atr14 := ATR(highs, lows, closes, 14)
	adx14 := ADX(highs, lows, closes, 14)
	obv := OBV(closes, volumes)
	vwap24 := RollingVWAP(closes, volumes, 24)
	vwap72 := RollingVWAP(closes, volumes, 72)
	ret1 := PctChange(closes, 1)
	ret24 := PctChange(closes, 24)
	zscore24 := RollingZScore(closes, 24)

	rows := make([]models.IndicatorRow, n)
	for i, c := range candles {
		r := models.IndicatorRow{
			Bucket: c.Bucket,
			Symbol: c.Symbol,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,

			SMA10:  sma10[i],
			SMA20:  sma20[i],
			SMA50:  sma50[i],
			SMA200: sma200[i],
			EMA12:  ema12[i],
			EMA26:  ema26[i],

			RSI14:      rsi14[i],
			MACD:       macd[i],
			MACDSignal: macdSig[i],
			MACDHist:   macdHist[i],

			BBMid20:    bbMid[i],
			BBUp20:     bbUp[i],
			BBLow20:    bbLow[i],
			BBStd20:    bbStd[i],
			BBPercentB: PercentB(c.Close, bbLow[i], bbUp[i]),

			ATR14:   atr14[i],
			ADX14:   adx14[i],
			OBV:     obv[i],
			VWAP24h: vwap24[i],
			VWAP72h: vwap72[i],

			Ret1h:     ret1[i],
			Ret24h:    ret24[i],
			ZScore24h: zscore24[i],

			FundingRate: math.NaN(),
		}

		r.MACDBullCross = crossAbove(macdHist, i)
		r.MACDBearCross = crossBelow(macdHist, i)
		r.RSIOverbought = geq(rsi14[i], 70)
		r.RSIOversold = leq(rsi14[i], 30)
		r.BBBreakoutUp = gt(c.Close, bbUp[i])
		r.BBBreakoutDown = lt(c.Close, bbLow[i])
		r.GoldenCross = crossPair(sma50, sma200, i, true)
		r.DeathCross = crossPair(sma50, sma200, i, false)
		r.TrendUp = gt(ema12[i], ema26[i])
		r.TrendDown = lt(ema12[i], ema26[i])
		r.AboveVWAP24h = gt(c.Close, vwap24[i])
		r.BelowVWAP24h = lt(c.Close, vwap24[i])
		r.ATRRising = i > 0 && gt(atr14[i], atr14[i-1])

		bull := count(r.MACDBullCross, r.BBBreakoutUp, r.GoldenCross, r.TrendUp, r.AboveVWAP24h,
			!math.IsNaN(rsi14[i]) && rsi14[i] > 30 && rsi14[i] < 70)
		bear := count(r.MACDBearCross, r.BBBreakoutDown, r.DeathCross, r.TrendDown, r.BelowVWAP24h,
			r.RSIOverbought)
		r.SignalScore = float64(bull - bear)

		rows[i] = r
	}
	return rows
}

// crossAbove reports a sign flip of the series to positive at i.
func crossAbove(s []float64, i int) bool {
	if i == 0 || math.IsNaN(s[i]) || math.IsNaN(s[i-1]) {
		return false
	}
	return s[i-1] <= 0 && s[i] > 0
}

func crossBelow(s []float64, i int) bool {
	if i == 0 || math.IsNaN(s[i]) || math.IsNaN(s[i-1]) {
		return false
	}
	return s[i-1] >= 0 && s[i] < 0
}

// crossPair reports fast crossing over (up=true) or under slow at i.
func crossPair(fast, slow []float64, i int, up bool) bool {
	if i == 0 {
		return false
	}
	if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) || math.IsNaN(fast[i-1]) || math.IsNaN(slow[i-1]) {
		return false
	}
	if up {
		return fast[i-1] <= slow[i-1] && fast[i] > slow[i]
	}
	return fast[i-1] >= slow[i-1] && fast[i] < slow[i]
}

// NaN-conservative comparisons: a NaN operand never satisfies a flag.
func gt(a, b float64) bool  { return !math.IsNaN(a) && !math.IsNaN(b) && a > b }
func lt(a, b float64) bool  { return !math.IsNaN(a) && !math.IsNaN(b) && a < b }
func geq(a, b float64) bool { return !math.IsNaN(a) && a >= b }
func leq(a, b float64) bool { return !math.IsNaN(a) && a <= b }

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
