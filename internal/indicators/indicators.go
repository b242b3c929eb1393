package indicators

import "math"

// Series helpers mirror the hourly pipeline's rolling/ewm semantics: rolling
// windows emit partial-window values once minPeriods observations exist (NaN
// before), and EMAs seed from the first observation.

// SMA computes a rolling mean over window, emitting values once minPeriods
// observations are available.
func SMA(values []float64, window, minPeriods int) []float64 {
	if minPeriods < 1 {
		minPeriods = 1
	}
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < minPeriods {
			continue
		}
		sum := 0.0
		for j := lo; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// RollingStd computes the rolling population standard deviation (ddof=0).
func RollingStd(values []float64, window, minPeriods int) []float64 {
	if minPeriods < 1 {
		minPeriods = 1
	}
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := float64(i - lo + 1)
		if int(n) < minPeriods {
			continue
		}
		sum, sum2 := 0.0, 0.0
		for j := lo; j <= i; j++ {
			sum += values[j]
			sum2 += values[j] * values[j]
		}
		mean := sum / n
		v := sum2/n - mean*mean
		if v < 0 {
			v = 0
		}
		out[i] = math.Sqrt(v)
	}
	return out
}

// EMA computes a span-based exponential moving average, alpha = 2/(span+1),
// seeded from the first value.
func EMA(values []float64, span int) []float64 {
	return EMAAlpha(values, 2.0/(float64(span)+1.0))
}

// EMAAlpha computes an exponential moving average with an explicit alpha.
func EMAAlpha(values []float64, alpha float64) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}
	prev := values[0]
	out[0] = prev
	for i := 1; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI computes the EMA-smoothed relative strength index (alpha = 1/period).
// Periods where average loss is zero report 0, matching the source pipeline.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	alpha := 1.0 / float64(period)
	avgGain := EMAAlpha(gains, alpha)
	avgLoss := EMAAlpha(losses, alpha)
	for i := range closes {
		if avgLoss[i] == 0 {
			out[i] = 0
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the MACD line, its signal line, and the histogram.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = ef[i] - es[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Bollinger returns the middle band, upper/lower bands and rolling std.
func Bollinger(closes []float64, window int, numStd float64) (mid, upper, lower, std []float64) {
	mid = SMA(closes, window, 1)
	std = RollingStd(closes, window, 1)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = mid[i] + numStd*std[i]
		lower[i] = mid[i] - numStd*std[i]
	}
	return mid, upper, lower, std
}

// PercentB normalizes close within the band; NaN when the band has no width.
func PercentB(close, lower, upper float64) float64 {
	w := upper - lower
	if w == 0 || math.IsNaN(w) {
		return math.NaN()
	}
	return (close - lower) / w
}

// ATR computes average true range as a rolling mean of TR.
func ATR(highs, lows, closes []float64, period int) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		hl := math.Abs(highs[i] - lows[i])
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return SMA(tr, period, 1)
}

// OBV accumulates signed volume.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	acc := 0.0
	for i := range closes {
		if i > 0 {
			switch {
			case closes[i] > closes[i-1]:
				acc += volumes[i]
			case closes[i] < closes[i-1]:
				acc -= volumes[i]
			}
		}
		out[i] = acc
	}
	return out
}

// RollingVWAP computes a volume-weighted average price over a rolling
// window; NaN where the window volume is zero.
func RollingVWAP(closes, volumes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	for i := range closes {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		pv, v := 0.0, 0.0
		for j := lo; j <= i; j++ {
			pv += closes[j] * volumes[j]
			v += volumes[j]
		}
		if v == 0 {
			continue
		}
		out[i] = pv / v
	}
	return out
}

// ADX computes the Wilder average directional index series. Values before
// the 2*period warmup are NaN.
func ADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < 2*period+1 {
		return out
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	// Wilder smoothing: seed with the first `period` sums, then decay.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}
	dx := nanSlice(n)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		if smTR == 0 {
			continue
		}
		plusDI := 100 * smPlus / smTR
		minusDI := 100 * smMinus / smTR
		if plusDI+minusDI == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	// ADX = Wilder-smoothed DX.
	var adx float64
	cnt := 0
	for i := period + 1; i < n; i++ {
		if math.IsNaN(dx[i]) {
			continue
		}
		cnt++
		if cnt < period {
			adx += dx[i]
			continue
		}
		if cnt == period {
			adx = (adx + dx[i]) / float64(period)
		} else {
			adx = (adx*float64(period-1) + dx[i]) / float64(period)
		}
		out[i] = adx
	}
	return out
}

// PctChange computes the n-period fractional change; NaN where undefined.
func PctChange(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		if values[i-n] == 0 {
			continue
		}
		out[i] = values[i]/values[i-n] - 1
	}
	return out
}

// RollingZScore standardizes each value against its trailing window; NaN
// where the window std is zero.
func RollingZScore(values []float64, window int) []float64 {
	mean := SMA(values, window, 1)
	std := RollingStd(values, window, 1)
	out := nanSlice(len(values))
	for i := range values {
		if std[i] == 0 || math.IsNaN(std[i]) {
			continue
		}
		out[i] = (values[i] - mean[i]) / std[i]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
