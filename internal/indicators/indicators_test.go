package indicators

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMAPartialWindows(t *testing.T) {
	got := SMA([]float64{2, 4, 6, 8}, 3, 1)
	want := []float64{2, 3, 4, 6}
	for i := range want {
		if !almost(got[i], want[i]) {
			t.Fatalf("sma[%d]: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestSMAMinPeriods(t *testing.T) {
	got := SMA([]float64{2, 4, 6}, 3, 2)
	if !math.IsNaN(got[0]) {
		t.Fatalf("first value must be NaN before minPeriods, got %v", got[0])
	}
	if !almost(got[1], 3) {
		t.Fatalf("want 3 got %v", got[1])
	}
}

func TestEMASeedsFromFirst(t *testing.T) {
	got := EMAAlpha([]float64{10, 20}, 0.5)
	if got[0] != 10 {
		t.Fatalf("ema must seed from first value, got %v", got[0])
	}
	if !almost(got[1], 15) {
		t.Fatalf("want 15 got %v", got[1])
	}
}

func TestRSIBounds(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)*2
	}
	for i, v := range RSI(closes, 14) {
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestRSIZeroLossReportsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	// An all-gain series has zero average loss, which reports 0 rather than
	// 100. Pinned so the edge case does not drift.
	out := RSI(closes, 14)
	if out[len(out)-1] != 0 {
		t.Fatalf("zero average loss must report 0, got %v", out[len(out)-1])
	}
}

func TestBollingerBandsBracketMid(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12, 14, 13, 15}
	mid, upper, lower, std := Bollinger(closes, 5, 2)
	for i := range closes {
		if std[i] < 0 {
			t.Fatalf("std[%d] negative", i)
		}
		if upper[i] < mid[i] || lower[i] > mid[i] {
			t.Fatalf("bands must bracket mid at %d: %v %v %v", i, lower[i], mid[i], upper[i])
		}
	}
}

func TestPercentB(t *testing.T) {
	if v := PercentB(10, 8, 12); !almost(v, 0.5) {
		t.Fatalf("want 0.5 got %v", v)
	}
	if v := PercentB(10, 10, 10); !math.IsNaN(v) {
		t.Fatalf("zero-width band must be NaN, got %v", v)
	}
	if v := PercentB(10, math.NaN(), 12); !math.IsNaN(v) {
		t.Fatalf("NaN band must be NaN, got %v", v)
	}
}

func TestOBVAccumulatesSignedVolume(t *testing.T) {
	closes := []float64{10, 11, 10, 10, 12}
	vols := []float64{100, 200, 300, 400, 500}
	got := OBV(closes, vols)
	want := []float64{0, 200, -100, -100, 400}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("obv[%d]: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestRollingVWAPZeroVolume(t *testing.T) {
	got := RollingVWAP([]float64{10, 20}, []float64{0, 0}, 24)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("zero-volume window must be NaN, got %v", got)
	}
	got = RollingVWAP([]float64{10, 20}, []float64{1, 3}, 24)
	if !almost(got[1], 17.5) {
		t.Fatalf("want 17.5 got %v", got[1])
	}
}

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110, 99}, 1)
	if !math.IsNaN(got[0]) {
		t.Fatalf("first value must be NaN")
	}
	if !almost(got[1], 0.1) || !almost(got[2], -0.1) {
		t.Fatalf("want [NaN 0.1 -0.1] got %v", got)
	}
}

func TestADXWarmup(t *testing.T) {
	n := 80
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.5
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}
	out := ADX(highs, lows, closes, 14)
	if !math.IsNaN(out[10]) {
		t.Fatalf("values before warmup must be NaN")
	}
	last := out[n-1]
	if math.IsNaN(last) || last < 0 || last > 100 {
		t.Fatalf("trending series must yield a defined ADX in [0,100], got %v", last)
	}
	if last < 20 {
		t.Fatalf("steady uptrend should read as a strong trend, got %v", last)
	}
}

func TestRollingZScoreFlatSeries(t *testing.T) {
	got := RollingZScore([]float64{5, 5, 5, 5}, 3)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("flat series has zero std, z[%d] must be NaN, got %v", i, v)
		}
	}
}
