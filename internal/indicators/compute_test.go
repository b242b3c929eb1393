package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
)

func makeCandles(closes []float64) []models.Candle {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Bucket: t0.Add(time.Duration(i) * time.Hour),
			Symbol: "HYPE",
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func TestComputeEmpty(t *testing.T) {
	if rows := Compute(nil); rows != nil {
		t.Fatalf("empty input must yield nil, got %d rows", len(rows))
	}
}

func TestComputeCarriesCandleFields(t *testing.T) {
	candles := makeCandles([]float64{100, 101, 102})
	rows := Compute(candles)
	if len(rows) != len(candles) {
		t.Fatalf("want %d rows got %d", len(candles), len(rows))
	}
	for i := range rows {
		if rows[i].Symbol != "HYPE" || rows[i].Close != candles[i].Close || !rows[i].Bucket.Equal(candles[i].Bucket) {
			t.Fatalf("row %d does not carry its candle: %+v", i, rows[i])
		}
	}
}

func TestComputeFundingLeftNaN(t *testing.T) {
	rows := Compute(makeCandles([]float64{100, 101}))
	for i := range rows {
		if !math.IsNaN(rows[i].FundingRate) {
			t.Fatalf("funding must stay NaN until overlaid, got %v", rows[i].FundingRate)
		}
	}
}

func TestComputeFlagsAreExclusive(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/9) + float64(i)*0.05
	}
	for _, r := range Compute(makeCandles(closes)) {
		if r.MACDBullCross && r.MACDBearCross {
			t.Fatalf("macd crosses both ways at %s", r.Bucket)
		}
		if r.GoldenCross && r.DeathCross {
			t.Fatalf("sma crosses both ways at %s", r.Bucket)
		}
		if r.TrendUp && r.TrendDown {
			t.Fatalf("trend both ways at %s", r.Bucket)
		}
		if r.BBBreakoutUp && r.BBBreakoutDown {
			t.Fatalf("band breakout both ways at %s", r.Bucket)
		}
	}
}

func TestComputeSignalScoreCountsFlags(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/9)
	}
	for _, r := range Compute(makeCandles(closes)) {
		bull := 0
		if r.MACDBullCross {
			bull++
		}
		if r.BBBreakoutUp {
			bull++
		}
		if r.GoldenCross {
			bull++
		}
		if r.TrendUp {
			bull++
		}
		if r.AboveVWAP24h {
			bull++
		}
		if !math.IsNaN(r.RSI14) && r.RSI14 > 30 && r.RSI14 < 70 {
			bull++
		}
		bear := 0
		if r.MACDBearCross {
			bear++
		}
		if r.BBBreakoutDown {
			bear++
		}
		if r.DeathCross {
			bear++
		}
		if r.TrendDown {
			bear++
		}
		if r.BelowVWAP24h {
			bear++
		}
		if r.RSIOverbought {
			bear++
		}
		if want := float64(bull - bear); r.SignalScore != want {
			t.Fatalf("score at %s: want %v got %v", r.Bucket, want, r.SignalScore)
		}
	}
}

func TestComputeTrendFollowsEMAPair(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	rows := Compute(makeCandles(closes))

	// The fast EMA reacts before other indicators warm up, so a steady
	// rise flags trend_up from the second row on.
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if r.EMA12 > r.EMA26 && !r.TrendUp {
			t.Fatalf("row %d: ema12=%v > ema26=%v but trend_up=false", i, r.EMA12, r.EMA26)
		}
		if r.TrendDown {
			t.Fatalf("row %d: uptrend must not flag trend_down", i)
		}
	}
	if last := rows[len(rows)-1]; !last.TrendUp {
		t.Fatalf("steady uptrend must flag trend_up, ema12=%v ema26=%v", last.EMA12, last.EMA26)
	}
}

func TestComputeSMA200Warmup(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rows := Compute(makeCandles(closes))
	for i := 0; i < 4; i++ {
		if !math.IsNaN(rows[i].SMA200) {
			t.Fatalf("row %d: sma200 must stay NaN before 5 samples, got %v", i, rows[i].SMA200)
		}
	}
	if math.IsNaN(rows[4].SMA200) {
		t.Fatalf("row 4: sma200 must be set once 5 samples accumulated")
	}
}
