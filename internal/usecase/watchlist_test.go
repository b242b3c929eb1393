package usecase

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
)

type fakeIndicatorStore struct {
	rows map[string][]models.IndicatorRow
}

func (f *fakeIndicatorStore) StoreRows(ctx context.Context, rows []models.IndicatorRow) error {
	for _, r := range rows {
		if f.rows == nil {
			f.rows = make(map[string][]models.IndicatorRow)
		}
		f.rows[r.Symbol] = append(f.rows[r.Symbol], r)
	}
	return nil
}

func (f *fakeIndicatorStore) GetRows(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.IndicatorRow, error) {
	rows := f.rows[symbol]
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

func indicatorRow(sym string, score float64) models.IndicatorRow {
	return models.IndicatorRow{
		Bucket:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Symbol:      sym,
		Close:       100,
		Volume:      1000,
		SignalScore: score,
		RSI14:       50,
		BBPercentB:  0.5,
	}
}

func TestFilterScoreFloor(t *testing.T) {
	uc := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2})
	rows := []models.IndicatorRow{
		indicatorRow("A", 3),
		indicatorRow("B", 1),
		indicatorRow("C", -3),
	}
	got := uc.Filter(rows)
	if len(got) != 1 || got[0].Symbol != "A" {
		t.Fatalf("only the high-score row must pass without bear_ok, got %+v", got)
	}
	if !strings.Contains(got[0].Reasons, "score>=2.0") {
		t.Fatalf("score reason missing: %q", got[0].Reasons)
	}
}

func TestFilterBearSide(t *testing.T) {
	uc := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2, BearOK: true})
	got := uc.Filter([]models.IndicatorRow{indicatorRow("C", -3)})
	if len(got) != 1 {
		t.Fatalf("bear_ok must admit the deep negative score")
	}
	if !strings.Contains(got[0].Reasons, "score<=-2.0") {
		t.Fatalf("bear score reason missing: %q", got[0].Reasons)
	}
}

func TestFilterCrossEventsAdmitLowScores(t *testing.T) {
	uc := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2})
	r := indicatorRow("A", 0)
	r.MACDBullCross = true
	r.GoldenCross = true
	got := uc.Filter([]models.IndicatorRow{r})
	if len(got) != 1 {
		t.Fatalf("a cross event must admit the row regardless of score")
	}
	for _, want := range []string{"macd_bull_cross", "golden_cross"} {
		if !strings.Contains(got[0].Reasons, want) {
			t.Fatalf("missing %q in %q", want, got[0].Reasons)
		}
	}
}

func TestFilterOptionalReasons(t *testing.T) {
	r := indicatorRow("A", 0)
	r.RSIOversold = true
	r.TrendUp = true

	off := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 10})
	if got := off.Filter([]models.IndicatorRow{r}); len(got) != 0 {
		t.Fatalf("rsi/trend must not count unless enabled, got %+v", got)
	}

	on := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 10, IncludeRSI: true, IncludeTrend: true})
	got := on.Filter([]models.IndicatorRow{r})
	if len(got) != 1 {
		t.Fatalf("enabled rsi/trend reasons must admit the row")
	}
	for _, want := range []string{"rsi_oversold", "trend_up"} {
		if !strings.Contains(got[0].Reasons, want) {
			t.Fatalf("missing %q in %q", want, got[0].Reasons)
		}
	}
}

func TestFilterBearEventsNeedBearOK(t *testing.T) {
	down := indicatorRow("A", 0)
	down.BBBreakoutDown = true
	cross := indicatorRow("B", 0)
	cross.MACDBearCross = true

	off := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2})
	if got := off.Filter([]models.IndicatorRow{down, cross}); len(got) != 0 {
		t.Fatalf("bear events must not admit rows without bear_ok, got %+v", got)
	}

	on := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2, BearOK: true})
	got := on.Filter([]models.IndicatorRow{down, cross})
	if len(got) != 2 {
		t.Fatalf("bear_ok must admit both bear event rows, got %+v", got)
	}
	if !strings.Contains(got[0].Reasons, "bb_breakout_down") {
		t.Fatalf("missing bb_breakout_down in %q", got[0].Reasons)
	}
	if !strings.Contains(got[1].Reasons, "macd_bear_cross") {
		t.Fatalf("missing macd_bear_cross in %q", got[1].Reasons)
	}
}

func TestFilterTrendGateNarrows(t *testing.T) {
	flat := indicatorRow("A", 3)
	trending := indicatorRow("B", 3)
	trending.TrendUp = true
	falling := indicatorRow("C", 3)
	falling.TrendDown = true

	uc := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2, IncludeTrend: true})
	got := uc.Filter([]models.IndicatorRow{flat, trending, falling})
	if len(got) != 1 || got[0].Symbol != "B" {
		t.Fatalf("trend gate must keep only trending rows, got %+v", got)
	}

	// trend_down satisfies the gate only alongside bear_ok
	bear := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2, IncludeTrend: true, BearOK: true})
	got = bear.Filter([]models.IndicatorRow{falling})
	if len(got) != 1 || !strings.Contains(got[0].Reasons, "trend_down") {
		t.Fatalf("bear_ok + trend_down must pass the gate, got %+v", got)
	}
}

func TestFilterNaNScoreExcluded(t *testing.T) {
	uc := NewWatchlistUseCase(nil, WatchlistFilter{ScoreMin: 2, BearOK: true})
	r := indicatorRow("A", math.NaN())
	if got := uc.Filter([]models.IndicatorRow{r}); len(got) != 0 {
		t.Fatalf("NaN score must satisfy neither side, got %+v", got)
	}
}

func TestLatestSortsByScore(t *testing.T) {
	store := &fakeIndicatorStore{rows: map[string][]models.IndicatorRow{
		"A": {indicatorRow("A", 3)},
		"B": {indicatorRow("B", 5)},
		"C": {indicatorRow("C", 1)},
	}}
	uc := NewWatchlistUseCase(store, WatchlistFilter{ScoreMin: 2})
	got, err := uc.Latest(context.Background(), []string{"A", "B", "C"}, domrepo.TF1h)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "B" || got[1].Symbol != "A" {
		t.Fatalf("want [B A] got %+v", got)
	}
}

func TestGetWatchlistLimitKeepsNewest(t *testing.T) {
	store := &fakeIndicatorStore{rows: map[string][]models.IndicatorRow{}}
	for i := 0; i < 5; i++ {
		r := indicatorRow("A", 3)
		r.Bucket = r.Bucket.Add(time.Duration(i) * time.Hour)
		store.rows["A"] = append(store.rows["A"], r)
	}
	uc := NewWatchlistUseCase(store, WatchlistFilter{ScoreMin: 2})
	got, err := uc.GetWatchlist(context.Background(), GetWatchlistParams{Symbol: "A", Limit: 2})
	if err != nil {
		t.Fatalf("get watchlist: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 entries got %d", len(got))
	}
	if !got[1].Bucket.After(got[0].Bucket) {
		t.Fatalf("limit must keep the newest rows")
	}
}

func TestGetWatchlistRequiresSymbol(t *testing.T) {
	uc := NewWatchlistUseCase(&fakeIndicatorStore{}, WatchlistFilter{})
	if _, err := uc.GetWatchlist(context.Background(), GetWatchlistParams{}); err == nil {
		t.Fatalf("missing symbol must error")
	}
}
