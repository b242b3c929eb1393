package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
)

type fakeAlertStore struct {
	mu     sync.Mutex
	stored []models.Alert
}

func (f *fakeAlertStore) StoreAlerts(ctx context.Context, alerts []models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, alerts...)
	return nil
}

func (f *fakeAlertStore) GetAlerts(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Alert(nil), f.stored...), nil
}

type mapStateStore struct {
	mu     sync.Mutex
	states map[string]engine.SymbolState
}

func (s *mapStateStore) Load(ctx context.Context, symbol string) (engine.SymbolState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	return st, ok, nil
}

func (s *mapStateStore) Save(ctx context.Context, symbol string, st engine.SymbolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[string]engine.SymbolState)
	}
	s.states[symbol] = st
	return nil
}

type countingMetrics struct {
	mu         sync.Mutex
	alerts     int
	suppressed int
	errors     int
}

func (m *countingMetrics) RecordCandle(backend, symbol string) {}
func (m *countingMetrics) RecordAlert(symbol, direction string) {
	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordSuppressed(symbol, direction string) {
	m.mu.Lock()
	m.suppressed++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordLastClose(symbol string, price float64) {}
func (m *countingMetrics) RecordLatency(op string, seconds float64)     {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// buyRow produces an indicator row that satisfies the buy trigger on first
// sight: deep raw score, bullish regime, oversold RSI.
func buyRow(sym string, n int) models.IndicatorRow {
	return models.IndicatorRow{
		Bucket:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour),
		Symbol:      sym,
		Close:       100,
		SignalScore: -3.0,
		SMA200:      90,
		ADX14:       25,
		RSI14:       30,
		BBLow20:     95,
		BBUp20:      110,
		FundingRate: math.NaN(),
	}
}

func newTestRunner(t *testing.T, rows domrepo.IndicatorStore, alerts domrepo.AlertStore, states engine.StateStore, metrics domrepo.Metrics, symbols []string) *AlertRunner {
	t.Helper()
	r, err := NewAlertRunner(rows, alerts, states, metrics, testLogger(t), engine.DefaultParams(), symbols, domrepo.TF1h, 0)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestAlertRunnerFiresAndPersists(t *testing.T) {
	rows := &fakeIndicatorStore{rows: map[string][]models.IndicatorRow{
		"HYPE": {buyRow("HYPE", 0)},
	}}
	alerts := &fakeAlertStore{}
	metrics := &countingMetrics{}
	r := newTestRunner(t, rows, alerts, &mapStateStore{}, metrics, []string{"HYPE"})

	fired, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fired) != 1 || !fired[0].BuyAlert {
		t.Fatalf("want one fired buy alert, got %+v", fired)
	}
	if len(alerts.stored) != 1 {
		t.Fatalf("every evaluated row must be persisted, got %d", len(alerts.stored))
	}
	if metrics.alerts != 1 {
		t.Fatalf("want 1 alert metric got %d", metrics.alerts)
	}
}

func TestAlertRunnerCooldownAcrossRuns(t *testing.T) {
	states := &mapStateStore{}
	alerts := &fakeAlertStore{}
	metrics := &countingMetrics{}

	first := &fakeIndicatorStore{rows: map[string][]models.IndicatorRow{
		"HYPE": {buyRow("HYPE", 0)},
	}}
	r1 := newTestRunner(t, first, alerts, states, metrics, []string{"HYPE"})
	if _, err := r1.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The next run sees only a newer row whose trigger holds. With the
	// persisted state the 12h window suppresses it.
	second := &fakeIndicatorStore{rows: map[string][]models.IndicatorRow{
		"HYPE": {buyRow("HYPE", 4)},
	}}
	r2 := newTestRunner(t, second, alerts, states, metrics, []string{"HYPE"})
	fired, err := r2.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("persisted cooldown must suppress the repeat buy, got %+v", fired)
	}
	if metrics.suppressed == 0 {
		t.Fatalf("suppression must be recorded")
	}
}

func TestAlertRunnerEmptySymbolIsQuiet(t *testing.T) {
	r := newTestRunner(t, &fakeIndicatorStore{}, &fakeAlertStore{}, nil, &countingMetrics{}, []string{"NOPE"})
	fired, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("no rows must mean no alerts, got %+v", fired)
	}
}

// The bull regime gates on the 200-period MA. A close above the much
// faster 50-period MA but below the 200-period one, with weak ADX, is
// not a bullish regime.
func TestRecordFromRowUsesLongTrendMA(t *testing.T) {
	row := models.IndicatorRow{
		Bucket: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Symbol: "HYPE",
		Close:  100,
		SMA50:  90,
		SMA200: 120,
		ADX14:  10,
	}
	rec := recordFromRow(&row)
	if rec.TrendMA != 120 {
		t.Fatalf("trend MA must be the 200-period value (120), got %v", rec.TrendMA)
	}
	if engine.BullRegime(rec.Close, rec.TrendMA, rec.TrendStrength) {
		t.Fatalf("close below the long MA with weak ADX must not read bullish")
	}
}

func TestAlertRunnerRejectsBadParams(t *testing.T) {
	p := engine.DefaultParams()
	p.BuyThreshold = p.SellThreshold
	if _, err := NewAlertRunner(nil, nil, nil, nil, nil, p, nil, domrepo.TF1h, 0); err == nil {
		t.Fatalf("invalid params must be rejected at construction")
	}
}
