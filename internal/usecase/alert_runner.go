package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
)

// AlertRunner evaluates indicator rows through the alert engine and persists
// the result. Engine state survives across runs through the state store, so
// a scheduled run honors cooldowns from the previous one.
type AlertRunner struct {
	rows    domrepo.IndicatorStore
	alerts  domrepo.AlertStore
	states  engine.StateStore
	metrics domrepo.Metrics
	log     *logger.Logger

	params    engine.Params
	symbols   []string
	tf        domrepo.Timeframe
	lookbackN int
}

// NewAlertRunner creates a new AlertRunner.
func NewAlertRunner(
	rows domrepo.IndicatorStore,
	alerts domrepo.AlertStore,
	states engine.StateStore,
	metrics domrepo.Metrics,
	log *logger.Logger,
	params engine.Params,
	symbols []string,
	tf domrepo.Timeframe,
	lookbackN int,
) (*AlertRunner, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("alert runner: %w", err)
	}
	if lookbackN <= 0 {
		lookbackN = 500
	}
	return &AlertRunner{
		rows:      rows,
		alerts:    alerts,
		states:    states,
		metrics:   metrics,
		log:       log,
		params:    params,
		symbols:   symbols,
		tf:        tf,
		lookbackN: lookbackN,
	}, nil
}

// Run evaluates every symbol concurrently and persists the alerts. The
// returned slice holds only rows where an alert fired, for digest delivery.
func (r *AlertRunner) Run(ctx context.Context) ([]models.Alert, error) {
	start := time.Now()

	type result struct {
		symbol string
		fired  []models.Alert
		err    error
	}
	results := make(chan result, len(r.symbols))

	var wg sync.WaitGroup
	for _, sym := range r.symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			fired, err := r.runSymbol(ctx, sym)
			results <- result{symbol: sym, fired: fired, err: err}
		}(sym)
	}
	wg.Wait()
	close(results)

	var fired []models.Alert
	var firstErr error
	for res := range results {
		if res.err != nil {
			r.metrics.RecordError("alert_run")
			r.log.Error("alert run", logger.String("symbol", res.symbol), logger.Error(res.err))
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		fired = append(fired, res.fired...)
	}

	r.metrics.RecordLatency("alert_run", time.Since(start).Seconds())
	return fired, firstErr
}

func (r *AlertRunner) runSymbol(ctx context.Context, symbol string) ([]models.Alert, error) {
	rows, err := r.rows.GetRows(ctx, symbol, r.lookbackN, r.tf)
	if err != nil {
		return nil, fmt.Errorf("load rows %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	eng, err := engine.New(r.params)
	if err != nil {
		return nil, err
	}
	if r.states != nil {
		st, ok, err := r.states.Load(ctx, symbol)
		if err != nil {
			r.metrics.RecordError("state_load")
			r.log.Warn("engine state load", logger.String("symbol", symbol), logger.Error(err))
		} else if ok {
			eng.Restore(map[string]engine.SymbolState{symbol: st})
		}
	}

	records := make([]engine.Record, len(rows))
	for i := range rows {
		records[i] = recordFromRow(&rows[i])
	}
	if err := engine.CheckOrdered(records); err != nil {
		return nil, err
	}

	alerts := eng.Run(records)
	if err := r.alerts.StoreAlerts(ctx, alerts); err != nil {
		return nil, fmt.Errorf("store alerts %s: %w", symbol, err)
	}

	var fired []models.Alert
	for i := range alerts {
		a := &alerts[i]
		if a.BuyAlert {
			r.metrics.RecordAlert(a.Symbol, engine.Buy.String())
			fired = append(fired, *a)
		}
		if a.SellAlert {
			r.metrics.RecordAlert(a.Symbol, engine.Sell.String())
			fired = append(fired, *a)
		}
		if suppressed(a) {
			dir := engine.Buy
			if a.SmoothedScore >= r.params.SellThreshold {
				dir = engine.Sell
			}
			r.metrics.RecordSuppressed(a.Symbol, dir.String())
		}
	}

	if r.states != nil {
		if st, ok := eng.Snapshot()[symbol]; ok {
			if err := r.states.Save(ctx, symbol, st); err != nil {
				r.metrics.RecordError("state_save")
				r.log.Warn("engine state save", logger.String("symbol", symbol), logger.Error(err))
			}
		}
	}

	r.log.Info("alerts evaluated",
		logger.String("symbol", symbol),
		logger.Int("rows", len(rows)),
		logger.Int("fired", len(fired)))
	return fired, nil
}

func suppressed(a *models.Alert) bool {
	for _, reason := range a.Reasons {
		if reason == engine.ReasonCooldown {
			return true
		}
	}
	return false
}

// recordFromRow maps an enriched indicator row onto the engine's input.
func recordFromRow(r *models.IndicatorRow) engine.Record {
	return engine.Record{
		Timestamp:     r.Bucket,
		Symbol:        r.Symbol,
		Close:         r.Close,
		RawScore:      r.SignalScore,
		TrendMA:       r.SMA200,
		TrendStrength: r.ADX14,
		RSI:           r.RSI14,
		BandLow:       r.BBLow20,
		BandHigh:      r.BBUp20,
		FundingRate:   r.FundingRate,
	}
}
