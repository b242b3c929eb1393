package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/indicators"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
)

// IndicatorBuilder recomputes indicator rows from stored candles and writes
// them to the indicator store. One run covers every configured symbol.
type IndicatorBuilder struct {
	candles   domrepo.CandleStore
	rows      domrepo.IndicatorStore
	metrics   domrepo.Metrics
	log       *logger.Logger
	symbols   []string
	tf        domrepo.Timeframe
	lookbackN int
}

// NewIndicatorBuilder creates a new IndicatorBuilder.
func NewIndicatorBuilder(
	candles domrepo.CandleStore,
	rows domrepo.IndicatorStore,
	metrics domrepo.Metrics,
	log *logger.Logger,
	symbols []string,
	tf domrepo.Timeframe,
	lookbackN int,
) *IndicatorBuilder {
	if lookbackN <= 0 {
		// SMA200 plus slack so the newest rows are fully warmed up
		lookbackN = 500
	}
	return &IndicatorBuilder{
		candles:   candles,
		rows:      rows,
		metrics:   metrics,
		log:       log,
		symbols:   symbols,
		tf:        tf,
		lookbackN: lookbackN,
	}
}

// Run recomputes and stores indicator rows for every symbol. It keeps going
// past per-symbol failures and reports the first error at the end.
func (b *IndicatorBuilder) Run(ctx context.Context) error {
	start := time.Now()
	var firstErr error
	for _, sym := range b.symbols {
		if err := b.runSymbol(ctx, sym); err != nil {
			b.metrics.RecordError("indicator_build")
			b.log.Error("indicator build", logger.String("symbol", sym), logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.metrics.RecordLatency("indicator_build", time.Since(start).Seconds())
	return firstErr
}

func (b *IndicatorBuilder) runSymbol(ctx context.Context, symbol string) error {
	candles, err := b.candles.GetLatestNCandles(ctx, symbol, b.lookbackN, b.tf)
	if err != nil {
		return fmt.Errorf("load candles %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		b.log.Warn("no candles for symbol", logger.String("symbol", symbol))
		return nil
	}

	rows := indicators.Compute(candles)
	if err := b.rows.StoreRows(ctx, rows); err != nil {
		return fmt.Errorf("store rows %s: %w", symbol, err)
	}
	b.log.Info("indicators built",
		logger.String("symbol", symbol),
		logger.Int("rows", len(rows)))
	return nil
}
