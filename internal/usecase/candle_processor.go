package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	drepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
)

// CandleProcessor routes candle data to the configured backend.
type CandleProcessor struct {
	pub     drepo.Publisher
	store   drepo.CandleStore
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewCandleProcessor creates a new CandleProcessor instance.
func NewCandleProcessor(
	pub drepo.Publisher,
	store drepo.CandleStore,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *CandleProcessor {
	return &CandleProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single candle to the configured backend.
func (p *CandleProcessor) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, c)
	case "clickhouse":
		err = p.store.Store(ctx, c)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process candle: %w", err)
	}

	p.metrics.RecordCandle(p.backend, c.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple candles in a batch.
func (p *CandleProcessor) ProcessBatch(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, candles)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, candles)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, c := range candles {
		p.metrics.RecordCandle(p.backend, c.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *CandleProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
