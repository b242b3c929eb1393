package usecase

import (
	"context"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	drepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	mid "github.com/lingxiaolyu191231/crypto-watcher/internal/middleware"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/util"
)

// CandleCollector backfills history, then collects live candles from the
// market stream and forwards them through the pipeline.
type CandleCollector struct {
	stream     drepo.MarketStream
	backfiller drepo.Backfiller
	proc       *CandleProcessor
	metrics    drepo.Metrics
	pipe       *mid.RealtimePipeline
	log        *logger.Logger

	symbols []string
	start   time.Time
}

// NewCandleCollector creates a new CandleCollector instance.
func NewCandleCollector(
	stream drepo.MarketStream,
	backfiller drepo.Backfiller,
	proc *CandleProcessor,
	metrics drepo.Metrics,
	pipe *mid.RealtimePipeline,
	log *logger.Logger,
	symbols []string,
	start time.Time,
) *CandleCollector {
	return &CandleCollector{
		stream:     stream,
		backfiller: backfiller,
		proc:       proc,
		metrics:    metrics,
		pipe:       pipe,
		log:        log,
		symbols:    symbols,
		start:      start,
	}
}

// IsConnected returns true if the market stream is connected.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Backfill loads missing history for every symbol, resuming from the last
// stored bucket when the store has one.
func (c *CandleCollector) Backfill(ctx context.Context, store drepo.CandleStore) error {
	if c.backfiller == nil {
		return nil
	}
	now := time.Now().UTC()
	for _, sym := range c.symbols {
		from := c.start
		if store != nil {
			last, ok, err := store.LatestBucket(ctx, sym, drepo.TF1h)
			if err != nil {
				c.metrics.RecordError("backfill_latest_bucket")
				c.log.Warn("backfill resume point", logger.String("symbol", sym), logger.Error(err))
			} else if ok && last.After(from) {
				from = last
			}
		}

		from, until := util.AlignFromTo(from, now, string(drepo.TF1h))
		candles, err := c.backfiller.Backfill(ctx, sym, from, until)
		if err != nil {
			c.metrics.RecordError("backfill")
			return err
		}
		if len(candles) == 0 {
			continue
		}
		batch := make([]*models.Candle, len(candles))
		for i := range candles {
			batch[i] = &candles[i]
		}
		if err := c.proc.ProcessBatch(ctx, batch); err != nil {
			return err
		}
		c.log.Info("backfilled",
			logger.String("symbol", sym),
			logger.Int("candles", len(candles)),
			logger.String("from", from.Format(time.RFC3339)))
	}
	return nil
}

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	cnCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, cnCh, errCh)
	return nil
}

func (c *CandleCollector) consume(ctx context.Context, cnCh <-chan *models.Candle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case cn := <-cnCh:
			if cn == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, cn)
			} else {
				_ = c.proc.Process(ctx, cn)
			}
			c.metrics.RecordLastClose(cn.Symbol, cn.Close)
		}
	}
}

func (c *CandleCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying CandleProcessor for lifecycle management.
func (c *CandleCollector) Processor() *CandleProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
