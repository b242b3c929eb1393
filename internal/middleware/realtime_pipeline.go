package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

// RealtimePipeline sits between the WebSocket stream and the backend.
// It validates incoming candles, throttles repeated updates of the open
// bucket per symbol, optionally transforms, and buffers when downstream
// is unavailable.
type RealtimePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	minGap    time.Duration // min interval between accepted updates per symbol
	transform func(*models.Candle) *models.Candle

	bufCh  chan *models.Candle
	stopCh chan struct{}

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time
}

type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	maxRPS    int
	bufSize   int
	transform func(*models.Candle) *models.Candle
}

// WithMaxRPS sets the max candle updates per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// WithTransform sets a hook to rewrite candles before forwarding.
func WithTransform(fn func(*models.Candle) *models.Candle) PipelineOption {
	return func(c *pipelineConfig) { c.transform = fn }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	cfg := &pipelineConfig{maxRPS: 5, bufSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RealtimePipeline{
		proc:      proc,
		metrics:   metrics,
		minGap:    time.Second / time.Duration(cfg.maxRPS),
		transform: cfg.transform,
		bufCh:     make(chan *models.Candle, cfg.bufSize),
		stopCh:    make(chan struct{}),
		lastSeen:  make(map[string]time.Time),
	}
}

// Start launches background flushing of buffered candles.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.flushLoop(ctx)
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// flushLoop retries buffered candles with capped exponential backoff.
// Candles that fail again are requeued while the buffer has room.
func (p *RealtimePipeline) flushLoop(ctx context.Context) {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case c := <-p.bufCh:
			if c == nil {
				continue
			}
			if err := p.proc.Process(ctx, c); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				time.Sleep(backoff)
				select {
				case p.bufCh <- c:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}
}

// Process validates, throttles, and forwards the candle downstream,
// buffering on errors.
func (p *RealtimePipeline) Process(ctx context.Context, c *models.Candle) error {
	start := time.Now()
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		c = p.transform(c)
		if err := validateCandle(c); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(c.Symbol, start) {
		// throttled updates of the open bucket are dropped, not errors
		p.metrics.RecordError("pipeline_throttle")
		p.metrics.RecordError("pipeline_throttle_" + c.Symbol)
		return nil
	}

	err := p.proc.Process(ctx, c)
	if err == nil {
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
		return nil
	}

	p.metrics.RecordError("pipeline_process")
	select {
	case p.bufCh <- c:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
	return fmt.Errorf("pipeline downstream: %w", err)
}

func (p *RealtimePipeline) allow(symbol string, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}

func validateCandle(c *models.Candle) error {
	switch {
	case c == nil:
		return fmt.Errorf("candle nil")
	case c.Symbol == "":
		return fmt.Errorf("symbol empty")
	case c.Bucket.IsZero():
		return fmt.Errorf("bucket invalid")
	case c.High < c.Low:
		return fmt.Errorf("high below low")
	case c.Close < 0 || c.Volume < 0:
		return fmt.Errorf("negative close/volume")
	}
	return nil
}
