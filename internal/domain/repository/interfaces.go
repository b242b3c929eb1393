package repository

import (
	"context"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
)

// MarketStream delivers live candles from a venue.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Backfiller loads historical candles from a venue's REST surface.
type Backfiller interface {
	Backfill(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// Publisher forwards candles to a message bus.
type Publisher interface {
	Publish(ctx context.Context, c *models.Candle) error
	PublishBatch(ctx context.Context, candles []*models.Candle) error
	Close() error
}

// CandleStore persists and queries raw candles.
type CandleStore interface {
	Store(ctx context.Context, c *models.Candle) error
	StoreBatch(ctx context.Context, candles []*models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	LatestBucket(ctx context.Context, symbol string, tf Timeframe) (time.Time, bool, error)
	Health(ctx context.Context) error
	Close() error
}

// IndicatorStore persists and queries enriched indicator rows. Rows come
// back in ascending bucket order per symbol; timestamp uniqueness is the
// writer's responsibility.
type IndicatorStore interface {
	StoreRows(ctx context.Context, rows []models.IndicatorRow) error
	GetRows(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.IndicatorRow, error)
}

// AlertStore persists evaluated alert rows and serves them back newest-last.
type AlertStore interface {
	StoreAlerts(ctx context.Context, alerts []models.Alert) error
	GetAlerts(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Alert, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCandle(backend, symbol string)
	RecordAlert(symbol, direction string)
	RecordSuppressed(symbol, direction string)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
