package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	pkgkafka "github.com/lingxiaolyu191231/crypto-watcher/pkg/kafka"
)

// ClickHouseCandleStore implements CandleStore for ClickHouse.
type ClickHouseCandleStore struct {
	db *sql.DB
}

// NewClickHouseCandleStore creates ClickHouse candle storage.
func NewClickHouseCandleStore(db *sql.DB) repository.CandleStore {
	return &ClickHouseCandleStore{db: db}
}

// Raw candles land in the 1h table; coarser timeframes roll up at read time.
const candleTable = "cryptowatcher.candles_1h"

func rollupHours(tf repository.Timeframe) int {
	switch tf {
	case repository.TF4h:
		return 4
	case repository.TF1d:
		return 24
	default:
		return 1
	}
}

// candleSelect builds the per-timeframe SELECT over the 1h table. The time
// column is aliased b so the rollup branch can group on it without shadowing
// the raw bucket column.
func candleSelect(tf repository.Timeframe) string {
	h := rollupHours(tf)
	if h == 1 {
		return fmt.Sprintf("SELECT bucket AS b, symbol, open, high, low, close, volume, trades_count, vwap FROM %s FINAL", candleTable)
	}
	return fmt.Sprintf(`SELECT
		toStartOfInterval(bucket, INTERVAL %d hour) AS b,
		symbol,
		argMin(open, bucket) AS open,
		max(high) AS high,
		min(low) AS low,
		argMax(close, bucket) AS close,
		sum(volume) AS volume,
		sum(trades_count) AS trades_count,
		sum(vwap * volume) / greatest(sum(volume), 1e-12) AS vwap
	FROM %s FINAL`, h, candleTable)
}

func (s *ClickHouseCandleStore) Store(ctx context.Context, c *models.Candle) error {
	q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, open, high, low, close, volume, trades_count, vwap) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", candleTable)
	_, err := s.db.ExecContext(ctx, q,
		c.Bucket, c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume, c.TradesCount, c.VWAP)
	return err
}

func (s *ClickHouseCandleStore) StoreBatch(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, c := range candles[start:end] {
			if c == nil || c.Symbol == "" || c.Bucket.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				c.Bucket, c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume, c.TradesCount, c.VWAP)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, open, high, low, close, volume, trades_count, vwap) VALUES %s",
			candleTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf repository.Timeframe) ([]models.Candle, error) {
	q := candleSelect(tf) + " WHERE symbol = ? AND bucket >= ? AND bucket <= ?" + groupClause(tf) + " ORDER BY b ASC"
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows)
}

func (s *ClickHouseCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf repository.Timeframe) ([]models.Candle, error) {
	// Newest N, then flipped to ascending for the indicator pass.
	inner := candleSelect(tf) + " WHERE symbol = ?" + groupClause(tf) + " ORDER BY b DESC LIMIT ?"
	q := fmt.Sprintf("SELECT * FROM (%s) ORDER BY b ASC", inner)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows)
}

func groupClause(tf repository.Timeframe) string {
	if rollupHours(tf) == 1 {
		return ""
	}
	return " GROUP BY b, symbol"
}

func (s *ClickHouseCandleStore) LatestBucket(ctx context.Context, symbol string, tf repository.Timeframe) (time.Time, bool, error) {
	q := fmt.Sprintf("SELECT max(bucket) FROM %s WHERE symbol = ?", candleTable)
	var ts time.Time
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	// max() over an empty set comes back as the epoch zero value.
	if ts.IsZero() || ts.Unix() <= 0 {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseCandleStore) Close() error {
	return nil // Managed by pkg
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TradesCount, &c.VWAP); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// KafkaCandlePublisher implements Publisher for Kafka.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaCandlePublisher creates a Kafka candle publisher.
func NewKafkaCandlePublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaCandlePublisher{producer: producer, topic: topic}
}

func (p *KafkaCandlePublisher) Publish(ctx context.Context, c *models.Candle) error {
	return p.producer.Publish(ctx, p.topic, []byte(c.Symbol), candlePayload(c))
}

func (p *KafkaCandlePublisher) PublishBatch(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(candles))
	for i, c := range candles {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(c.Symbol),
			Value: candlePayload(c),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaCandlePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func candlePayload(c *models.Candle) map[string]interface{} {
	return map[string]interface{}{
		"symbol": c.Symbol,
		"t":      c.Bucket.Unix(),
		"o":      c.Open,
		"h":      c.High,
		"l":      c.Low,
		"c":      c.Close,
		"v":      c.Volume,
		"n":      c.TradesCount,
		"vwap":   c.VWAP,
	}
}
