package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/models"
	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	pkgkafka "github.com/lingxiaolyu191231/crypto-watcher/pkg/kafka"
)

// KafkaCandlesHandler consumes candle messages and writes them to storage.
type KafkaCandlesHandler struct {
	topic   string
	store   domrepo.CandleStore
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, store domrepo.CandleStore, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, o, h, l, c, v, n, vwap}
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
		N      uint64  `json:"n"`
		VWAP   float64 `json:"vwap"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from bucket open to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.store.Store(ctx, &models.Candle{
		Bucket:      time.Unix(m.T, 0).UTC(),
		Symbol:      m.Symbol,
		Open:        m.O,
		High:        m.H,
		Low:         m.L,
		Close:       m.C,
		Volume:      m.V,
		TradesCount: m.N,
		VWAP:        m.VWAP,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordCandle("clickhouse", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
