package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/engine"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/handler/api"
	mid "github.com/lingxiaolyu191231/crypto-watcher/internal/middleware"
	internalrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/repository"
	icache "github.com/lingxiaolyu191231/crypto-watcher/internal/service/cache"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/service/hyperliquid"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/service/mailer"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/usecase"
	pkgch "github.com/lingxiaolyu191231/crypto-watcher/pkg/clickhouse"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/config"
	pkgkafka "github.com/lingxiaolyu191231/crypto-watcher/pkg/kafka"
	applogger "github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/metrics"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/server"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/util"
)

// schemaDDL creates the database and one candle, indicator and alert table
// per timeframe. Idempotent.
func schemaDDL() []string {
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS cryptowatcher",
		`CREATE TABLE IF NOT EXISTS cryptowatcher.candles_1h (
			bucket DateTime,
			symbol LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64,
			volume Float64, trades_count UInt64, vwap Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, bucket)`,
	}
	for _, tf := range []string{"1h", "4h", "1d"} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cryptowatcher.indicators_%s (
			bucket DateTime,
			symbol LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64, volume Float64,
			sma_10 Nullable(Float64), sma_20 Nullable(Float64), sma_50 Nullable(Float64), sma_200 Nullable(Float64),
			ema_12 Nullable(Float64), ema_26 Nullable(Float64),
			rsi_14 Nullable(Float64), macd Nullable(Float64), macd_signal Nullable(Float64), macd_hist Nullable(Float64),
			bb_mid_20 Nullable(Float64), bb_up_20 Nullable(Float64), bb_low_20 Nullable(Float64), bb_std_20 Nullable(Float64), bb_pct_b Nullable(Float64),
			atr_14 Nullable(Float64), adx_14 Nullable(Float64), obv Nullable(Float64),
			vwap_24h Nullable(Float64), vwap_72h Nullable(Float64),
			ret_1h Nullable(Float64), ret_24h Nullable(Float64), zscore_24h Nullable(Float64),
			funding_rate Nullable(Float64),
			macd_bull_cross Bool, macd_bear_cross Bool, rsi_overbought Bool, rsi_oversold Bool,
			bb_breakout_up Bool, bb_breakout_down Bool, golden_cross Bool, death_cross Bool,
			trend_up Bool, trend_down Bool, above_vwap_24h Bool, below_vwap_24h Bool, atr_rising Bool,
			signal_score Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, bucket)`, tf))
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cryptowatcher.alerts_%s (
			ts DateTime,
			symbol LowCardinality(String),
			close Float64,
			signal_score Nullable(Float64), score_smooth Nullable(Float64), rsi_14 Nullable(Float64),
			bb_pct_b Nullable(Float64), funding_bps Nullable(Float64),
			bull_regime Bool, buy_alert Bool, sell_alert Bool,
			alert_confidence Float64,
			alert_reasons String
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`, tf))
	}
	return stmts
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, schemaDDL()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCandleStore creates ClickHouse candle storage.
func ProvideCandleStore(chClient *pkgch.Client) repository.CandleStore {
	return internalrepo.NewClickHouseCandleStore(chClient.DB())
}

// ProvideCandlePublisher creates the Kafka candle publisher.
func ProvideCandlePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaCandlePublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML. Only
// the kafka backend runs one.
func ProvideKafkaConsumer(cfg *config.Config, metrics repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok {
				metrics.RecordLatency("kafka_handle", time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			metrics.RecordError("kafka_handle")
		},
	})
	return consumer, nil
}

// ProvideKafkaCandlesHandler registers the handler for the candles topic.
func ProvideKafkaCandlesHandler(store repository.CandleStore, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideHyperliquidStream creates the Hyperliquid WebSocket stream.
func ProvideHyperliquidStream(cfg *config.Config) repository.MarketStream {
	return hyperliquid.New(
		cfg.Hyperliquid.WebSocketURL,
		cfg.Hyperliquid.Coins,
		string(repository.TF1h),
		cfg.Hyperliquid.ReconnectDelay,
		cfg.Hyperliquid.PingInterval,
	)
}

// ProvideHyperliquidBackfill creates the REST backfiller.
func ProvideHyperliquidBackfill(cfg *config.Config) repository.Backfiller {
	return hyperliquid.NewBackfill(cfg.Hyperliquid.InfoURL, string(repository.TF1h), nil)
}

// ProvideCandleProcessor creates the candle processor use case.
func ProvideCandleProcessor(
	pub repository.Publisher,
	store repository.CandleStore,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.CandleProcessor {
	return usecase.NewCandleProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideCandleCollector creates the candle collector use case.
func ProvideCandleCollector(
	stream repository.MarketStream,
	backfiller repository.Backfiller,
	processor *usecase.CandleProcessor,
	metrics repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.CandleCollector {
	// Build middleware pipeline between WebSocket and the backend
	pipe := mid.NewRealtimePipeline(processor, metrics,
		mid.WithMaxRPS(5),
		mid.WithBufferSize(2000),
	)
	start := util.ParseTimeDefault(cfg.Hyperliquid.StartISO, time.Now().UTC().Add(-30*24*time.Hour))
	return usecase.NewCandleCollector(stream, backfiller, processor, metrics, pipe, log, cfg.Hyperliquid.Coins, start)
}

// ProvideStateStore picks the engine state backend from config.
func ProvideStateStore(cfg *config.Config) engine.StateStore {
	if cfg.Engine.StateStore == "redis" && cfg.Cache.Redis.Enabled {
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return internalrepo.NewRedisStateStore(cli, "")
	}
	return internalrepo.NewMemoryStateStore()
}

// ProvideEngineParams builds and validates the engine parameters. A bad set
// fails app construction before anything starts.
func ProvideEngineParams(cfg *config.Config) (engine.Params, error) {
	p := engine.Params{
		BuyThreshold:  cfg.Engine.BuyThreshold,
		SellThreshold: cfg.Engine.SellThreshold,
		ScoreEMAAlpha: cfg.Engine.ScoreEMAAlpha,
		Cooldown:      cfg.Cooldown(),
	}
	if err := p.Validate(); err != nil {
		return engine.Params{}, err
	}
	return p, nil
}

// ProvideIndicatorBuilders creates one indicator build use case per
// timeframe. The 4h/1d builders read rolled-up candles and write their own
// tables.
func ProvideIndicatorBuilders(
	candles repository.CandleStore,
	chClient *pkgch.Client,
	metrics repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) []*usecase.IndicatorBuilder {
	tfs := []repository.Timeframe{repository.TF1h, repository.TF4h, repository.TF1d}
	builders := make([]*usecase.IndicatorBuilder, 0, len(tfs))
	for _, tf := range tfs {
		rows := internalrepo.NewClickHouseIndicatorStore(chClient.DB(), tf)
		builders = append(builders, usecase.NewIndicatorBuilder(candles, rows, metrics, log, cfg.Hyperliquid.Coins, tf, 0))
	}
	return builders
}

// ProvideAlertRunner creates the alert evaluation use case.
func ProvideAlertRunner(
	chClient *pkgch.Client,
	states engine.StateStore,
	metrics repository.Metrics,
	log *applogger.Logger,
	params engine.Params,
	cfg *config.Config,
) (*usecase.AlertRunner, error) {
	rows := internalrepo.NewClickHouseIndicatorStore(chClient.DB(), repository.TF1h)
	alerts := internalrepo.NewClickHouseAlertStore(chClient.DB(), repository.TF1h)
	return usecase.NewAlertRunner(rows, alerts, states, metrics, log, params, cfg.Hyperliquid.Coins, repository.TF1h, 0)
}

// ProvideWatchlist creates the watchlist use case.
func ProvideWatchlist(chClient *pkgch.Client, cfg *config.Config) *usecase.WatchlistUseCase {
	rows := internalrepo.NewClickHouseIndicatorStore(chClient.DB(), repository.TF1h)
	return usecase.NewWatchlistUseCase(rows, usecase.WatchlistFilter{
		ScoreMin:     cfg.Watchlist.ScoreMin,
		BearOK:       cfg.Watchlist.BearOK,
		IncludeRSI:   cfg.Watchlist.IncludeRSI,
		IncludeTrend: cfg.Watchlist.IncludeTrend,
	})
}

// ProvideMailer creates the SMTP digest mailer, nil when disabled.
func ProvideMailer(cfg *config.Config, log *applogger.Logger) *mailer.Mailer {
	if !cfg.Mailer.Enabled {
		return nil
	}
	return mailer.New(mailer.Config{
		Host:          cfg.Mailer.SMTPHost,
		Port:          cfg.Mailer.SMTPPort,
		User:          cfg.Mailer.SMTPUser,
		Pass:          cfg.Mailer.SMTPPass,
		From:          cfg.Mailer.From,
		To:            cfg.Mailer.To,
		SubjectPrefix: cfg.Mailer.SubjectPrefix,
		StateFile:     cfg.Mailer.StateFile,
	}, log)
}

// ProvideHTTPHandler creates the Echo API handler with response caching.
func ProvideHTTPHandler(
	log *applogger.Logger,
	chClient *pkgch.Client,
	candles repository.CandleStore,
	watchlist *usecase.WatchlistUseCase,
	cfg *config.Config,
) *api.MarketEchoHandler {
	alertStore := internalrepo.NewClickHouseAlertStore(chClient.DB(), repository.TF1h)
	h := api.NewMarketEchoHandler(
		log,
		usecase.NewAlertsUseCase(alertStore),
		watchlist,
		usecase.NewCandlesUseCase(candles),
	)

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if cfg.Cache.Redis.Enabled {
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		h.SetCache(icache.NewRedisCache(cli), ttl)
	} else {
		h.SetCache(icache.NewTTLCache(), ttl)
	}
	return h
}

// errorLogPublisher adapts the Kafka producer to the logger's Publisher
// so deduplicated error batches land on the bus.
type errorLogPublisher struct {
	p *pkgkafka.Producer
}

func (e errorLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return e.p.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	chClient *pkgch.Client,
	candles repository.CandleStore,
	builders []*usecase.IndicatorBuilder,
	runner *usecase.AlertRunner,
	watchlist *usecase.WatchlistUseCase,
	digest *mailer.Mailer,
	httpHandler *api.MarketEchoHandler,
) *server.App {
	if producer != nil && cfg.Kafka.ErrorTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   time.Minute,
			CountThreshold: 100,
			Topic:          cfg.Kafka.ErrorTopic,
			Publisher:      errorLogPublisher{p: producer},
		})
	}
	app := server.New(cfg, log, collector, consumer, kh, chClient)
	app.SetEvaluation(candles, builders, runner, watchlist, digest)
	app.SetHTTPHandler(httpHandler)
	if collector != nil {
		app.CandleProc = collector.Processor()
	}
	return app
}
