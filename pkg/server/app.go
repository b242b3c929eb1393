package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "github.com/lingxiaolyu191231/crypto-watcher/internal/domain/repository"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/service/mailer"
	"github.com/lingxiaolyu191231/crypto-watcher/internal/usecase"
	pkgch "github.com/lingxiaolyu191231/crypto-watcher/pkg/clickhouse"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/config"
	xhttp "github.com/lingxiaolyu191231/crypto-watcher/pkg/http"
	pkgkafka "github.com/lingxiaolyu191231/crypto-watcher/pkg/kafka"
	applogger "github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"
)

// App encapsulates the entire application lifecycle: ingestion, the
// scheduled indicator/alert runs, digest delivery and the HTTP API.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	collector   *usecase.CandleCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	candleStore domrepo.CandleStore
	builders    []*usecase.IndicatorBuilder
	runner      *usecase.AlertRunner
	watchlist   *usecase.WatchlistUseCase
	digest      *mailer.Mailer

	CandleProc *usecase.CandleProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}
	return &App{
		cfg:       cfg,
		log:       l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetEvaluation wires the scheduled indicator build and alert run.
func (a *App) SetEvaluation(
	candleStore domrepo.CandleStore,
	builders []*usecase.IndicatorBuilder,
	runner *usecase.AlertRunner,
	watchlist *usecase.WatchlistUseCase,
	digest *mailer.Mailer,
) {
	a.candleStore = candleStore
	a.builders = builders
	a.runner = runner
	a.watchlist = watchlist
	a.digest = digest
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, time.Second),
	)

	// Backfill history, then start the live collector
	go func() {
		if err := a.collector.Backfill(ctx, a.candleStore); err != nil {
			l.Error("backfill error", applogger.Error(err))
		}
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector starting", applogger.Strings("symbols", a.cfg.Hyperliquid.Coins))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Scheduled indicator build, alert run and digest
	if len(a.builders) > 0 && a.runner != nil {
		go a.evaluationLoop(ctx, l)
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) evaluationLoop(ctx context.Context, l *applogger.Logger) {
	interval := a.cfg.Engine.RunInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// first run shortly after startup so backfill lands first
	first := time.NewTimer(time.Minute)
	defer first.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-first.C:
			a.evaluate(ctx, l)
		case <-ticker.C:
			a.evaluate(ctx, l)
		}
	}
}

func (a *App) evaluate(ctx context.Context, l *applogger.Logger) {
	for _, b := range a.builders {
		if err := b.Run(ctx); err != nil {
			l.Error("indicator build failed", applogger.Error(err))
		}
	}
	fired, err := a.runner.Run(ctx)
	if err != nil {
		l.Error("alert run failed", applogger.Error(err))
	}

	if a.digest == nil || a.watchlist == nil {
		return
	}
	entries, err := a.watchlist.Latest(ctx, a.cfg.Hyperliquid.Coins, domrepo.DefaultTimeframe())
	if err != nil {
		l.Error("watchlist build failed", applogger.Error(err))
		return
	}
	if len(entries) == 0 && len(fired) == 0 {
		return
	}
	sent, err := a.digest.SendDigest(ctx, entries, fired)
	if err != nil {
		l.Error("digest send failed", applogger.Error(err))
		return
	}
	if sent {
		l.Info("digest sent",
			applogger.Int("watchlist", len(entries)),
			applogger.Int("alerts", len(fired)))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close candle processor resources (publisher/storage)
	if a.CandleProc != nil {
		a.CandleProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
