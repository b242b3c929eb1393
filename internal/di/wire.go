//go:build wireinject
// +build wireinject

package di

import (
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/config"
	"github.com/lingxiaolyu191231/crypto-watcher/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCandleStore,
		ProvideCandlePublisher,
		ProvideHyperliquidStream,
		ProvideHyperliquidBackfill,
		ProvideStateStore,

		// Use cases
		ProvideEngineParams,
		ProvideCandleProcessor,
		ProvideCandleCollector,
		ProvideKafkaCandlesHandler,
		ProvideIndicatorBuilders,
		ProvideAlertRunner,
		ProvideWatchlist,
		ProvideMailer,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
