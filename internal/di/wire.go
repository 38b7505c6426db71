//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinScore/pkg/config"
	"FinScore/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvidePromRegistry,
		ProvideMetrics,
		ProvideScanMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideMarketStore,
		ProvideMarketData,
		ProvideFundamentals,
		ProvideResultPublisher,

		// Services and use cases
		ProvideCalendar,
		ProvideResultCache,
		ProvideAnalyzer,
		ProvideScanner,
		ProvideScanRegistry,
		ProvideProfileUseCase,
		ProvideScanLimiter,
		ProvideKafkaScanHandler,
		ProvideScheduler,

		// Transport
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
