//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Areopagus/pkg/config"
	"Areopagus/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegisterer,
		ProvideMetrics,
		ProvideRemoteMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideWeightStore,

		// Repositories
		ProvideBalanceSource,
		ProvideOrderBookCache,
		ProvideIntentPublisher,
		ProvideDecisionStore,

		// Use cases
		ProvideMeritBook,
		ProvideCouncils,
		ProvideRiskManager,
		ProvideEngine,
		ProvideSettingsWatcher,

		// Transport
		ProvideKafkaConsumer,
		ProvideMessageHandlers,
		ProvideQueueIntake,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
