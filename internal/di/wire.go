//go:build wireinject
// +build wireinject

package di

import (
	"BetPulse/pkg/config"
	"BetPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideStorage,

		// Repositories
		ProvideDecisionStore,
		ProvideLedger,
		ProvideDecisionPublisher,
		ProvideScoreSource,
		ProvideDecisionCache,

		// Engine and agents
		ProvideEngine,
		ProvideAgents,
		ProvideForecastCollector,
		ProvideSchemaValidator,

		// Use cases
		ProvideEvaluateFixture,
		ProvideDecisionQueries,
		ProvideKafkaRequestsHandler,

		// Delivery
		ProvideHub,
		ProvideLimiter,
		ProvideDecisionsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
