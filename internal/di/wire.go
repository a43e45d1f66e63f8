//go:build wireinject
// +build wireinject

package di

import (
	"EventCast/pkg/config"
	"EventCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideEventStore,
		ProvideOutcomeStore,
		ProvideVectorIndex,

		// Forecast components
		ProvideAggregator,
		ProvideBaseline,
		ProvideCalibrator,
		ProvideRegimeClassifier,
		ProvideForecaster,

		// Ingestion handlers
		ProvideEventIngestHandler,
		ProvideOutcomeIngestHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
