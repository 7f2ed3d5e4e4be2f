//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"districtgraph/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideCache,
	ProvideUnitRepository,
	ProvideGroupRepository,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideMetrics,
	ProvideRecorder,
	ProvideTracer,
	ProvideEngine,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
