package di

import (
	"districtgraph/application/ports"
	"districtgraph/application/services"
	"districtgraph/infrastructure/config"
	"districtgraph/interfaces/http/rest"
	"districtgraph/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	UnitRepo  ports.UnitRepository
	GroupRepo ports.GroupRepository
	Cache     ports.Cache
	Publisher ports.EventPublisher
	Collector *observability.Collector
	Tracer    *observability.Tracer
	Engine    *services.Engine
	Router    *rest.Router
}
