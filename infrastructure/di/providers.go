package di

import (
	"context"
	"fmt"
	"time"

	"districtgraph/application/ports"
	"districtgraph/application/services"
	"districtgraph/infrastructure/cache"
	"districtgraph/infrastructure/config"
	"districtgraph/infrastructure/messaging/eventbridge"
	logpublisher "districtgraph/infrastructure/messaging/logging"
	"districtgraph/infrastructure/persistence/decorators"
	"districtgraph/infrastructure/persistence/dynamodb"
	"districtgraph/infrastructure/persistence/memory"
	"districtgraph/interfaces/http/rest"
	pkgerrors "districtgraph/pkg/errors"
	"districtgraph/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates the application logger. Production uses the JSON
// encoder; everything else the console encoder.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "districtgraph")), nil
}

// ProvideAWSConfig creates AWS configuration. Loading is lazy, so this is
// safe when no AWS backend is selected.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at a local
// endpoint when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideCache creates the configured cache. A nil cache disables the
// caching decorators.
func ProvideCache(cfg *config.Config, logger *zap.Logger) (ports.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		c := cache.NewInMemoryCache(time.Minute)
		return c, func() { _ = c.Close() }, nil
	case config.CacheRedis:
		client := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if client == nil {
			return nil, nil, fmt.Errorf("redis cache needs REDIS_ADDR")
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return cache.NewRedisCache(client, cfg.RedisKeyPrefix, logger), cleanup, nil
	case config.CacheNone, "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// ProvideUnitRepository builds the unit store and its decorator chain:
// cache, then circuit breaker, then logging, then the backend
func ProvideUnitRepository(
	cfg *config.Config,
	client *awsdynamodb.Client,
	c ports.Cache,
	logger *zap.Logger,
) (ports.UnitRepository, error) {
	var repo ports.UnitRepository
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		repo = dynamodb.NewUnitRepository(client, cfg.DynamoDBTable, logger)
	case config.StoreMemory:
		repo = memory.NewUnitStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	repo = decorators.NewLoggingUnitRepository(repo, logger, loggingConfig(cfg))
	if cfg.EnableBreaker {
		repo = decorators.NewBreakerUnitRepository(repo, decorators.DefaultBreakerConfig("unit-store"), logger)
	}
	if c != nil {
		repo = decorators.NewCachingUnitRepository(repo, c, cfg.CacheTTL, logger)
	}
	return repo, nil
}

// ProvideGroupRepository builds the group store with the same decorators
func ProvideGroupRepository(
	cfg *config.Config,
	client *awsdynamodb.Client,
	c ports.Cache,
	logger *zap.Logger,
) (ports.GroupRepository, error) {
	var repo ports.GroupRepository
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		repo = dynamodb.NewGroupRepository(client, cfg.DynamoDBTable, logger)
	case config.StoreMemory:
		repo = memory.NewGroupStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	repo = decorators.NewLoggingGroupRepository(repo, logger, loggingConfig(cfg))
	if cfg.EnableBreaker {
		repo = decorators.NewBreakerGroupRepository(repo, decorators.DefaultBreakerConfig("group-store"), logger)
	}
	if c != nil {
		repo = decorators.NewCachingGroupRepository(repo, c, cfg.CacheTTL, logger)
	}
	return repo, nil
}

func loggingConfig(cfg *config.Config) decorators.LoggingConfig {
	lc := decorators.DefaultLoggingConfig()
	lc.SlowThreshold = cfg.SlowQueryThreshold
	lc.LogRequests = cfg.IsDevelopment()
	return lc
}

// ProvideEventPublisher creates the configured publisher. A nil publisher
// turns event emission off.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) (ports.EventPublisher, error) {
	switch cfg.EventsBackend {
	case config.EventsEventBridge:
		return eventbridge.NewPublisher(client, cfg.EventBusName, logger), nil
	case config.EventsLog:
		return logpublisher.NewPublisher(logger), nil
	case config.EventsNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

// ProvideCollector creates the Prometheus collector, or nil when metrics
// are disabled
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideMetrics creates the CloudWatch recorder, or nil when disabled
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableCloudWatch {
		return nil
	}
	return observability.NewMetrics(cfg.MetricsNamespace, client, logger)
}

// ProvideRecorder fans engine measurements out to every enabled sink
func ProvideRecorder(collector *observability.Collector, metrics *observability.Metrics) observability.Recorder {
	var recorders []observability.Recorder
	if collector != nil {
		recorders = append(recorders, collector)
	}
	if metrics != nil {
		recorders = append(recorders, metrics)
	}
	if len(recorders) == 0 {
		return observability.NopRecorder{}
	}
	return observability.NewMultiRecorder(recorders...)
}

// ProvideTracer creates the X-Ray tracer, or nil when tracing is disabled
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("districtgraph")
}

// ProvideEngine wires the engine services
func ProvideEngine(
	unitRepo ports.UnitRepository,
	groupRepo ports.GroupRepository,
	publisher ports.EventPublisher,
	recorder observability.Recorder,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *services.Engine {
	return services.NewEngine(unitRepo, groupRepo, logger,
		services.WithPublisher(publisher),
		services.WithRecorder(recorder),
		services.WithTracer(tracer),
	)
}

// ProvideErrorHandler creates the HTTP error handler. Causes and stack traces
// are included in development; UNAVAILABLE responses ask clients to wait out
// the store breaker.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment()).
		WithRetryAfter(decorators.DefaultBreakerConfig("").Timeout)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ProvideRouter creates the HTTP router with a readiness check per pingable
// dependency
func ProvideRouter(
	cfg *config.Config,
	engine *services.Engine,
	errorHandler *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	c ports.Cache,
	logger *zap.Logger,
) *rest.Router {
	checks := map[string]rest.ReadinessCheck{}
	if p, ok := c.(pinger); ok {
		checks["cache"] = p.Ping
	}

	return rest.NewRouter(engine, errorHandler, collector, rest.RouterConfig{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		Checks:         checks,
	}, logger)
}
