// Package decorators wraps the store ports with cross-cutting behaviour:
// logging, circuit breaking and read-through caching. Every decorator keeps
// the wrapped interface so they stack in any order.
package decorators

import (
	"context"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	pkgerrors "districtgraph/pkg/errors"

	"go.uber.org/zap"
)

// LoggingConfig controls what the logging decorators emit
type LoggingConfig struct {
	LogRequests   bool          // Log input parameters
	LogErrors     bool          // Log failures
	SlowThreshold time.Duration // Warn for operations slower than this
}

// DefaultLoggingConfig returns sensible defaults for logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogRequests:   true,
		LogErrors:     true,
		SlowThreshold: time.Second,
	}
}

type opLogger struct {
	logger *zap.Logger
	config LoggingConfig
}

// observe logs one finished store operation. NOT_FOUND is an answer, not a
// failure, and is logged at debug.
func (l opLogger) observe(operation string, start time.Time, err error, fields ...zap.Field) {
	duration := time.Since(start)
	fields = append(fields, zap.String("operation", operation), zap.Duration("duration", duration))

	switch {
	case err != nil && !pkgerrors.IsNotFound(err):
		if l.config.LogErrors {
			l.logger.Error("store operation failed", append(fields, zap.Error(err))...)
		}
	case l.config.SlowThreshold > 0 && duration > l.config.SlowThreshold:
		l.logger.Warn("slow store operation", fields...)
	default:
		if l.config.LogRequests {
			l.logger.Debug("store operation completed", fields...)
		}
	}
}

// LoggingUnitRepository adds operation logging to a UnitRepository
type LoggingUnitRepository struct {
	inner ports.UnitRepository
	opLogger
}

var _ ports.UnitRepository = (*LoggingUnitRepository)(nil)

// NewLoggingUnitRepository creates a new logging decorator for UnitRepository
func NewLoggingUnitRepository(inner ports.UnitRepository, logger *zap.Logger, config LoggingConfig) *LoggingUnitRepository {
	return &LoggingUnitRepository{
		inner:    inner,
		opLogger: opLogger{logger: logger.Named("unit_repository"), config: config},
	}
}

func (r *LoggingUnitRepository) Get(ctx context.Context, id string) (*entities.Unit, error) {
	start := time.Now()
	unit, err := r.inner.Get(ctx, id)
	r.observe("get", start, err, zap.String("unitID", id))
	return unit, err
}

func (r *LoggingUnitRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error) {
	start := time.Now()
	units, err := r.inner.GetMany(ctx, ids)
	r.observe("get_many", start, err, zap.Int("requested", len(ids)), zap.Int("found", len(units)))
	return units, err
}

func (r *LoggingUnitRepository) Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	start := time.Now()
	saved, err := r.inner.Put(ctx, unit)
	fields := []zap.Field{}
	if unit != nil {
		fields = append(fields, zap.String("unitID", unit.ID), zap.Int("adjacent", unit.AdjacentIDs.Len()))
	}
	r.observe("put", start, err, fields...)
	return saved, err
}

func (r *LoggingUnitRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := r.inner.Delete(ctx, id)
	r.observe("delete", start, err, zap.String("unitID", id))
	return err
}

func (r *LoggingUnitRepository) List(ctx context.Context) ([]*entities.Unit, error) {
	start := time.Now()
	units, err := r.inner.List(ctx)
	r.observe("list", start, err, zap.Int("count", len(units)))
	return units, err
}

// LoggingGroupRepository adds operation logging to a GroupRepository
type LoggingGroupRepository struct {
	inner ports.GroupRepository
	opLogger
}

var _ ports.GroupRepository = (*LoggingGroupRepository)(nil)

// NewLoggingGroupRepository creates a new logging decorator for GroupRepository
func NewLoggingGroupRepository(inner ports.GroupRepository, logger *zap.Logger, config LoggingConfig) *LoggingGroupRepository {
	return &LoggingGroupRepository{
		inner:    inner,
		opLogger: opLogger{logger: logger.Named("group_repository"), config: config},
	}
}

func (r *LoggingGroupRepository) Get(ctx context.Context, id string) (*entities.Group, error) {
	start := time.Now()
	group, err := r.inner.Get(ctx, id)
	r.observe("get", start, err, zap.String("groupID", id))
	return group, err
}

func (r *LoggingGroupRepository) Put(ctx context.Context, group *entities.Group) (*entities.Group, error) {
	start := time.Now()
	saved, err := r.inner.Put(ctx, group)
	fields := []zap.Field{}
	if group != nil {
		fields = append(fields, zap.String("groupID", group.ID))
	}
	r.observe("put", start, err, fields...)
	return saved, err
}
