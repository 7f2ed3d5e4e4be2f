package decorators

import (
	"context"
	"errors"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// newBreaker builds a breaker that only counts store failures. Domain
// answers such as NOT_FOUND or INVALID_ARGUMENT leave it closed.
func newBreaker(config BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsType(err, pkgerrors.ErrorTypeStoreFailure)
		},
	})
}

// execute runs fn through cb and maps a rejected call to UNAVAILABLE
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, pkgerrors.NewUnavailableError(cb.Name(), err)
	}
	if out == nil {
		return zero, err
	}
	return out.(T), err
}

// BreakerUnitRepository fails fast with UNAVAILABLE once the wrapped store
// keeps failing
type BreakerUnitRepository struct {
	inner ports.UnitRepository
	cb    *gobreaker.CircuitBreaker
}

var _ ports.UnitRepository = (*BreakerUnitRepository)(nil)

// NewBreakerUnitRepository wraps inner with a circuit breaker
func NewBreakerUnitRepository(inner ports.UnitRepository, config BreakerConfig, logger *zap.Logger) *BreakerUnitRepository {
	return &BreakerUnitRepository{inner: inner, cb: newBreaker(config, logger)}
}

// State reports the breaker state
func (r *BreakerUnitRepository) State() gobreaker.State {
	return r.cb.State()
}

func (r *BreakerUnitRepository) Get(ctx context.Context, id string) (*entities.Unit, error) {
	return execute(r.cb, func() (*entities.Unit, error) { return r.inner.Get(ctx, id) })
}

func (r *BreakerUnitRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error) {
	return execute(r.cb, func() (map[string]*entities.Unit, error) { return r.inner.GetMany(ctx, ids) })
}

func (r *BreakerUnitRepository) Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	return execute(r.cb, func() (*entities.Unit, error) { return r.inner.Put(ctx, unit) })
}

func (r *BreakerUnitRepository) Delete(ctx context.Context, id string) error {
	_, err := execute(r.cb, func() (struct{}, error) { return struct{}{}, r.inner.Delete(ctx, id) })
	return err
}

func (r *BreakerUnitRepository) List(ctx context.Context) ([]*entities.Unit, error) {
	return execute(r.cb, func() ([]*entities.Unit, error) { return r.inner.List(ctx) })
}

// BreakerGroupRepository is the group store counterpart of BreakerUnitRepository
type BreakerGroupRepository struct {
	inner ports.GroupRepository
	cb    *gobreaker.CircuitBreaker
}

var _ ports.GroupRepository = (*BreakerGroupRepository)(nil)

// NewBreakerGroupRepository wraps inner with a circuit breaker
func NewBreakerGroupRepository(inner ports.GroupRepository, config BreakerConfig, logger *zap.Logger) *BreakerGroupRepository {
	return &BreakerGroupRepository{inner: inner, cb: newBreaker(config, logger)}
}

func (r *BreakerGroupRepository) Get(ctx context.Context, id string) (*entities.Group, error) {
	return execute(r.cb, func() (*entities.Group, error) { return r.inner.Get(ctx, id) })
}

func (r *BreakerGroupRepository) Put(ctx context.Context, group *entities.Group) (*entities.Group, error) {
	return execute(r.cb, func() (*entities.Group, error) { return r.inner.Put(ctx, group) })
}
