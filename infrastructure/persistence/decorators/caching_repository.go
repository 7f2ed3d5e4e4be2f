package decorators

import (
	"context"
	"encoding/json"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"

	"go.uber.org/zap"
)

func unitCacheKey(id string) string  { return "unit:" + id }
func groupCacheKey(id string) string { return "group:" + id }

// CachingUnitRepository serves Get from the cache and writes every stored
// unit through to it. GetMany and List always reach the store, as does Get
// under a context marked with ports.WithFreshReads.
type CachingUnitRepository struct {
	inner  ports.UnitRepository
	cache  ports.Cache
	ttl    int
	logger *zap.Logger
}

var _ ports.UnitRepository = (*CachingUnitRepository)(nil)

// NewCachingUnitRepository wraps inner with a cache; ttl is in seconds
func NewCachingUnitRepository(inner ports.UnitRepository, cache ports.Cache, ttl int, logger *zap.Logger) *CachingUnitRepository {
	return &CachingUnitRepository{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (r *CachingUnitRepository) Get(ctx context.Context, id string) (*entities.Unit, error) {
	if !ports.FreshReads(ctx) {
		if data, ok := r.cache.Get(ctx, unitCacheKey(id)); ok {
			var unit entities.Unit
			if err := json.Unmarshal(data, &unit); err == nil {
				return &unit, nil
			}
			r.logger.Warn("Dropping undecodable cache entry", zap.String("key", unitCacheKey(id)))
			_ = r.cache.Delete(ctx, unitCacheKey(id))
		}
	}

	unit, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, unitCacheKey(unit.ID), unit)
	return unit, nil
}

func (r *CachingUnitRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error) {
	return r.inner.GetMany(ctx, ids)
}

func (r *CachingUnitRepository) Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	saved, err := r.inner.Put(ctx, unit)
	if err != nil {
		if unit != nil {
			// The store may or may not have applied the write
			_ = r.cache.Delete(ctx, unitCacheKey(unit.ID))
		}
		return nil, err
	}
	r.store(ctx, unitCacheKey(saved.ID), saved)
	return saved, nil
}

func (r *CachingUnitRepository) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, unitCacheKey(id)); err != nil {
		r.logger.Warn("Failed to evict unit from cache", zap.String("unitID", id), zap.Error(err))
	}
	return nil
}

func (r *CachingUnitRepository) List(ctx context.Context) ([]*entities.Unit, error) {
	return r.inner.List(ctx)
}

func (r *CachingUnitRepository) store(ctx context.Context, key string, value interface{}) {
	cacheSet(ctx, r.cache, r.logger, key, value, r.ttl)
}

// CachingGroupRepository is the group store counterpart of CachingUnitRepository
type CachingGroupRepository struct {
	inner  ports.GroupRepository
	cache  ports.Cache
	ttl    int
	logger *zap.Logger
}

var _ ports.GroupRepository = (*CachingGroupRepository)(nil)

// NewCachingGroupRepository wraps inner with a cache; ttl is in seconds
func NewCachingGroupRepository(inner ports.GroupRepository, cache ports.Cache, ttl int, logger *zap.Logger) *CachingGroupRepository {
	return &CachingGroupRepository{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (r *CachingGroupRepository) Get(ctx context.Context, id string) (*entities.Group, error) {
	if !ports.FreshReads(ctx) {
		if data, ok := r.cache.Get(ctx, groupCacheKey(id)); ok {
			var group entities.Group
			if err := json.Unmarshal(data, &group); err == nil {
				return &group, nil
			}
			_ = r.cache.Delete(ctx, groupCacheKey(id))
		}
	}

	group, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, r.cache, r.logger, groupCacheKey(group.ID), group, r.ttl)
	return group, nil
}

func (r *CachingGroupRepository) Put(ctx context.Context, group *entities.Group) (*entities.Group, error) {
	saved, err := r.inner.Put(ctx, group)
	if err != nil {
		if group != nil {
			_ = r.cache.Delete(ctx, groupCacheKey(group.ID))
		}
		return nil, err
	}
	cacheSet(ctx, r.cache, r.logger, groupCacheKey(saved.ID), saved, r.ttl)
	return saved, nil
}

func cacheSet(ctx context.Context, cache ports.Cache, logger *zap.Logger, key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("Failed to write cache entry", zap.String("key", key), zap.Error(err))
	}
}
