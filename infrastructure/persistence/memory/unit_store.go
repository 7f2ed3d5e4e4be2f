// Package memory provides goroutine-safe in-process stores. They back local
// development and the engine's tests; every read and write copies records
// so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	pkgerrors "districtgraph/pkg/errors"
)

// UnitStore keeps units in a map keyed by id
type UnitStore struct {
	mu    sync.RWMutex
	units map[string]*entities.Unit
	now   func() time.Time
}

var _ ports.UnitRepository = (*UnitStore)(nil)

// NewUnitStore creates an empty store, optionally seeded with units
func NewUnitStore(seed ...*entities.Unit) *UnitStore {
	s := &UnitStore{
		units: make(map[string]*entities.Unit),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, u := range seed {
		s.units[u.ID] = u.Persistable()
	}
	return s
}

// Get retrieves a unit by its ID
func (s *UnitStore) Get(ctx context.Context, id string) (*entities.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unit, ok := s.units[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("unit", id)
	}
	return unit.Clone(), nil
}

// GetMany resolves ids, leaving unknown ones out of the result
func (s *UnitStore) GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]*entities.Unit, len(ids))
	for _, id := range ids {
		if unit, ok := s.units[id]; ok {
			found[id] = unit.Clone()
		}
	}
	return found, nil
}

// Put upserts a unit. Request-scoped fields are dropped and CreatedAt is
// preserved across updates.
func (s *UnitStore) Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	if unit == nil || unit.ID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("unit id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := unit.Persistable()
	now := s.now()
	if existing, ok := s.units[unit.ID]; ok && !existing.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.units[stored.ID] = stored
	return stored.Clone(), nil
}

// Delete removes a unit. Unknown ids are ignored.
func (s *UnitStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.units, id)
	return nil
}

// List returns every unit ordered by id
func (s *UnitStore) List(ctx context.Context) ([]*entities.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Unit, 0, len(s.units))
	for _, unit := range s.units {
		out = append(out, unit.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored units
func (s *UnitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}
