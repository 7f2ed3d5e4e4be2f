package memory

import (
	"context"
	"sync"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	pkgerrors "districtgraph/pkg/errors"
)

// GroupStore keeps groups in a map keyed by id
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]*entities.Group
}

var _ ports.GroupRepository = (*GroupStore)(nil)

// NewGroupStore creates an empty store, optionally seeded with groups
func NewGroupStore(seed ...*entities.Group) *GroupStore {
	s := &GroupStore{groups: make(map[string]*entities.Group)}
	for _, g := range seed {
		s.groups[g.ID] = g.Clone()
	}
	return s
}

// Get retrieves a group by its ID
func (s *GroupStore) Get(ctx context.Context, id string) (*entities.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("group", id)
	}
	return group.Clone(), nil
}

// Put upserts a group
func (s *GroupStore) Put(ctx context.Context, group *entities.Group) (*entities.Group, error) {
	if group == nil || group.ID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("group id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := group.Clone()
	if existing, ok := s.groups[group.ID]; ok && !existing.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.groups[stored.ID] = stored
	return stored.Clone(), nil
}
