package ports

import (
	"context"

	"districtgraph/domain/core/entities"
	"districtgraph/domain/events"
)

// UnitRepository is the unit store boundary the engine reads and writes
// through. Implementations return NOT_FOUND from Get for unknown ids and
// STORE_FAILURE for backend errors.
type UnitRepository interface {
	// Get retrieves a unit by its ID
	Get(ctx context.Context, id string) (*entities.Unit, error)

	// GetMany resolves a set of ids. Unknown ids are absent from the result.
	GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error)

	// Put upserts a unit and returns the canonical stored form
	Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error)

	// Delete removes a unit. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored unit
	List(ctx context.Context) ([]*entities.Unit, error)
}

// GroupRepository is the group store boundary
type GroupRepository interface {
	// Get retrieves a group by its ID
	Get(ctx context.Context, id string) (*entities.Group, error)

	// Put upserts a group and returns the canonical stored form
	Put(ctx context.Context, group *entities.Group) (*entities.Group, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value []byte, ttl int) error

	// Delete removes values from cache
	Delete(ctx context.Context, keys ...string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
