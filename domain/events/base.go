package events

import "time"

// Source is the EventBridge source every event from this service carries
const Source = "districtgraph.engine"

// Event types
const (
	TypeUnitCreated               = "unit.created"
	TypeUnitDeleted               = "unit.deleted"
	TypeUnitAdjacencyReconciled   = "unit.adjacency_reconciled"
	TypeUnitsMerged               = "units.merged"
	TypeGroupDemographicsReplaced = "group.demographics_replaced"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// UnitCreated is raised when a unit is first inserted
type UnitCreated struct {
	BaseEvent
	UnitID      string   `json:"unit_id"`
	GroupID     string   `json:"group_id"`
	AdjacentIDs []string `json:"adjacent_ids"`
}

// NewUnitCreated creates a UnitCreated event
func NewUnitCreated(unitID, groupID string, adjacentIDs []string, timestamp time.Time) UnitCreated {
	return UnitCreated{
		BaseEvent:   newBase(unitID, TypeUnitCreated, timestamp),
		UnitID:      unitID,
		GroupID:     groupID,
		AdjacentIDs: adjacentIDs,
	}
}

// UnitDeleted is raised when a unit is removed without graph repair
type UnitDeleted struct {
	BaseEvent
	UnitID string `json:"unit_id"`
}

// NewUnitDeleted creates a UnitDeleted event
func NewUnitDeleted(unitID string, timestamp time.Time) UnitDeleted {
	return UnitDeleted{
		BaseEvent: newBase(unitID, TypeUnitDeleted, timestamp),
		UnitID:    unitID,
	}
}

// UnitAdjacencyReconciled is raised when an edit changed a unit's neighbours
type UnitAdjacencyReconciled struct {
	BaseEvent
	UnitID  string   `json:"unit_id"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Skipped []string `json:"skipped,omitempty"`
}

// NewUnitAdjacencyReconciled creates a UnitAdjacencyReconciled event
func NewUnitAdjacencyReconciled(unitID string, added, removed, skipped []string, timestamp time.Time) UnitAdjacencyReconciled {
	return UnitAdjacencyReconciled{
		BaseEvent: newBase(unitID, TypeUnitAdjacencyReconciled, timestamp),
		UnitID:    unitID,
		Added:     added,
		Removed:   removed,
		Skipped:   skipped,
	}
}

// UnitsMerged is raised when one unit absorbs another
type UnitsMerged struct {
	BaseEvent
	PrimaryID       string   `json:"primary_id"`
	AbsorbedID      string   `json:"absorbed_id"`
	GainedNeighbors []string `json:"gained_neighbors"`
}

// NewUnitsMerged creates a UnitsMerged event
func NewUnitsMerged(primaryID, absorbedID string, gained []string, timestamp time.Time) UnitsMerged {
	return UnitsMerged{
		BaseEvent:       newBase(primaryID, TypeUnitsMerged, timestamp),
		PrimaryID:       primaryID,
		AbsorbedID:      absorbedID,
		GainedNeighbors: gained,
	}
}

// GroupDemographicsReplaced is raised when a unit snapshot overwrites a
// group's totals
type GroupDemographicsReplaced struct {
	BaseEvent
	GroupID string         `json:"group_id"`
	UnitID  string         `json:"unit_id"`
	Totals  map[string]int `json:"totals"`
}

// NewGroupDemographicsReplaced creates a GroupDemographicsReplaced event
func NewGroupDemographicsReplaced(groupID, unitID string, totals map[string]int, timestamp time.Time) GroupDemographicsReplaced {
	return GroupDemographicsReplaced{
		BaseEvent: newBase(groupID, TypeGroupDemographicsReplaced, timestamp),
		GroupID:   groupID,
		UnitID:    unitID,
		Totals:    totals,
	}
}
