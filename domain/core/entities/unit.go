package entities

import (
	"fmt"
	"time"

	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"
)

// Unit is a node of the adjacency graph (a precinct). Relations to other
// units are held as identifiers only and are resolved through the store.
type Unit struct {
	ID            string             `json:"unitId"`
	GroupID       string             `json:"groupId"`
	StateID       string             `json:"stateId,omitempty"`
	CanonicalName string             `json:"canonicalName,omitempty"`
	AdjacentIDs   valueobjects.IDSet `json:"adjacentIds"`
	EnclosingIDs  valueobjects.IDSet `json:"enclosingIds"`

	Ghost          bool           `json:"ghost"`
	MultipleBorder bool           `json:"multipleBorder"`
	Coordinates    string         `json:"coordinates,omitempty"`
	ElectionData   map[string]int `json:"electionData,omitempty"`
	LogBag         map[int]string `json:"logBag,omitempty"`

	// Demographics and RecomputeAggregate are instructions for the current
	// request only. Stores never persist them.
	Demographics       valueobjects.Demographics `json:"demographics,omitempty"`
	RecomputeAggregate bool                      `json:"recomputeAggregate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the invariants a unit must hold before it is written
func (u *Unit) Validate() error {
	if u == nil {
		return pkgerrors.NewInvalidArgumentError("unit cannot be nil")
	}
	if u.ID == "" {
		return pkgerrors.NewInvalidArgumentError("unit id cannot be empty")
	}
	if u.AdjacentIDs.Contains(u.ID) {
		return pkgerrors.NewInvalidArgumentError(fmt.Sprintf("unit %q cannot be adjacent to itself", u.ID))
	}
	if u.RecomputeAggregate {
		if u.Demographics == nil {
			return pkgerrors.NewInvalidArgumentError(
				fmt.Sprintf("unit %q requests an aggregate recompute without demographics", u.ID))
		}
		if err := u.Demographics.Validate(); err != nil {
			return pkgerrors.NewInvalidArgumentError(err.Error())
		}
	}
	return nil
}

// Normalize drops blank and repeated ids from the relation lists
func (u *Unit) Normalize() {
	if u == nil {
		return
	}
	u.AdjacentIDs = u.AdjacentIDs.Normalized()
	u.EnclosingIDs = u.EnclosingIDs.Normalized()
}

// IsAdjacentTo reports whether id is listed as a neighbour
func (u *Unit) IsAdjacentTo(id string) bool {
	return u.AdjacentIDs.Contains(id)
}

// AddAdjacent lists id as a neighbour. Self references are refused.
func (u *Unit) AddAdjacent(id string) bool {
	if id == u.ID {
		return false
	}
	return u.AdjacentIDs.Add(id)
}

// RemoveAdjacent drops id from the neighbour list
func (u *Unit) RemoveAdjacent(id string) bool {
	return u.AdjacentIDs.Remove(id)
}

// HasSnapshot reports whether the unit asks for its snapshot to be folded
// into its group
func (u *Unit) HasSnapshot() bool {
	return u.RecomputeAggregate && u.Demographics != nil
}

// Clone returns a deep copy
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	out := *u
	out.AdjacentIDs = u.AdjacentIDs.Clone()
	out.EnclosingIDs = u.EnclosingIDs.Clone()
	if u.ElectionData != nil {
		out.ElectionData = make(map[string]int, len(u.ElectionData))
		for k, v := range u.ElectionData {
			out.ElectionData[k] = v
		}
	}
	if u.LogBag != nil {
		out.LogBag = make(map[int]string, len(u.LogBag))
		for k, v := range u.LogBag {
			out.LogBag[k] = v
		}
	}
	if u.Demographics != nil {
		out.Demographics = u.Demographics.Clone()
	}
	return &out
}

// Persistable returns a copy with the request-scoped fields cleared
func (u *Unit) Persistable() *Unit {
	out := u.Clone()
	out.Demographics = nil
	out.RecomputeAggregate = false
	return out
}
