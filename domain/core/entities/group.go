package entities

import (
	"time"

	"districtgraph/domain/core/valueobjects"
)

// Group owns units (a county) and carries the demographic totals most
// recently propagated into it.
type Group struct {
	ID                string                    `json:"groupId"`
	StateID           string                    `json:"stateId,omitempty"`
	DemographicTotals valueobjects.Demographics `json:"demographicTotals"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

// NewGroup seeds an unsaved group for a unit that references a group the
// store does not know yet
func NewGroup(id, stateID string) *Group {
	now := time.Now().UTC()
	return &Group{
		ID:                id,
		StateID:           stateID,
		DemographicTotals: valueobjects.Demographics{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ReplaceTotals overwrites the totals with a copy of snapshot
func (g *Group) ReplaceTotals(snapshot valueobjects.Demographics) {
	g.DemographicTotals = snapshot.Clone()
	g.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	out := *g
	out.DemographicTotals = g.DemographicTotals.Clone()
	return &out
}
