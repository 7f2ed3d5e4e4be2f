package services

// Phase names the step of an operation that touched a neighbour
type Phase string

const (
	PhaseRemoved Phase = "removed"
	PhaseAdded   Phase = "added"
	PhaseMerge   Phase = "merge"
	PhaseCreate  Phase = "create"
)

// OutcomeStatus is the result of one neighbour step
type OutcomeStatus string

const (
	// StatusApplied means the neighbour record was rewritten
	StatusApplied OutcomeStatus = "applied"
	// StatusUnchanged means the neighbour already matched and was not rewritten
	StatusUnchanged OutcomeStatus = "unchanged"
	// StatusSkippedNotFound means the neighbour id did not resolve
	StatusSkippedNotFound OutcomeStatus = "skipped_not_found"
)

// NeighborOutcome records what happened to one neighbour
type NeighborOutcome struct {
	NeighborID string        `json:"neighborId"`
	Phase      Phase         `json:"phase"`
	Status     OutcomeStatus `json:"status"`
}

// skipped returns the ids of outcomes that did not resolve
func skipped(outcomes []NeighborOutcome) []string {
	var ids []string
	for _, o := range outcomes {
		if o.Status == StatusSkippedNotFound {
			ids = append(ids, o.NeighborID)
		}
	}
	return ids
}
