package observability

import (
	"context"
	"time"
)

// Recorder receives engine measurements. Implementations must be safe for
// concurrent use and must never fail the caller.
type Recorder interface {
	// RecordOperation records one top-level engine operation
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)

	// RecordNeighborOutcome records one neighbour step of a reconcile or merge
	RecordNeighborOutcome(ctx context.Context, phase, status string)

	// RecordPropagation records a demographic overwrite of a group
	RecordPropagation(ctx context.Context, groupID string)
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) RecordOperation(context.Context, string, time.Duration, error) {}
func (NopRecorder) RecordNeighborOutcome(context.Context, string, string)         {}
func (NopRecorder) RecordPropagation(context.Context, string)                     {}

// MultiRecorder fans measurements out to several recorders
type MultiRecorder []Recorder

// NewMultiRecorder drops nil entries
func NewMultiRecorder(recorders ...Recorder) MultiRecorder {
	out := make(MultiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiRecorder) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	for _, r := range m {
		r.RecordOperation(ctx, operation, duration, err)
	}
}

func (m MultiRecorder) RecordNeighborOutcome(ctx context.Context, phase, status string) {
	for _, r := range m {
		r.RecordNeighborOutcome(ctx, phase, status)
	}
}

func (m MultiRecorder) RecordPropagation(ctx context.Context, groupID string) {
	for _, r := range m {
		r.RecordPropagation(ctx, groupID)
	}
}
