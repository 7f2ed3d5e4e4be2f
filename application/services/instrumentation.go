package services

import (
	"context"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/events"
	"districtgraph/pkg/observability"

	"go.uber.org/zap"
)

// Option configures the optional collaborators shared by the engine services
type Option func(*instrumentation)

// WithPublisher publishes domain events after successful operations
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(i *instrumentation) {
		i.publisher = publisher
	}
}

// WithRecorder sends operation measurements to recorder
func WithRecorder(recorder observability.Recorder) Option {
	return func(i *instrumentation) {
		if recorder != nil {
			i.recorder = recorder
		}
	}
}

// WithTracer wraps operations in X-Ray subsegments
func WithTracer(tracer *observability.Tracer) Option {
	return func(i *instrumentation) {
		i.tracer = tracer
	}
}

// instrumentation bundles logging, events, metrics and tracing. Every
// collaborator except the logger may be absent.
type instrumentation struct {
	logger    *zap.Logger
	publisher ports.EventPublisher
	recorder  observability.Recorder
	tracer    *observability.Tracer
	now       func() time.Time
}

func newInstrumentation(logger *zap.Logger, opts []Option) instrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := instrumentation{
		logger:   logger,
		recorder: observability.NopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// run executes fn as a named operation: traced, timed and recorded
func (i *instrumentation) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	err := i.tracer.TraceFunction(ports.WithFreshReads(ctx), operation, fn)
	i.recorder.RecordOperation(ctx, operation, time.Since(start), err)
	return err
}

// publish sends events. Failures are logged and never reach the caller.
func (i *instrumentation) publish(ctx context.Context, evts ...events.DomainEvent) {
	if i.publisher == nil || len(evts) == 0 {
		return
	}

	var err error
	if len(evts) == 1 {
		err = i.publisher.Publish(ctx, evts[0])
	} else {
		err = i.publisher.PublishBatch(ctx, evts)
	}
	if err != nil {
		i.logger.Warn("Failed to publish events",
			zap.String("eventType", evts[0].GetEventType()),
			zap.Int("count", len(evts)),
			zap.Error(err),
		)
	}
}

func (i *instrumentation) recordOutcome(ctx context.Context, outcome NeighborOutcome) {
	i.recorder.RecordNeighborOutcome(ctx, string(outcome.Phase), string(outcome.Status))
	if outcome.Status == StatusSkippedNotFound {
		i.logger.Warn("Neighbor not found, skipping",
			zap.String("neighborID", outcome.NeighborID),
			zap.String("phase", string(outcome.Phase)),
		)
	}
}
