// Package logging provides an event publisher that writes events to the log,
// used when no event bus is configured.
package logging

import (
	"context"

	"districtgraph/application/ports"
	"districtgraph/domain/events"

	"go.uber.org/zap"
)

// Publisher logs every event at info level
type Publisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a logging publisher
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger.Named("events")}
}

// Publish logs a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

// PublishBatch logs each event
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		_ = p.Publish(ctx, event)
	}
	return nil
}
