package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// EventPublisher publishes change notifications on a best-effort basis: a
// failed publish is logged and never fails the caller.
type EventPublisher struct {
	publisher Publisher
	logger    zerolog.Logger
}

func NewEventPublisher(publisher Publisher, logger zerolog.Logger) *EventPublisher {
	return &EventPublisher{publisher: publisher, logger: logger}
}

func (p *EventPublisher) Emit(ctx context.Context, channel, eventType string, payload interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if _, err := p.publisher.Publish(ctx, channel, eventType, payload); err != nil {
		p.logger.Warn().Err(err).
			Str("channel", channel).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}
