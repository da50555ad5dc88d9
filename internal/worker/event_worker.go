package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/events"
)

// StartAssignmentEventWorker registers handlers for assignment events: an audit log
// line for every decision and, when publisher is set, forwarding to Kafka.
func StartAssignmentEventWorker(dispatcher events.Dispatcher, logger *zap.Logger, publisher *events.KafkaPublisher) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		logger.Info("assignment event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Any("payload", event.Payload))
		return nil
	})

	if publisher != nil {
		dispatcher.SubscribeAll(publisher.Handle)
	}
}
