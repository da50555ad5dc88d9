package worker

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/assignment-engine/internal/events"
)

type memoryWriter struct{ messages []kafka.Message }

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func TestAssignmentEventWorkerLogsAndForwards(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	writer := &memoryWriter{}
	dispatcher := events.NewInMemoryDispatcher()
	StartAssignmentEventWorker(dispatcher, zap.New(core), events.NewKafkaPublisherWithWriter(writer, nil))

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketAssigned, TicketID: "t1"}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e2", Type: events.EventAssignmentUnmatched, TicketID: "t2"}))

	assert.Equal(t, 2, logs.FilterMessage("assignment event").Len())
	assert.Len(t, writer.messages, 2)
}

func TestAssignmentEventWorkerWithoutKafka(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartAssignmentEventWorker(dispatcher, zap.New(core), nil)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketAssigned}))
	assert.Equal(t, 1, logs.Len())
}
