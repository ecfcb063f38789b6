package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
	"github.com/davicafu/callflow/tests/mocks"
)

func newTestService(t *testing.T, repo domain.CallEventRepository, publisher sharedBus.EventPublisher) *CallEventService {
	t.Helper()

	log := zap.NewNop()
	validator := NewValidator(repo, nil, time.Second, log)
	handler := NewReceiveCallEventHandler(publisher, time.Second, log)

	bus := sharedBus.NewCommandBus()
	assert.NoError(t, bus.Register(ReceiveCallEventCommandName, handler))

	return NewCallEventService(validator, bus, log)
}

func TestReceive_QueuesStartedEvent(t *testing.T) {
	publisher := &mocks.CapturePublisher{}
	service := newTestService(t, mocks.NewInMemoryCallEventRepo(), publisher)

	raw := RawCallEventSubmission{
		"call_id":    "c1",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_started",
		"timestamp":  "2025-06-01 10:30",
	}

	verrs, err := service.Receive(context.Background(), raw)

	assert.NoError(t, err)
	assert.False(t, verrs.HasErrors())

	msgs, err := publisher.Messages()
	assert.NoError(t, err)
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "c1", msgs[0].CallID)
		assert.Equal(t, domain.CallStarted, msgs[0].EventType)
		assert.Equal(t, "+34600000001", msgs[0].Payload.From)
		assert.Equal(t, "+34600000002", msgs[0].Payload.To)
		assert.Equal(t, "2025-06-01 10:30", msgs[0].Payload.Timestamp)
	}
	// duration no aplica a call_started: la clave no viaja en el mensaje.
	assert.NotContains(t, string(publisher.Published[0]), "duration")
}

func TestReceive_EndedWithZeroDuration(t *testing.T) {
	publisher := &mocks.CapturePublisher{}
	service := newTestService(t, mocks.NewInMemoryCallEventRepo(), publisher)

	raw := RawCallEventSubmission{
		"call_id":    "c2",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_ended",
		"timestamp":  "2025-06-01 10:35",
		"duration":   float64(0),
	}

	verrs, err := service.Receive(context.Background(), raw)

	assert.NoError(t, err)
	assert.False(t, verrs.HasErrors())

	msgs, err := publisher.Messages()
	assert.NoError(t, err)
	if assert.Len(t, msgs, 1) && assert.NotNil(t, msgs[0].Payload.Duration) {
		assert.Equal(t, 0, *msgs[0].Payload.Duration)
	}
	assert.Contains(t, string(publisher.Published[0]), `"duration":0`)
}

func TestReceive_ValidationFailureDoesNotPublish(t *testing.T) {
	publisher := &mocks.CapturePublisher{}
	service := newTestService(t, mocks.NewInMemoryCallEventRepo(), publisher)

	raw := RawCallEventSubmission{
		"call_id":    "c3",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_ended",
		"timestamp":  "2025-06-01 10:35",
	}

	verrs, err := service.Receive(context.Background(), raw)

	assert.NoError(t, err)
	assert.Contains(t, verrs, "duration")
	assert.Empty(t, publisher.Published)
}

func TestReceive_QueueUnavailable(t *testing.T) {
	publisher := &mocks.FailingPublisher{Err: errors.New("broker down")}
	service := newTestService(t, mocks.NewInMemoryCallEventRepo(), publisher)

	raw := RawCallEventSubmission{
		"call_id":    "c4",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_started",
		"timestamp":  "2025-06-01 10:30",
	}

	verrs, err := service.Receive(context.Background(), raw)

	assert.False(t, verrs.HasErrors())
	assert.ErrorIs(t, err, domain.ErrQueueUnavailable)
}

func TestHandle_RejectsUnexpectedCommand(t *testing.T) {
	handler := NewReceiveCallEventHandler(&mocks.CapturePublisher{}, time.Second, zap.NewNop())

	err := handler.Handle(context.Background(), &otherCommand{})

	assert.Error(t, err)
}

type otherCommand struct{}

func (c *otherCommand) CommandName() string { return ReceiveCallEventCommandName }
