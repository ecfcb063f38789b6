package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
)

// ReceiveCallEventHandler transforma el comando validado en el mensaje
// normalizado y lo encola. No escribe en el almacén: la persistencia
// ocurre fuera de banda cuando la cola entrega el mensaje.
type ReceiveCallEventHandler struct {
	publisher sharedBus.EventPublisher
	timeout   time.Duration
	log       *zap.Logger
}

func NewReceiveCallEventHandler(publisher sharedBus.EventPublisher, timeout time.Duration, log *zap.Logger) *ReceiveCallEventHandler {
	return &ReceiveCallEventHandler{
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

func (h *ReceiveCallEventHandler) Handle(ctx context.Context, cmd sharedBus.Command) error {
	receive, ok := cmd.(*ReceiveCallEventCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T for %s", cmd, ReceiveCallEventCommandName)
	}

	// Duration solo entra en el payload cuando viene informada: una
	// duration nula se omite del todo, nunca se almacena como null.
	payload := domain.Payload{
		From:      receive.From,
		To:        receive.To,
		Timestamp: receive.Timestamp,
	}
	if receive.Duration != nil {
		payload.Duration = receive.Duration
	}

	msg := domain.CallEventMessage{
		CallID:    receive.CallID,
		EventType: receive.EventType,
		Payload:   payload,
	}

	// Publish acotado: el request nunca se queda bloqueado en una caída
	// del broker.
	ctxPub, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.publisher.Publish(ctxPub, msg); err != nil {
		h.log.Error("failed to publish call event",
			zap.String("call_id", receive.CallID),
			zap.String("topic", domain.CallEventTopic),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	h.log.Info("call event queued",
		zap.String("call_id", receive.CallID),
		zap.String("event_type", string(receive.EventType)),
	)
	return nil
}

// Verificación estática
var _ sharedBus.CommandHandler = (*ReceiveCallEventHandler)(nil)
