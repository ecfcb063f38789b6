package domain

import (
	"context"
	"errors"
)

// ---------- Errores de dominio ----------
var (
	// ErrCallEventExists lo devuelve el repositorio cuando la restricción
	// de unicidad sobre call_id rechaza la inserción. En el consumidor es
	// un resultado esperado (entrega at-least-once), no un fallo.
	ErrCallEventExists = errors.New("call event already exists")

	ErrCallEventNotFound = errors.New("call event not found")
	ErrInvalidEventType  = errors.New("invalid event type")

	// ErrQueueUnavailable indica que el publish no se pudo confirmar.
	// El request debe fallar de forma visible, nunca responder "queued".
	ErrQueueUnavailable = errors.New("event queue unavailable")
)

// ---------- Interfaces (Ports) ----------

// CallEventRepository define la persistencia de eventos de llamada.
// La restricción de unicidad de call_id vive en el almacén: es el
// mecanismo autoritativo de deduplicación, independiente del pre-chequeo
// que hace el validador.
type CallEventRepository interface {
	// Create persiste el evento exactamente una vez.
	// Debe devolver ErrCallEventExists si call_id ya está almacenado.
	Create(ctx context.Context, e *CallEvent) error

	// ExistsByCallID es el pre-chequeo de unicidad en la admisión.
	ExistsByCallID(ctx context.Context, callID string) (bool, error)

	// GetByCallID debe devolver ErrCallEventNotFound si no existe.
	GetByCallID(ctx context.Context, callID string) (*CallEvent, error)
}

// CallEventAnalytics es el sink analítico append-only. Best-effort:
// un fallo aquí nunca invalida el procesamiento del mensaje.
type CallEventAnalytics interface {
	LogBatch(ctx context.Context, events []*CallEvent) error
}
