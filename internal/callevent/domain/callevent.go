package domain

import (
	"fmt"
	"time"

	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
	"github.com/google/uuid"
)

// CallEventTopic es la cola/topic donde se encolan los eventos admitidos.
const CallEventTopic = "call-event"

// TimestampLayout es el formato fijo de los timestamps de señalización:
// precisión de minuto, sin segundos ni zona horaria.
const TimestampLayout = "2006-01-02 15:04"

// ---------------- Tipos de evento ----------------

// EventType es el conjunto cerrado de etiquetas del ciclo de vida de una llamada.
type EventType string

const (
	CallStarted   EventType = "call_started"
	CallEnded     EventType = "call_ended"
	CallMuted     EventType = "call_muted"
	CallUnmuted   EventType = "call_unmuted"
	CallForwarded EventType = "call_forwarded"
)

// EventTypes devuelve todos los valores válidos del enum.
func EventTypes() []EventType {
	return []EventType{CallStarted, CallEnded, CallMuted, CallUnmuted, CallForwarded}
}

// ParseEventType valida la pertenencia al enum cerrado.
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes() {
		if s == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
}

// AdditionalRequiredFields es la política de campos extra por tipo de evento.
// Función pura y total sobre el enum: hoy solo call_ended exige duration.
// Un tipo nuevo con campos propios se añade aquí, no en el validador.
func AdditionalRequiredFields(t EventType) []string {
	switch t {
	case CallEnded:
		return []string{"duration"}
	default:
		return nil
	}
}

// ---------------- Entidad y mensaje ----------------

// Payload es la parte estructurada del evento tal y como se almacena.
// Duration se omite por completo cuando no aplica: los consumidores
// distinguen "clave ausente" (no aplica) de null (desconocido/error).
type Payload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
	Duration  *int   `json:"duration,omitempty"`
}

// CallEvent es el registro durable de un evento de llamada.
// Se crea una única vez; no existe camino de actualización ni borrado.
type CallEvent struct {
	ID        uuid.UUID `json:"id"`
	CallID    string    `json:"call_id"`
	EventType EventType `json:"event_type"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CallEventMessage es la unidad que viaja por la cola. Inmutable una vez
// encolada: la propiedad pasa del request al broker.
type CallEventMessage struct {
	CallID    string    `json:"call_id"`
	EventType EventType `json:"event_type"`
	Payload   Payload   `json:"payload"`
}

// PartitionKey agrupa las entregas de una misma llamada en la misma partición.
func (m CallEventMessage) PartitionKey() string {
	return m.CallID
}

// Verificación estática
var _ sharedBus.Keyer = CallEventMessage{}

// SeenCacheKey forma una key consistente para el cache de call_id ya vistos.
func SeenCacheKey(callID string) string {
	return "callevent:seen:" + callID
}
