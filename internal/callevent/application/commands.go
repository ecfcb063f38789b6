package application

import (
	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
)

const ReceiveCallEventCommandName = "callevent.receive"

// RawCallEventSubmission es el registro sin tipar que llega del caller.
// Vive solo durante el request; el validador es el único camino hacia
// un comando tipado.
type RawCallEventSubmission map[string]interface{}

// ReceiveCallEventCommand es la representación validada de un evento.
// Solo lo construye el validador: si existe, ya cumple todas las reglas.
type ReceiveCallEventCommand struct {
	CallID    string
	From      string
	To        string
	EventType domain.EventType
	Timestamp string
	Duration  *int
}

func (c *ReceiveCallEventCommand) CommandName() string {
	return ReceiveCallEventCommandName
}

// Verificación estática
var _ sharedBus.Command = (*ReceiveCallEventCommand)(nil)
