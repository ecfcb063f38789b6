package bus

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoHandler = errors.New("no handler registered for command")

// Command es una acción de escritura ya validada, identificada por nombre.
type Command interface {
	CommandName() string
}

// CommandHandler ejecuta un único tipo de comando.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) error
}

// CommandBus enruta cada comando a su handler registrado.
// El registro se construye una vez en el arranque; no hay reflexión:
// la capa de transporte solo conoce el comando, nunca el handler.
type CommandBus struct {
	handlers map[string]CommandHandler
}

func NewCommandBus() *CommandBus {
	return &CommandBus{handlers: make(map[string]CommandHandler)}
}

// Register asocia un nombre de comando con su handler.
// Cada comando admite exactamente un handler.
func (b *CommandBus) Register(name string, h CommandHandler) error {
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("command %q already has a handler", name)
	}
	b.handlers[name] = h
	return nil
}

// Dispatch invoca el handler del comando. Los errores del handler
// se propagan sin envolver hasta el límite de transporte.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) error {
	h, ok := b.handlers[cmd.CommandName()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.CommandName())
	}
	return h.Handle(ctx, cmd)
}
