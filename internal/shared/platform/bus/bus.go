package bus

import "context"

// Keyer lo implementan los mensajes que definen su propia clave de partición.
type Keyer interface {
	PartitionKey() string
}

// EventPublisher publica un mensaje en el broker.
// La semántica de topic y formato del payload la decide cada adapter.
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}
