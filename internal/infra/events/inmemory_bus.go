package events

import (
	"context"
	"encoding/json"
	"sync"

	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
)

// InMemoryEventBus implementa la cola para UN solo topic con canales de
// Go. Se usa en despliegues locales y en tests: misma semántica de
// publish/consume que Kafka, sin broker externo.
type InMemoryEventBus struct {
	subscribers []chan []byte
	mu          sync.RWMutex
	topic       string
}

// Verificación estática
var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(topic string) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan []byte, 0),
		topic:       topic,
	}
}

// Publish serializa el evento y lo entrega a todos los suscriptores.
// La entrega es síncrona: cuando Publish devuelve nil el mensaje ya es
// propiedad del bus, igual que un WriteMessages confirmado.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subChan := range b.subscribers {
		select {
		case subChan <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registra un nuevo oyente de este bus.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan []byte, bufferSize)
	b.subscribers = append(b.subscribers, subChan)
	return subChan
}

func (b *InMemoryEventBus) Topic() string {
	return b.topic
}
