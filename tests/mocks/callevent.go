package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/davicafu/callflow/internal/callevent/domain"
)

// ------------------- Repositorio -------------------

// InMemoryCallEventRepo simula el almacén con la misma restricción de
// unicidad sobre call_id que los repos reales.
type InMemoryCallEventRepo struct {
	mu     sync.Mutex
	Events map[string]*domain.CallEvent

	// CreateErrs encola errores transitorios que Create devuelve antes
	// de intentar insertar, para probar los reintentos del consumidor.
	CreateErrs []error
	// ExistsErr fuerza el fallo del pre-chequeo de unicidad.
	ExistsErr error
}

func NewInMemoryCallEventRepo() *InMemoryCallEventRepo {
	return &InMemoryCallEventRepo{Events: make(map[string]*domain.CallEvent)}
}

func (r *InMemoryCallEventRepo) Create(ctx context.Context, e *domain.CallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.CreateErrs) > 0 {
		err := r.CreateErrs[0]
		r.CreateErrs = r.CreateErrs[1:]
		return err
	}

	if _, exists := r.Events[e.CallID]; exists {
		return domain.ErrCallEventExists
	}

	clone := *e
	r.Events[e.CallID] = &clone
	return nil
}

func (r *InMemoryCallEventRepo) ExistsByCallID(ctx context.Context, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ExistsErr != nil {
		return false, r.ExistsErr
	}
	_, exists := r.Events[callID]
	return exists, nil
}

func (r *InMemoryCallEventRepo) GetByCallID(ctx context.Context, callID string) (*domain.CallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.Events[callID]
	if !ok {
		return nil, domain.ErrCallEventNotFound
	}
	clone := *e
	return &clone, nil
}

func (r *InMemoryCallEventRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}

// Verificación estática
var _ domain.CallEventRepository = (*InMemoryCallEventRepo)(nil)

// ------------------- Cache -------------------

// DummyCache simula una cache en memoria sin TTL.
type DummyCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func NewDummyCache() *DummyCache {
	return &DummyCache{store: make(map[string][]byte)}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = data
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ------------------- Publishers -------------------

// CapturePublisher guarda cada mensaje publicado, serializado igual que
// lo haría el adapter de Kafka.
type CapturePublisher struct {
	mu        sync.Mutex
	Published [][]byte
}

func (p *CapturePublisher) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, data)
	return nil
}

// Messages decodifica lo publicado como mensajes de evento de llamada.
func (p *CapturePublisher) Messages() ([]domain.CallEventMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]domain.CallEventMessage, 0, len(p.Published))
	for _, raw := range p.Published {
		var m domain.CallEventMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// FailingPublisher siempre falla, simulando la cola caída.
type FailingPublisher struct {
	Err error
}

func (p *FailingPublisher) Publish(ctx context.Context, event interface{}) error {
	return p.Err
}

// MockPublisher permite expectativas estilo testify.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event interface{}) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ------------------- Analytics -------------------

// DummyAnalytics registra los lotes recibidos.
type DummyAnalytics struct {
	mu     sync.Mutex
	Logged []*domain.CallEvent
	Err    error
}

func (a *DummyAnalytics) LogBatch(ctx context.Context, events []*domain.CallEvent) error {
	if a.Err != nil {
		return a.Err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logged = append(a.Logged, events...)
	return nil
}

func (a *DummyAnalytics) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Logged)
}
