package integration

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/application"
	"github.com/davicafu/callflow/internal/callevent/domain"
	caConsumer "github.com/davicafu/callflow/internal/callevent/infra/inbound/events"
	caSqlite "github.com/davicafu/callflow/internal/callevent/infra/outbound/db/sqlite"
	infraEvents "github.com/davicafu/callflow/internal/infra/events"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	assert.NoError(t, err)
	// Una única conexión: cada conexión nueva a :memory: sería otra base.
	db.SetMaxOpenConns(1)
	assert.NoError(t, caSqlite.InitSQLite(db))

	t.Cleanup(func() { db.Close() })
	return db
}

func newEvent(callID string, duration *int) *domain.CallEvent {
	now := time.Now().UTC()
	return &domain.CallEvent{
		ID:        uuid.New(),
		CallID:    callID,
		EventType: domain.CallEnded,
		Payload: domain.Payload{
			From:      "+34600000001",
			To:        "+34600000002",
			Timestamp: "2025-06-01 10:35",
			Duration:  duration,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func countRows(t *testing.T, db *sql.DB, callID string) int {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM call_events WHERE call_id = ?`, callID).Scan(&count)
	assert.NoError(t, err)
	return count
}

func TestSQLite_UniqueCallID(t *testing.T) {
	db := setupTestDB(t)
	repo := caSqlite.NewCallEventRepoSQLite(db)
	ctx := context.Background()

	zero := 0
	assert.NoError(t, repo.Create(ctx, newEvent("c1", &zero)))

	// Segundo insert con el mismo call_id, aunque el resto cambie.
	err := repo.Create(ctx, newEvent("c1", nil))
	assert.ErrorIs(t, err, domain.ErrCallEventExists)

	assert.Equal(t, 1, countRows(t, db, "c1"))

	exists, err := repo.ExistsByCallID(ctx, "c1")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLite_PayloadRoundtrip(t *testing.T) {
	db := setupTestDB(t)
	repo := caSqlite.NewCallEventRepoSQLite(db)
	ctx := context.Background()

	zero := 0
	assert.NoError(t, repo.Create(ctx, newEvent("with-duration", &zero)))
	assert.NoError(t, repo.Create(ctx, newEvent("without-duration", nil)))

	withDur, err := repo.GetByCallID(ctx, "with-duration")
	assert.NoError(t, err)
	if assert.NotNil(t, withDur.Payload.Duration) {
		assert.Equal(t, 0, *withDur.Payload.Duration)
	}

	// duration ausente se recupera como ausente, no como cero.
	withoutDur, err := repo.GetByCallID(ctx, "without-duration")
	assert.NoError(t, err)
	assert.Nil(t, withoutDur.Payload.Duration)
	assert.Equal(t, "+34600000001", withoutDur.Payload.From)

	_, err = repo.GetByCallID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCallEventNotFound)
}

func TestSQLite_ConcurrentSameCallID(t *testing.T) {
	db := setupTestDB(t)
	repo := caSqlite.NewCallEventRepoSQLite(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Create(ctx, newEvent("race", nil))
		}()
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case err == domain.ErrCallEventExists:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Equal(t, 1, countRows(t, db, "race"))
}

// Pipeline completo con el bus en memoria: admisión, encolado, consumo y
// persistencia. Entregas repetidas del mismo call_id jamás producen una
// segunda fila.
func TestPipeline_EndToEnd_NoDuplicateRows(t *testing.T) {
	db := setupTestDB(t)
	repo := caSqlite.NewCallEventRepoSQLite(db)
	log := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := infraEvents.NewInMemoryEventBus(domain.CallEventTopic)
	consumer := caConsumer.NewCallEventConsumer(repo, nil, nil, 3, time.Millisecond, 60, log)
	caConsumer.BackgroundConsumerChan(ctx, bus.Subscribe(10), consumer)

	validator := application.NewValidator(repo, nil, time.Second, log)
	handler := application.NewReceiveCallEventHandler(bus, time.Second, log)
	commandBus := sharedBus.NewCommandBus()
	assert.NoError(t, commandBus.Register(application.ReceiveCallEventCommandName, handler))
	service := application.NewCallEventService(validator, commandBus, log)

	raw := application.RawCallEventSubmission{
		"call_id":    "e2e-1",
		"from":       "+34600000001",
		"to":         "+34600000002",
		"event_type": "call_started",
		"timestamp":  "2025-06-01 10:30",
	}

	verrs, err := service.Receive(ctx, raw)
	assert.NoError(t, err)
	assert.False(t, verrs.HasErrors())

	// La escritura es asíncrona: 200 solo significa "encolado".
	assert.Eventually(t, func() bool {
		return countRows(t, db, "e2e-1") == 1
	}, time.Second, 10*time.Millisecond)

	// Una segunda entrega del mismo mensaje directamente por la cola
	// (reentrega del broker) no duplica la fila.
	msg := domain.CallEventMessage{
		CallID:    "e2e-1",
		EventType: domain.CallStarted,
		Payload:   domain.Payload{From: "+34600000001", To: "+34600000002", Timestamp: "2025-06-01 10:30"},
	}
	assert.NoError(t, bus.Publish(ctx, msg))
	assert.NoError(t, bus.Publish(ctx, msg))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, countRows(t, db, "e2e-1"))

	// Con la fila ya persistida, la admisión rechaza el call_id repetido.
	verrs, err = service.Receive(ctx, raw)
	assert.NoError(t, err)
	assert.Contains(t, verrs, "call_id")
	assert.Contains(t, verrs["call_id"][0], "has already been taken")
}
