package postgre

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/callflow/internal/callevent/domain"
)

// uniqueViolation es el código SQLSTATE de Postgres para violaciones de
// restricción de unicidad.
const uniqueViolation = "23505"

type CallEventRepoPostgres struct {
	db *sql.DB
}

func NewCallEventRepoPostgres(db *sql.DB) *CallEventRepoPostgres {
	return &CallEventRepoPostgres{db: db}
}

// Verificación estática
var _ domain.CallEventRepository = (*CallEventRepoPostgres)(nil)

// Create inserta el evento. El índice único sobre call_id es el árbitro
// final de deduplicación: dos inserciones concurrentes con el mismo
// call_id dejan exactamente una fila.
func (r *CallEventRepoPostgres) Create(ctx context.Context, e *domain.CallEvent) error {
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO call_events (id, call_id, event_type, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.CallID, string(e.EventType), payloadBytes, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrCallEventExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *CallEventRepoPostgres) ExistsByCallID(ctx context.Context, callID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM call_events WHERE call_id=$1)`, callID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *CallEventRepoPostgres) GetByCallID(ctx context.Context, callID string) (*domain.CallEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, call_id, event_type, payload, created_at, updated_at
		 FROM call_events WHERE call_id=$1`, callID,
	)

	var e domain.CallEvent
	var idStr, eventType string
	var payloadBytes []byte
	if err := row.Scan(&idStr, &e.CallID, &eventType, &payloadBytes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCallEventNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid event id %q: %w", idStr, err)
	}
	e.ID = id
	e.EventType = domain.EventType(eventType)

	if err := json.Unmarshal(payloadBytes, &e.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &e, nil
}

// ------------------ Inicialización ------------------

func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS call_events (
		id UUID PRIMARY KEY,
		call_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}
