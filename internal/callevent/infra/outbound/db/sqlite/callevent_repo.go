package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/callflow/internal/callevent/domain"
)

// CallEventRepoSQLite es el almacén para despliegues locales y tests de
// integración. Misma restricción de unicidad sobre call_id que Postgres.
type CallEventRepoSQLite struct {
	db *sql.DB
}

func NewCallEventRepoSQLite(db *sql.DB) *CallEventRepoSQLite {
	return &CallEventRepoSQLite{db: db}
}

// Verificación estática
var _ domain.CallEventRepository = (*CallEventRepoSQLite)(nil)

func (r *CallEventRepoSQLite) Create(ctx context.Context, e *domain.CallEvent) error {
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO call_events (id, call_id, event_type, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.CallID, string(e.EventType), string(payloadBytes),
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		// modernc.org/sqlite no expone un tipo de error estable; el
		// mensaje de una violación de unicidad siempre lleva el nombre
		// de la restricción.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed") {
			return domain.ErrCallEventExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *CallEventRepoSQLite) ExistsByCallID(ctx context.Context, callID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM call_events WHERE call_id = ?`, callID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

func (r *CallEventRepoSQLite) GetByCallID(ctx context.Context, callID string) (*domain.CallEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, call_id, event_type, payload, created_at, updated_at
		 FROM call_events WHERE call_id = ?`, callID,
	)

	var e domain.CallEvent
	var idStr, eventType, payloadStr, createdAt, updatedAt string
	if err := row.Scan(&idStr, &e.CallID, &eventType, &payloadStr, &createdAt, &updatedAt); err != nil {
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

	if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &e, nil
}

// ------------------ Inicialización ------------------

func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS call_events (
		id TEXT PRIMARY KEY,
		call_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}
