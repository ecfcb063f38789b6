package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/callflow/internal/callevent/domain"
)

// CallEventAnalyticsRepo implementa CallEventAnalytics para ClickHouse.
// Es un log append-only: se escribe tras una persistencia exitosa y un
// fallo aquí nunca invalida el mensaje.
type CallEventAnalyticsRepo struct {
	db *sql.DB
}

// NewCallEventAnalyticsRepo es el constructor.
func NewCallEventAnalyticsRepo(addr string, dbName string) (*CallEventAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &CallEventAnalyticsRepo{db: conn}, nil
}

// Verificación estática
var _ domain.CallEventAnalytics = (*CallEventAnalyticsRepo)(nil)

// LogBatch inserta un lote de eventos. ClickHouse funciona mejor con
// inserciones en lotes; el consumidor puede agrupar antes de llamar.
func (r *CallEventAnalyticsRepo) LogBatch(ctx context.Context, events []*domain.CallEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO call_events_log (id, call_id, event_type, from_number, to_number, occurred_at, duration, event_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	eventTime := time.Now()
	for _, evt := range events {
		duration := sql.NullInt64{}
		if evt.Payload.Duration != nil {
			duration = sql.NullInt64{Int64: int64(*evt.Payload.Duration), Valid: true}
		}

		if _, err := stmt.ExecContext(
			ctx,
			evt.ID,
			evt.CallID,
			string(evt.EventType),
			evt.Payload.From,
			evt.Payload.To,
			evt.Payload.Timestamp,
			duration,
			eventTime,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for call event %s: %w", evt.CallID, err)
		}
	}

	return tx.Commit()
}
