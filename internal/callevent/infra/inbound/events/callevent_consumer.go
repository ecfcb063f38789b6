package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedUtils "github.com/davicafu/callflow/internal/shared/infra/utils"
	sharedCache "github.com/davicafu/callflow/internal/shared/platform/cache"
)

// CallEventConsumer procesa los mensajes entregados por la cola y los
// persiste exactamente una vez. La entrega es at-least-once: ante un
// duplicado el almacén devuelve ErrCallEventExists y aquí se trata como
// procesado con éxito (log-and-drop), nunca como reintento.
type CallEventConsumer struct {
	repo        domain.CallEventRepository
	analytics   domain.CallEventAnalytics // opcional
	cache       sharedCache.Cache         // opcional
	attempts    int
	backoff     time.Duration
	seenTTLSecs int
	log         *zap.Logger
}

func NewCallEventConsumer(
	repo domain.CallEventRepository,
	analytics domain.CallEventAnalytics,
	cache sharedCache.Cache,
	attempts int,
	backoff time.Duration,
	seenTTLSecs int,
	log *zap.Logger,
) *CallEventConsumer {
	return &CallEventConsumer{
		repo:        repo,
		analytics:   analytics,
		cache:       cache,
		attempts:    attempts,
		backoff:     backoff,
		seenTTLSecs: seenTTLSecs,
		log:         log,
	}
}

func (c *CallEventConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var msg domain.CallEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.log.Warn("Mensaje ilegible descartado", zap.String("key", key), zap.Error(err))
		return
	}
	if msg.CallID == "" {
		c.log.Warn("Mensaje sin call_id descartado", zap.String("key", key))
		return
	}

	now := time.Now().UTC()
	evt := &domain.CallEvent{
		ID:        uuid.New(),
		CallID:    msg.CallID,
		EventType: msg.EventType,
		Payload:   msg.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Los fallos transitorios del almacén se reintentan; un duplicado no,
	// porque reintentarlo no puede tener éxito jamás.
	duplicate := false
	err := sharedUtils.Retry(ctx, c.attempts, c.backoff, func() error {
		err := c.repo.Create(ctx, evt)
		if errors.Is(err, domain.ErrCallEventExists) {
			duplicate = true
			return nil
		}
		return err
	})
	if err != nil {
		// El broker reentregará el mensaje; ese es el camino de reintento.
		c.log.Error("No se pudo persistir el evento",
			zap.String("call_id", msg.CallID),
			zap.Error(err),
		)
		return
	}

	if duplicate {
		c.log.Info("Entrega duplicada ignorada", zap.String("call_id", msg.CallID))
		return
	}

	c.markSeen(msg.CallID)

	if c.analytics != nil {
		if err := c.analytics.LogBatch(ctx, []*domain.CallEvent{evt}); err != nil {
			c.log.Warn("⚠️ Analytics insert failed", zap.String("call_id", msg.CallID), zap.Error(err))
		}
	}

	c.log.Info("✅ Call event persisted",
		zap.String("call_id", msg.CallID),
		zap.String("event_type", string(msg.EventType)),
	)
}

// markSeen alimenta el cache del pre-chequeo de unicidad en background
// sin bloquear el procesado del mensaje.
func (c *CallEventConsumer) markSeen(callID string) {
	if c.cache == nil {
		return
	}
	go func() {
		ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = c.cache.Set(ctxCache, domain.SeenCacheKey(callID), true, c.seenTTLSecs)
	}()
}

// BackgroundConsumerChan consume del bus en memoria, para despliegues
// locales sin Kafka.
func BackgroundConsumerChan(ctx context.Context, ch <-chan []byte, consumer *CallEventConsumer) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				consumer.log.Info("CallEventConsumer stopped")
				return
			case payload := <-ch:
				consumer.HandleMessage(ctx, "", payload)
			}
		}
	}()
}
