package application

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedCache "github.com/davicafu/callflow/internal/shared/platform/cache"
)

// Validator convierte una RawCallEventSubmission en un comando tipado.
// Evalúa todas las reglas sin cortar en el primer fallo: el caller debe
// ver el conjunto completo de errores en una sola vuelta.
type Validator struct {
	repo    domain.CallEventRepository
	cache   sharedCache.Cache // puede ser nil
	timeout time.Duration
	log     *zap.Logger
}

func NewValidator(repo domain.CallEventRepository, cache sharedCache.Cache, timeout time.Duration, log *zap.Logger) *Validator {
	return &Validator{
		repo:    repo,
		cache:   cache,
		timeout: timeout,
		log:     log,
	}
}

func (v *Validator) Validate(ctx context.Context, raw RawCallEventSubmission) (*ReceiveCallEventCommand, domain.ValidationErrors) {
	errs := domain.ValidationErrors{}

	callID := requireString(raw, "call_id", errs)
	from := requireString(raw, "from", errs)
	to := requireString(raw, "to", errs)

	var eventType domain.EventType
	if s := requireString(raw, "event_type", errs); s != "" {
		t, err := domain.ParseEventType(s)
		if err != nil {
			errs.Add("event_type", fmt.Sprintf("is not a valid event type: %q", s))
		} else {
			eventType = t
		}
	}

	timestamp := requireString(raw, "timestamp", errs)
	if timestamp != "" {
		if _, err := time.Parse(domain.TimestampLayout, timestamp); err != nil {
			errs.Add("timestamp", "must match format YYYY-MM-DD HH:MM")
		}
	}

	// Campos extra según la política del tipo de evento. Para el resto de
	// tipos, duration se ignora aunque venga en el request.
	var duration *int
	if eventType != "" {
		for _, field := range domain.AdditionalRequiredFields(eventType) {
			if field == "duration" {
				duration = requireDuration(raw, eventType, errs)
				continue
			}
			if val, ok := raw[field]; !ok || val == nil {
				errs.Add(field, fmt.Sprintf("is required for %s events", eventType))
			}
		}
	}

	if callID != "" {
		v.checkUnique(ctx, callID, errs)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return &ReceiveCallEventCommand{
		CallID:    callID,
		From:      from,
		To:        to,
		EventType: eventType,
		Timestamp: timestamp,
		Duration:  duration,
	}, nil
}

// checkUnique es el pre-chequeo de unicidad de la admisión: primero el
// cache de call_id vistos, después una lectura acotada al almacén. El
// chequeo autoritativo sigue siendo la restricción del almacén, así que
// una lectura degradada no se convierte en error para el cliente.
func (v *Validator) checkUnique(ctx context.Context, callID string, errs domain.ValidationErrors) {
	ctxCheck, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if v.cache != nil {
		var seen bool
		if hit, err := v.cache.Get(ctxCheck, domain.SeenCacheKey(callID), &seen); err == nil && hit && seen {
			errs.Add("call_id", "has already been taken")
			return
		}
	}

	exists, err := v.repo.ExistsByCallID(ctxCheck, callID)
	if err != nil {
		v.log.Warn("⚠️ uniqueness pre-check unavailable",
			zap.String("call_id", callID),
			zap.Error(err),
		)
		return
	}
	if exists {
		errs.Add("call_id", "has already been taken")
	}
}

// ---------------- Extracción de campos ----------------

func requireString(raw RawCallEventSubmission, name string, errs domain.ValidationErrors) string {
	val, present := raw[name]
	if !present || val == nil {
		errs.Add(name, "is required")
		return ""
	}
	s, ok := val.(string)
	if !ok {
		errs.Add(name, "must be a string")
		return ""
	}
	if strings.TrimSpace(s) == "" {
		errs.Add(name, "is required")
		return ""
	}
	return s
}

// requireDuration exige un entero >= 0. Cero es válido y distinto de
// ausente; null cuenta como ausente.
func requireDuration(raw RawCallEventSubmission, eventType domain.EventType, errs domain.ValidationErrors) *int {
	val, present := raw["duration"]
	if !present || val == nil {
		errs.Add("duration", fmt.Sprintf("is required for %s events", eventType))
		return nil
	}

	// encoding/json decodifica todo número JSON como float64; un int
	// puede llegar cuando el registro se construye en proceso.
	var d int
	switch f := val.(type) {
	case float64:
		if f != math.Trunc(f) {
			errs.Add("duration", "must be an integer")
			return nil
		}
		d = int(f)
	case int:
		d = f
	default:
		errs.Add("duration", "must be an integer")
		return nil
	}

	if d < 0 {
		errs.Add("duration", "must be greater than or equal to 0")
		return nil
	}
	return &d
}
