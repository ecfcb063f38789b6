package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
)

// CallEventService es la superficie que consume el transporte: valida y
// despacha. El transporte entrega un registro crudo y recibe o bien el
// conjunto de errores de validación o bien la confirmación de encolado;
// nunca sabe qué handler hace el trabajo.
type CallEventService struct {
	validator *Validator
	bus       *sharedBus.CommandBus
	log       *zap.Logger
}

func NewCallEventService(validator *Validator, bus *sharedBus.CommandBus, log *zap.Logger) *CallEventService {
	return &CallEventService{
		validator: validator,
		bus:       bus,
		log:       log,
	}
}

// Receive admite un evento: validación síncrona y despacho del comando.
// Devuelve el conjunto de errores de validación cuando el registro es
// inválido; cualquier otro error viene del despacho/encolado.
func (s *CallEventService) Receive(ctx context.Context, raw RawCallEventSubmission) (domain.ValidationErrors, error) {
	cmd, verrs := s.validator.Validate(ctx, raw)
	if verrs.HasErrors() {
		return verrs, nil
	}

	if err := s.bus.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}
	return nil, nil
}
