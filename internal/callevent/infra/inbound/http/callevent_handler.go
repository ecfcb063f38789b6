package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/callflow/internal/callevent/application"
	"github.com/davicafu/callflow/internal/callevent/domain"
	sharedBus "github.com/davicafu/callflow/internal/shared/platform/bus"
	"github.com/davicafu/callflow/pkg/utils"
)

// CallEventHandler encapsula los endpoints HTTP de eventos de llamada.
type CallEventHandler struct {
	service *application.CallEventService
	log     *zap.Logger
}

func NewCallEventHandler(service *application.CallEventService, log *zap.Logger) *CallEventHandler {
	return &CallEventHandler{service: service, log: log}
}

// Receive endpoint POST /api/call-event
//
// 200 {"status":"queued"} cuando el evento queda admitido; la escritura
// en el almacén todavía no está confirmada en ese momento.
func (h *CallEventHandler) Receive(c *gin.Context) {
	var raw application.RawCallEventSubmission
	if err := c.ShouldBindJSON(&raw); err != nil {
		utils.SendBadRequest(c, "invalid JSON body")
		return
	}

	verrs, err := h.service.Receive(c.Request.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQueueUnavailable):
			// Nunca responder "queued" si el publish no se confirmó: el
			// caller necesita saber que debe reintentar.
			utils.SendServiceUnavailable(c, "event could not be queued, retry later")
		case errors.Is(err, sharedBus.ErrNoHandler):
			h.log.Error("dispatch failed", zap.Error(err))
			utils.SendInternalServerError(c, "internal error")
		default:
			// El detalle va al log, no al caller.
			h.log.Error("call event handling failed", zap.Error(err))
			utils.SendInternalServerError(c, "internal error")
		}
		return
	}

	if verrs.HasErrors() {
		utils.SendValidationErrors(c, verrs)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
