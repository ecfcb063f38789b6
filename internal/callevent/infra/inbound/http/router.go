package http

import "github.com/gin-gonic/gin"

// RegisterCallEventRoutes monta el endpoint de ingesta detrás del
// middleware de autenticación.
func RegisterCallEventRoutes(r *gin.Engine, handler *CallEventHandler, authMiddleware gin.HandlerFunc) {
	api := r.Group("/api", authMiddleware)
	{
		api.POST("/call-event", handler.Receive)
	}
}
