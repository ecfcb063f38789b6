package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// callerCtxKey es la clave de contexto de gin con el caller autenticado.
const callerCtxKey = "caller"

// TokenMiddleware comprueba `Authorization: Bearer <token>` contra los
// tokens configurados. El core solo necesita la decisión booleana de
// "caller autenticado"; la emisión de identidades queda fuera de alcance.
func TokenMiddleware(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		caller, ok := tokens[token]
		if header == "" || token == "" || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Set(callerCtxKey, caller)
		c.Next()
	}
}

// Caller devuelve el nombre del caller autenticado del contexto.
func Caller(c *gin.Context) string {
	v, _ := c.Get(callerCtxKey)
	s, _ := v.(string)
	return s
}
