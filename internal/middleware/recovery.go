package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

// Recovery handles panics and logs them appropriately. The panic is
// attached to the context so ErrorHandler reports it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()

				log.Error().
					Interface("error", rec).
					Str("stack", string(stack)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("Request panic recovered")

				_ = c.Error(fmt.Errorf("panic: %v", rec)).SetMeta(string(stack))
				c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.Response{
					Status:  httputil.StatusError,
					Message: "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
