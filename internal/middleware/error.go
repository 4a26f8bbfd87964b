package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

// ErrorReporter receives server side failures. *monitoring.Monitor is one.
type ErrorReporter interface {
	CaptureError(ctx context.Context, name string, err error, fields map[string]interface{})
}

// ErrorHandler logs request errors, reports 5xx responses and writes an
// error envelope when a handler attached an error without responding.
func ErrorHandler(reporter ErrorReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !c.Writer.Written() && len(c.Errors) > 0 {
			status, message, details := httputil.ErrorResponse(c.Errors.Last().Err)
			c.JSON(status, httputil.Response{Status: httputil.StatusError, Message: message, Details: details})
		}

		requestID := c.GetString(ContextRequestID)
		status := c.Writer.Status()
		for _, e := range c.Errors {
			ev := log.Warn()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Int("status", status).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if status < http.StatusInternalServerError || reporter == nil {
			return
		}
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		} else {
			err = fmt.Errorf("%s %s returned %d", c.Request.Method, c.FullPath(), status)
		}
		// the request context may already be past its deadline
		reporter.CaptureError(context.WithoutCancel(c.Request.Context()), "http_server_error", err, map[string]interface{}{
			"request_id": requestID,
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     status,
		})
	}
}
