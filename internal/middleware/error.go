package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/soyapp/soy-backend/pkg/errors"
)

// ErrorResponse is the body written for errors raised outside a handler's
// own response, such as panics, timeouts and errors attached with c.Error.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler logs errors attached to the context and, if the handler wrote
// nothing, renders the last one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		message := "Internal server error"
		var appErr *apperrors.AppError
		if errors.As(c.Errors.Last().Err, &appErr) {
			status = appErr.StatusCode()
			message = appErr.Message
		}

		c.JSON(status, ErrorResponse{Code: status, Message: message, TraceID: traceID})
	}
}
