package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SizeLimitConfig struct {
	MaxBodySize int64
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{MaxBodySize: 1 << 20}
}

// SizeLimit rejects oversized bodies up front and caps the reader for
// requests that do not declare a length.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Code:    http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("body size exceeds %d bytes", config.MaxBodySize),
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		}
		c.Next()
	}
}
