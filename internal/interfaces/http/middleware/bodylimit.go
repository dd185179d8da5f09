package middleware

import (
	"net/http"

	"github.com/erp/schoolfees/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// WebhookMaxBodySize caps gateway notifications, which are read whole for signing
const WebhookMaxBodySize int64 = 64 << 10

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.Set(ErrorCodeKey, dto.ErrCodePayloadTooLarge)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodePayloadTooLarge,
				"Request body exceeds maximum allowed size",
				c.GetString(RequestIDKey),
			))
			return
		}

		// Wrap the body with a limited reader for chunked requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
