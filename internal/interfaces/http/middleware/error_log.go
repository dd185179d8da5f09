package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorCodeKey is the gin context key handlers set with the API error code they answered
const ErrorCodeKey = "error_code"

const errorLogTimeout = 2 * time.Second

// ErrorLog persists every 5xx response to the error log. A failure to persist
// is logged and never changes the response.
func ErrorLog(repo shared.ErrorLogRepository, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError {
			return
		}

		entry := shared.ErrorLogEntry{
			OccurredAt: time.Now().UTC(),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: status,
			ErrorCode:  c.GetString(ErrorCodeKey),
			Message:    http.StatusText(status),
			RequestID:  c.GetString(RequestIDKey),
		}
		if last := c.Errors.Last(); last != nil {
			entry.Message = last.Error()
		}
		if p, ok := PrincipalFrom(c); ok {
			entry.UserID = p.UserIDPtr()
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), errorLogTimeout)
		defer cancel()
		if err := repo.Save(ctx, entry); err != nil {
			logger.Error("Failed to persist error log",
				zap.String("request_id", entry.RequestID),
				zap.String("path", entry.Path),
				zap.Error(err),
			)
		}
	}
}
