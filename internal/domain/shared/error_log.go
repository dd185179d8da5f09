package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ErrorLogEntry records a server-side failure surfaced to a caller.
type ErrorLogEntry struct {
	ID         uuid.UUID
	OccurredAt time.Time
	Method     string
	Path       string
	StatusCode int
	ErrorCode  string
	Message    string
	RequestID  string
	UserID     *int64
}

// ErrorLogRepository persists ErrorLogEntry rows
type ErrorLogRepository interface {
	Save(ctx context.Context, entry ErrorLogEntry) error
}

// ErrorLogFilter selects a page of error log entries, newest first.
// A zero StatusCode matches every status.
type ErrorLogFilter struct {
	StatusCode int
	Page       int
	PageSize   int
}

// Offset returns the number of rows skipped before the page
func (f ErrorLogFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ErrorLogReader gives operators read access to the error log
type ErrorLogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ErrorLogEntry, error)
	FindAll(ctx context.Context, filter ErrorLogFilter) ([]ErrorLogEntry, int64, error)
}
