package models

import (
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrorLogModel records a server-side failure for later inspection.
type ErrorLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OccurredAt time.Time `gorm:"not null;index"`
	Method     string    `gorm:"type:varchar(10);not null"`
	Path       string    `gorm:"type:varchar(500);not null"`
	StatusCode int       `gorm:"not null"`
	ErrorCode  string    `gorm:"type:varchar(50)"`
	Message    string    `gorm:"type:text"`
	RequestID  string    `gorm:"type:varchar(64);index"`
	UserID     *int64
}

// TableName returns the table name for GORM
func (ErrorLogModel) TableName() string {
	return "error_logs"
}

// ErrorLogModelFrom builds the row for an entry
func ErrorLogModelFrom(e shared.ErrorLogEntry) *ErrorLogModel {
	return &ErrorLogModel{
		ID:         e.ID,
		OccurredAt: e.OccurredAt,
		Method:     e.Method,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		ErrorCode:  e.ErrorCode,
		Message:    e.Message,
		RequestID:  e.RequestID,
		UserID:     e.UserID,
	}
}

// ToEntry converts the row back to the domain entry
func (m *ErrorLogModel) ToEntry() shared.ErrorLogEntry {
	return shared.ErrorLogEntry{
		ID:         m.ID,
		OccurredAt: m.OccurredAt,
		Method:     m.Method,
		Path:       m.Path,
		StatusCode: m.StatusCode,
		ErrorCode:  m.ErrorCode,
		Message:    m.Message,
		RequestID:  m.RequestID,
		UserID:     m.UserID,
	}
}
