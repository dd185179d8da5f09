package handler

import (
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorLogHandler gives operators read access to recorded server failures
type ErrorLogHandler struct {
	BaseHandler
	logs shared.ErrorLogReader
}

// NewErrorLogHandler creates a new ErrorLogHandler
func NewErrorLogHandler(logs shared.ErrorLogReader) *ErrorLogHandler {
	return &ErrorLogHandler{logs: logs}
}

// ErrorLogQuery pages through the error log
type ErrorLogQuery struct {
	Page       int `form:"page" binding:"omitempty,min=1"`
	PageSize   int `form:"page_size" binding:"omitempty,min=1,max=100"`
	StatusCode int `form:"status_code" binding:"omitempty,min=500,max=599"`
}

// ErrorLogResponse is one recorded failure
type ErrorLogResponse struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Message    string    `json:"message"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     *int64    `json:"user_id,omitempty"`
}

func toErrorLogResponse(e shared.ErrorLogEntry) ErrorLogResponse {
	return ErrorLogResponse{
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

// List godoc
// @Summary      List recorded server failures
// @Description  Newest first; meta.total counts every matching entry
// @Tags         admin
// @Produce      json
// @Param        page query int false "Page (from 1)"
// @Param        page_size query int false "Page size (max 100)"
// @Param        status_code query int false "Only this 5xx status"
// @Success      200 {object} dto.Response{data=[]ErrorLogResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/error-logs [get]
func (h *ErrorLogHandler) List(c *gin.Context) {
	var q ErrorLogQuery
	if !h.BindQuery(c, &q) {
		return
	}
	entries, total, err := h.logs.FindAll(c.Request.Context(), shared.ErrorLogFilter{
		StatusCode: q.StatusCode,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ErrorLogResponse, len(entries))
	for i, e := range entries {
		out[i] = toErrorLogResponse(e)
	}
	h.SuccessList(c, out, int(total))
}

// Get godoc
// @Summary      Get one recorded server failure
// @Tags         admin
// @Produce      json
// @Param        id path string true "Error log ID"
// @Success      200 {object} dto.Response{data=ErrorLogResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/error-logs/{id} [get]
func (h *ErrorLogHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.logs.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toErrorLogResponse(*entry))
}
