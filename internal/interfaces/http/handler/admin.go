package handler

import (
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles operator maintenance endpoints
type AdminHandler struct {
	BaseHandler
	yearLevels fee.YearLevelNameCache
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(yearLevels fee.YearLevelNameCache) *AdminHandler {
	return &AdminHandler{yearLevels: yearLevels}
}

// InvalidateYearLevelsResponse confirms a cache flush
type InvalidateYearLevelsResponse struct {
	Invalidated bool `json:"invalidated"`
}

// InvalidateYearLevels godoc
// @Summary      Drop cached year-level names
// @Description  Next lookups go to the roster service
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=InvalidateYearLevelsResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/cache/year-levels/invalidate [post]
func (h *AdminHandler) InvalidateYearLevels(c *gin.Context) {
	if err := h.yearLevels.Invalidate(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.FromContext(c.Request.Context()).Info("Year-level cache invalidated",
		zap.String("request_id", getRequestID(c)),
	)
	h.Success(c, InvalidateYearLevelsResponse{Invalidated: true})
}
