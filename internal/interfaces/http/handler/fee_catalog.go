package handler

import (
	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/gin-gonic/gin"
)

// FeeCatalogHandler handles master fee and fee structure endpoints
type FeeCatalogHandler struct {
	BaseHandler
	catalog *feeapp.CatalogService
}

// NewFeeCatalogHandler creates a new FeeCatalogHandler
func NewFeeCatalogHandler(catalog *feeapp.CatalogService) *FeeCatalogHandler {
	return &FeeCatalogHandler{catalog: catalog}
}

// CreateMasterFee godoc
// @Summary      Create a master fee
// @Tags         master-fees
// @Accept       json
// @Produce      json
// @Param        request body feeapp.MasterFeeRequest true "Master fee"
// @Success      201 {object} dto.Response{data=feeapp.MasterFeeResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /master-fees/create [post]
func (h *FeeCatalogHandler) CreateMasterFee(c *gin.Context) {
	var req feeapp.MasterFeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.catalog.CreateMasterFee(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateMasterFee godoc
// @Summary      Update a master fee
// @Tags         master-fees
// @Param        id path string true "Master fee ID"
// @Param        request body feeapp.MasterFeeRequest true "Master fee"
// @Success      200 {object} dto.Response{data=feeapp.MasterFeeResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /master-fees/update/{id} [put]
func (h *FeeCatalogHandler) UpdateMasterFee(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req feeapp.MasterFeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.catalog.UpdateMasterFee(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetMasterFee godoc
// @Summary      Get a master fee
// @Tags         master-fees
// @Param        id path string true "Master fee ID"
// @Success      200 {object} dto.Response{data=feeapp.MasterFeeResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /master-fees/getById/{id} [get]
func (h *FeeCatalogHandler) GetMasterFee(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.catalog.GetMasterFee(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListMasterFees godoc
// @Summary      List master fees
// @Tags         master-fees
// @Success      200 {object} dto.Response{data=[]feeapp.MasterFeeResponse}
// @Security     BearerAuth
// @Router       /master-fees/getAll [get]
func (h *FeeCatalogHandler) ListMasterFees(c *gin.Context) {
	list, err := h.catalog.ListMasterFees(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, list, len(list))
}

// DeleteMasterFee godoc
// @Summary      Delete a master fee
// @Description  Fails with 409 while fee structures still reference it
// @Tags         master-fees
// @Param        id path string true "Master fee ID"
// @Success      204
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /master-fees/delete/{id} [delete]
func (h *FeeCatalogHandler) DeleteMasterFee(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteMasterFee(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CreateFeeStructure godoc
// @Summary      Create a fee structure
// @Tags         fee-structures
// @Accept       json
// @Produce      json
// @Param        request body feeapp.FeeStructureRequest true "Fee structure"
// @Success      201 {object} dto.Response{data=feeapp.FeeStructureResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-structures/create [post]
func (h *FeeCatalogHandler) CreateFeeStructure(c *gin.Context) {
	var req feeapp.FeeStructureRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.catalog.CreateFeeStructure(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateFeeStructure godoc
// @Summary      Update a fee structure
// @Tags         fee-structures
// @Param        id path string true "Fee structure ID"
// @Param        request body feeapp.FeeStructureRequest true "Fee structure"
// @Success      200 {object} dto.Response{data=feeapp.FeeStructureResponse}
// @Security     BearerAuth
// @Router       /fee-structures/update/{id} [put]
func (h *FeeCatalogHandler) UpdateFeeStructure(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req feeapp.FeeStructureRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.catalog.UpdateFeeStructure(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetFeeStructure godoc
// @Summary      Get a fee structure
// @Tags         fee-structures
// @Param        id path string true "Fee structure ID"
// @Success      200 {object} dto.Response{data=feeapp.FeeStructureResponse}
// @Security     BearerAuth
// @Router       /fee-structures/getById/{id} [get]
func (h *FeeCatalogHandler) GetFeeStructure(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.catalog.GetFeeStructure(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListFeeStructures godoc
// @Summary      List fee structures
// @Tags         fee-structures
// @Param        year_level_id query int false "Only structures applying to this year level"
// @Success      200 {object} dto.Response{data=[]feeapp.FeeStructureResponse}
// @Security     BearerAuth
// @Router       /fee-structures/getAll [get]
func (h *FeeCatalogHandler) ListFeeStructures(c *gin.Context) {
	yearLevelID, ok := h.OptionalInt64Query(c, "year_level_id")
	if !ok {
		return
	}
	list, err := h.catalog.ListFeeStructures(c.Request.Context(), yearLevelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, list, len(list))
}

// DeleteFeeStructure godoc
// @Summary      Delete a fee structure
// @Description  Fails with 409 while discounts or student fees reference it
// @Tags         fee-structures
// @Param        id path string true "Fee structure ID"
// @Success      204
// @Security     BearerAuth
// @Router       /fee-structures/delete/{id} [delete]
func (h *FeeCatalogHandler) DeleteFeeStructure(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteFeeStructure(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
