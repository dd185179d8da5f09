package handler

import (
	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/gin-gonic/gin"
)

// DiscountHandler handles applied fee discount endpoints
type DiscountHandler struct {
	BaseHandler
	discounts *feeapp.DiscountService
}

// NewDiscountHandler creates a new DiscountHandler
func NewDiscountHandler(discounts *feeapp.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// Apply godoc
// @Summary      Apply a discount to a student's fee structure
// @Tags         discounts
// @Accept       json
// @Produce      json
// @Param        request body feeapp.ApplyDiscountRequest true "Discount"
// @Success      201 {object} dto.Response{data=feeapp.DiscountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /AppliedFeeDiscount/create [post]
func (h *DiscountHandler) Apply(c *gin.Context) {
	var req feeapp.ApplyDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.discounts.ApplyDiscount(c.Request.Context(), principal(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Update godoc
// @Summary      Re-price an applied discount
// @Tags         discounts
// @Param        id path string true "Discount ID"
// @Param        request body feeapp.UpdateDiscountRequest true "Discount"
// @Success      200 {object} dto.Response{data=feeapp.DiscountResponse}
// @Security     BearerAuth
// @Router       /AppliedFeeDiscount/update/{id} [put]
func (h *DiscountHandler) Update(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req feeapp.UpdateDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.discounts.UpdateDiscount(c.Request.Context(), principal(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List godoc
// @Summary      List applied discounts
// @Description  With student_year_id the data is a StudentDiscountsResponse holding the student's applicable fees and approved discounts
// @Tags         discounts
// @Produce      json
// @Param        student_year_id query int false "Student year ID"
// @Success      200 {object} dto.Response{data=[]feeapp.DiscountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /AppliedFeeDiscount [get]
func (h *DiscountHandler) List(c *gin.Context) {
	studentYearID, ok := h.OptionalInt64Query(c, "student_year_id")
	if !ok {
		return
	}
	if studentYearID != nil {
		resp, err := h.discounts.ListStudentDiscounts(c.Request.Context(), *studentYearID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, resp)
		return
	}

	list, err := h.discounts.ListDiscounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, list, len(list))
}

// Delete godoc
// @Summary      Delete an applied discount
// @Description  Fails with 409 once the discount has been folded into a student fee
// @Tags         discounts
// @Param        id path string true "Discount ID"
// @Success      204
// @Security     BearerAuth
// @Router       /AppliedFeeDiscount/delete/{id} [delete]
func (h *DiscountHandler) Delete(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.discounts.DeleteDiscount(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
