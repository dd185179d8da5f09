package handler

import (
	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FeePaymentHandler handles the payment journal endpoints
type FeePaymentHandler struct {
	BaseHandler
	payments *feeapp.PaymentService
}

// NewFeePaymentHandler creates a new FeePaymentHandler
func NewFeePaymentHandler(payments *feeapp.PaymentService) *FeePaymentHandler {
	return &FeePaymentHandler{payments: payments}
}

// Create godoc
// @Summary      Record a journal row against an installment
// @Tags         fee-payments
// @Accept       json
// @Produce      json
// @Param        request body feeapp.FeePaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=feeapp.FeePaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-payments [post]
func (h *FeePaymentHandler) Create(c *gin.Context) {
	var req feeapp.FeePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.payments.CreateFeePayment(c.Request.Context(), principal(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get godoc
// @Summary      Get a journal row
// @Tags         fee-payments
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200 {object} dto.Response{data=feeapp.FeePaymentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-payments/{id} [get]
func (h *FeePaymentHandler) Get(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.payments.GetFeePayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List godoc
// @Summary      List journal rows
// @Description  Narrowed to one installment with student_fee_id
// @Tags         fee-payments
// @Produce      json
// @Param        student_fee_id query string false "Student fee ID"
// @Success      200 {object} dto.Response{data=[]feeapp.FeePaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-payments [get]
func (h *FeePaymentHandler) List(c *gin.Context) {
	var studentFeeID *uuid.UUID
	if raw := c.Query("student_fee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid student_fee_id: must be a UUID")
			return
		}
		studentFeeID = &id
	}
	list, err := h.payments.ListFeePayments(c.Request.Context(), studentFeeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, list, len(list))
}

// UpdateStatus godoc
// @Summary      Move a journal row to a new status
// @Tags         fee-payments
// @Param        id path string true "Payment ID"
// @Param        request body feeapp.UpdatePaymentStatusRequest true "Status"
// @Success      200 {object} dto.Response{data=feeapp.FeePaymentResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-payments/{id}/status [put]
func (h *FeePaymentHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req feeapp.UpdatePaymentStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.payments.UpdateFeePaymentStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
