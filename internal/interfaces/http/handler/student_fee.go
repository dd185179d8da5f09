package handler

import (
	"time"

	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

// StudentFeeHandler handles the student fee ledger, payment and report endpoints
type StudentFeeHandler struct {
	BaseHandler
	fees     *feeapp.StudentFeeService
	payments *feeapp.PaymentService
	reports  *feeapp.ReportService
}

// NewStudentFeeHandler creates a new StudentFeeHandler
func NewStudentFeeHandler(fees *feeapp.StudentFeeService, payments *feeapp.PaymentService, reports *feeapp.ReportService) *StudentFeeHandler {
	return &StudentFeeHandler{fees: fees, payments: payments, reports: reports}
}

// CreateOrUpdate godoc
// @Summary      Create or update one installment, optionally recording a payment
// @Tags         student-fees
// @Accept       json
// @Produce      json
// @Param        request body feeapp.StudentFeeRequest true "Installment"
// @Success      201 {object} dto.Response{data=feeapp.StudentFeeResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees [post]
func (h *StudentFeeHandler) CreateOrUpdate(c *gin.Context) {
	var req feeapp.StudentFeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.fees.CreateOrUpdateStudentFee(c.Request.Context(), principal(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// SubmitFee godoc
// @Summary      Record payments for several installments
// @Description  Online submissions open a gateway order instead of crediting
// @Tags         student-fees
// @Param        request body feeapp.SubmitFeeRequest true "Fees"
// @Success      201 {object} dto.Response{data=feeapp.SubmitFeeResponse}
// @Security     BearerAuth
// @Router       /student-fees/submit_fee [post]
func (h *StudentFeeHandler) SubmitFee(c *gin.Context) {
	var req feeapp.SubmitFeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.fees.SubmitFee(c.Request.Context(), principal(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// InitiatePayment godoc
// @Summary      Open a gateway order for the selected fees
// @Tags         student-fees
// @Param        request body feeapp.InitiatePaymentRequest true "Fees"
// @Success      200 {object} dto.Response{data=feeapp.InitiatePaymentResponse}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/initiate_payment [post]
func (h *StudentFeeHandler) InitiatePayment(c *gin.Context) {
	var req feeapp.InitiatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.payments.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ConfirmPayment godoc
// @Summary      Credit a verified gateway payment
// @Tags         student-fees
// @Param        request body feeapp.ConfirmPaymentRequest true "Confirmation"
// @Success      201 {object} dto.Response{data=feeapp.ConfirmPaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/confirm_payment [post]
func (h *StudentFeeHandler) ConfirmPayment(c *gin.Context) {
	var req feeapp.ConfirmPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	resp, err := h.payments.ConfirmPayment(c.Request.Context(), principal(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Preview godoc
// @Summary      Preview a student's fees month by month
// @Description  Amounts are shown without the overdue penalty
// @Tags         student-fees
// @Produce      json
// @Param        student_year_id query int true "Student year ID"
// @Success      200 {object} dto.Response{data=[]feeapp.MonthPreview}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/fee_preview [get]
func (h *StudentFeeHandler) Preview(c *gin.Context) {
	studentYearID, ok := h.RequiredInt64Query(c, "student_year_id")
	if !ok {
		return
	}
	months, err := h.reports.PreviewFees(c.Request.Context(), studentYearID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, months, len(months))
}

// Overdue godoc
// @Summary      List overdue installments
// @Tags         student-fees
// @Produce      json
// @Param        student_year_id query int false "Student year ID"
// @Param        month query int false "Month (1-12)"
// @Param        school_year_id query int false "School year ID"
// @Success      200 {object} dto.Response{data=[]feeapp.OverdueFee}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/overdue_fees [get]
func (h *StudentFeeHandler) Overdue(c *gin.Context) {
	var q feeapp.OverdueQuery
	if !h.BindQuery(c, &q) {
		return
	}
	rows, err := h.reports.GetOverdueFees(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, rows, len(rows))
}

// Pending godoc
// @Summary      List unsettled installments of a school year
// @Tags         student-fees
// @Produce      json
// @Param        school_year_id query int true "School year ID"
// @Success      200 {object} dto.Response{data=[]feeapp.PendingFee}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/pending_fees [get]
func (h *StudentFeeHandler) Pending(c *gin.Context) {
	schoolYearID, ok := h.RequiredInt64Query(c, "school_year_id")
	if !ok {
		return
	}
	rows, err := h.reports.GetPendingFees(c.Request.Context(), schoolYearID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, rows, len(rows))
}

// History godoc
// @Summary      List a student's installments with their payments
// @Tags         student-fees
// @Produce      json
// @Param        student_year_id query int true "Student year ID"
// @Param        school_year_id query int true "School year ID"
// @Success      200 {object} dto.Response{data=[]feeapp.HistoryEntry}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/fee_history [get]
func (h *StudentFeeHandler) History(c *gin.Context) {
	studentYearID, ok := h.RequiredInt64Query(c, "student_year_id")
	if !ok {
		return
	}
	schoolYearID, ok := h.RequiredInt64Query(c, "school_year_id")
	if !ok {
		return
	}
	rows, err := h.reports.GetFeeHistory(c.Request.Context(), studentYearID, schoolYearID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, rows, len(rows))
}

// Unpaid godoc
// @Summary      Group every unsettled installment by student
// @Tags         student-fees
// @Produce      json
// @Success      200 {object} dto.Response{data=feeapp.UnpaidReport}
// @Security     BearerAuth
// @Router       /student-fees/student_unpaid_fees [get]
func (h *StudentFeeHandler) Unpaid(c *gin.Context) {
	report, err := h.reports.GetStudentUnpaidFees(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ExportUnpaid godoc
// @Summary      Download the unpaid report as a spreadsheet
// @Tags         student-fees
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200 {file} file
// @Security     BearerAuth
// @Router       /student-fees/student_unpaid_fees/export [get]
func (h *StudentFeeHandler) ExportUnpaid(c *gin.Context) {
	data, err := h.reports.ExportUnpaidFeesXLSX(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Attachment(c, xlsxContentType, "unpaid_fees_"+time.Now().Format("20060102")+".xlsx", data)
}

// ExportOverdue godoc
// @Summary      Download the overdue report as a spreadsheet
// @Tags         student-fees
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        student_year_id query int false "Student year ID"
// @Param        month query int false "Month (1-12)"
// @Param        school_year_id query int false "School year ID"
// @Success      200 {file} file
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/overdue_fees/export [get]
func (h *StudentFeeHandler) ExportOverdue(c *gin.Context) {
	var q feeapp.OverdueQuery
	if !h.BindQuery(c, &q) {
		return
	}
	data, err := h.reports.ExportOverdueFeesXLSX(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Attachment(c, xlsxContentType, "overdue_fees_"+time.Now().Format("20060102")+".xlsx", data)
}

// ReceiptPDF godoc
// @Summary      Download the receipt of one installment
// @Tags         student-fees
// @Produce      application/pdf
// @Param        id path string true "Student fee ID"
// @Success      200 {file} file
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /student-fees/{id}/receipt.pdf [get]
func (h *StudentFeeHandler) ReceiptPDF(c *gin.Context) {
	id, ok := h.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	data, err := h.reports.RenderReceiptPDF(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Attachment(c, pdfContentType, "receipt_"+id.String()+".pdf", data)
}
