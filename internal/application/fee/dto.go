package fee

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date carried as "2006-01-02" on the wire
type Date struct {
	time.Time
}

// UnmarshalJSON accepts "2006-01-02", an RFC 3339 timestamp, or null
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
		}
	}
	d.Time = t
	return nil
}

// MarshalJSON renders the date as "2006-01-02"
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// =============================================================================
// Catalog
// =============================================================================

// MasterFeeRequest creates or updates a master fee
type MasterFeeRequest struct {
	PaymentStructure string `json:"payment_structure" binding:"required,max=20"`
}

// MasterFeeResponse represents a master fee in API responses
type MasterFeeResponse struct {
	ID               uuid.UUID `json:"id"`
	PaymentStructure string    `json:"payment_structure"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int       `json:"version"`
}

// FeeStructureRequest creates or updates a fee structure
type FeeStructureRequest struct {
	MasterFeeID  uuid.UUID       `json:"master_fee_id" binding:"required"`
	FeeType      string          `json:"fee_type" binding:"required,max=50"`
	FeeAmount    decimal.Decimal `json:"fee_amount"`
	YearLevelIDs []int64         `json:"year_level_ids" binding:"required,min=1,dive,gt=0"`
}

// FeeStructureResponse represents a fee structure in API responses
type FeeStructureResponse struct {
	ID           uuid.UUID `json:"id"`
	MasterFeeID  uuid.UUID `json:"master_fee_id"`
	FeeType      string    `json:"fee_type"`
	FeeAmount    string    `json:"fee_amount"`
	YearLevelIDs []int64   `json:"year_level_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// =============================================================================
// Discounts
// =============================================================================

// ApplyDiscountRequest approves a percentage discount for a student on a fee structure
type ApplyDiscountRequest struct {
	StudentYearID   int64           `json:"student_year_id" binding:"required,gt=0"`
	FeeStructureID  uuid.UUID       `json:"fee_structure_id" binding:"required"`
	DiscountName    string          `json:"discount_name" binding:"required,max=100"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// UpdateDiscountRequest re-prices an existing discount
type UpdateDiscountRequest struct {
	DiscountName    string          `json:"discount_name" binding:"required,max=100"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// DiscountResponse represents an applied discount with its percentage of the fee
type DiscountResponse struct {
	ID              uuid.UUID `json:"id"`
	StudentYearID   int64     `json:"student_year_id"`
	FeeStructureID  uuid.UUID `json:"fee_structure_id"`
	FeeType         string    `json:"fee_type,omitempty"`
	DiscountName    string    `json:"discount_name"`
	DiscountAmount  string    `json:"discount_amount"`
	FeeAmount       string    `json:"fee_amount"`
	DiscountPercent string    `json:"discount_percent"`
	ApprovedAt      time.Time `json:"approved_at"`
	ApprovedBy      *int64    `json:"approved_by"`
}

// StudentDiscountsResponse lists a student's applicable fees and approved discounts
type StudentDiscountsResponse struct {
	AvailableFees    []FeeStructureResponse `json:"available_fees"`
	AppliedDiscounts []DiscountResponse     `json:"applied_discounts"`
}

// =============================================================================
// Student fee ledger
// =============================================================================

// StudentFeeRequest creates or updates one installment, optionally recording a payment
type StudentFeeRequest struct {
	StudentYearID  int64           `json:"student_year_id" binding:"required,gt=0"`
	FeeStructureID uuid.UUID       `json:"fee_structure_id" binding:"required"`
	Month          *int            `json:"month" binding:"omitempty,fee_month"`
	SchoolYearID   int64           `json:"school_year_id" binding:"required,gt=0"`
	DueDate        *Date           `json:"due_date"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PaymentMethod  string          `json:"payment_method" binding:"omitempty,payment_mode"`
	ChequeNumber   string          `json:"cheque_number" binding:"max=50"`
}

// FeeLineItem is one fee selected for payment
type FeeLineItem struct {
	FeeID   uuid.UUID       `json:"fee_id" binding:"required"`
	Month   *int            `json:"month" binding:"omitempty,fee_month"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate *Date           `json:"due_date"`
}

// SubmitFeeRequest records payments for several installments at once
type SubmitFeeRequest struct {
	StudentYearID int64         `json:"student_year_id" binding:"required,gt=0"`
	SchoolYearID  int64         `json:"school_year_id" binding:"required,gt=0"`
	PaymentMethod string        `json:"payment_method" binding:"omitempty,payment_mode"`
	ChequeNumber  string        `json:"cheque_number" binding:"max=50"`
	Fees          []FeeLineItem `json:"fees" binding:"required,min=1,dive"`
}

// InitiatePaymentRequest opens a gateway order for the selected fees
type InitiatePaymentRequest struct {
	StudentYearID int64         `json:"student_year_id" binding:"required,gt=0"`
	SchoolYearID  int64         `json:"school_year_id" binding:"omitempty,gt=0"`
	Fees          []FeeLineItem `json:"fees" binding:"required,min=1,dive"`
}

// ConfirmPaymentRequest credits a verified gateway payment to the selected fees
type ConfirmPaymentRequest struct {
	StudentYearID     int64         `json:"student_year_id" binding:"required,gt=0"`
	SelectedFees      []FeeLineItem `json:"selected_fees" binding:"required,min=1,dive"`
	PaymentMode       string        `json:"payment_mode" binding:"required,payment_mode"`
	ReceivedBy        *int64        `json:"received_by" binding:"omitempty,gt=0"`
	RazorpayOrderID   string        `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string        `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string        `json:"razorpay_signature" binding:"required"`
}

// StudentFeeResponse represents one installment in API responses
type StudentFeeResponse struct {
	ID              uuid.UUID `json:"id"`
	StudentYearID   int64     `json:"student_year_id"`
	FeeStructureID  uuid.UUID `json:"fee_structure_id"`
	FeeType         string    `json:"fee_type"`
	Month           *int      `json:"month"`
	SchoolYearID    int64     `json:"school_year_id"`
	DueDate         Date      `json:"due_date"`
	OriginalAmount  string    `json:"original_amount"`
	PaidAmount      string    `json:"paid_amount"`
	DueAmount       string    `json:"due_amount"`
	PenaltyAmount   string    `json:"penalty_amount"`
	DiscountAmount  string    `json:"discount_amount"`
	AppliedDiscount bool      `json:"applied_discount"`
	Status          string    `json:"status"`
	ReceiptNumber   string    `json:"receipt_number"`
	Version         int       `json:"version"`
}

// FeeSummary is the short form of an installment returned by submit and initiate
type FeeSummary struct {
	ID        uuid.UUID `json:"id"`
	FeeType   string    `json:"fee_type"`
	Status    string    `json:"status"`
	DueAmount string    `json:"due_amount"`
	Month     *int      `json:"month"`
}

// SubmitFeeResponse is returned by SubmitFee. Online submissions carry the
// gateway order; offline ones carry the credited total.
type SubmitFeeResponse struct {
	Message         string       `json:"message"`
	TotalAmountPaid string       `json:"total_amount_paid,omitempty"`
	PaymentMode     string       `json:"payment_mode,omitempty"`
	Data            []FeeSummary `json:"data,omitempty"`
	RazorpayOrderID string       `json:"razorpay_order_id,omitempty"`
	ReceiptNumber   string       `json:"receipt_number,omitempty"`
	Fees            []FeeSummary `json:"fees,omitempty"`
}

// InitiatePaymentResponse carries the gateway order the client pays against
type InitiatePaymentResponse struct {
	Message         string       `json:"message"`
	RazorpayOrderID string       `json:"razorpay_order_id"`
	Amount          string       `json:"amount"`
	Currency        string       `json:"currency"`
	ReceiptNumber   string       `json:"receipt_number"`
	Fees            []FeeSummary `json:"fees"`
}

// ConfirmedPayment is one credited line of a confirmation
type ConfirmedPayment struct {
	ID            uuid.UUID `json:"id"`
	FeeType       string    `json:"fee_type"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Month         *int      `json:"month"`
	ReceiptNumber string    `json:"receipt_number"`
	Replayed      bool      `json:"replayed,omitempty"`
}

// ConfirmPaymentResponse is returned by ConfirmPayment
type ConfirmPaymentResponse struct {
	Message  string             `json:"message"`
	Payments []ConfirmedPayment `json:"payments"`
}

// =============================================================================
// Payment journal
// =============================================================================

// FeePaymentRequest records a journal row directly
type FeePaymentRequest struct {
	StudentFeeID      uuid.UUID       `json:"student_fee_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethod     string          `json:"payment_method" binding:"required,payment_mode"`
	Status            string          `json:"status" binding:"omitempty,oneof=PENDING SUCCESS FAILED REFUNDED pending success failed refunded"`
	Notes             string          `json:"notes" binding:"max=500"`
	ChequeNumber      string          `json:"cheque_number" binding:"max=50"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpaySignature string          `json:"razorpay_signature"`
}

// UpdatePaymentStatusRequest moves a journal row to a new status
type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING SUCCESS FAILED REFUNDED pending success failed refunded"`
	Notes  string `json:"notes" binding:"max=500"`
}

// FeePaymentResponse represents a journal row in API responses
type FeePaymentResponse struct {
	ID                uuid.UUID `json:"id"`
	StudentFeeID      uuid.UUID `json:"student_fee_id"`
	Amount            string    `json:"amount"`
	PaymentMethod     string    `json:"payment_method"`
	Status            string    `json:"status"`
	PaymentDate       time.Time `json:"payment_date"`
	ReceivedBy        *int64    `json:"received_by"`
	Notes             string    `json:"notes,omitempty"`
	ChequeNumber      *string   `json:"cheque_number"`
	RazorpayOrderID   string    `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string    `json:"razorpay_payment_id,omitempty"`
}

// WebhookResult reports what a gateway notification changed
type WebhookResult struct {
	Event            string `json:"event"`
	AlreadyProcessed bool   `json:"already_processed"`
	UpdatedPayments  int    `json:"updated_payments"`
}

// =============================================================================
// Reports
// =============================================================================

// FeeBrief is one fee of a preview month
type FeeBrief struct {
	FeeID           uuid.UUID `json:"fee_id"`
	FeeType         string    `json:"fee_type"`
	OriginalAmount  string    `json:"original_amount"`
	PaidAmount      string    `json:"paid_amount"`
	Status          string    `json:"status"`
	AppliedDiscount string    `json:"applied_discount"`
}

// MonthPreview groups the fees due in one month
type MonthPreview struct {
	Month string     `json:"month"`
	Fees  []FeeBrief `json:"fees"`
}

// OverdueFee is one row of the overdue report
type OverdueFee struct {
	FeeID          uuid.UUID `json:"fee_id"`
	StudentYearID  int64     `json:"student_year_id"`
	FeeType        string    `json:"fee_type"`
	OriginalAmount string    `json:"original_amount"`
	PaidAmount     string    `json:"paid_amount"`
	DueAmount      string    `json:"due_amount"`
	Status         string    `json:"status"`
	DueDate        Date      `json:"due_date"`
	StudentName    string    `json:"student_name"`
	ScholarNumber  string    `json:"scholar_number"`
	ClassName      string    `json:"class_name"`
	Month          string    `json:"month"`
}

// OverdueQuery filters the overdue report
type OverdueQuery struct {
	StudentYearID *int64 `form:"student_year_id" binding:"omitempty,gt=0"`
	Month         *int   `form:"month" binding:"omitempty,fee_month"`
	SchoolYearID  *int64 `form:"school_year_id" binding:"omitempty,gt=0"`
}

// PendingFee is one row of the pending report
type PendingFee struct {
	FeeID          uuid.UUID `json:"fee_id"`
	StudentYearID  int64     `json:"student_year_id"`
	FeeType        string    `json:"fee_type"`
	Month          string    `json:"month"`
	OriginalAmount string    `json:"original_amount"`
	PaidAmount     string    `json:"paid_amount"`
	DueAmount      string    `json:"due_amount"`
	Status         string    `json:"status"`
}

// HistoryPayment is one journal row in the fee history
type HistoryPayment struct {
	ID     uuid.UUID `json:"id"`
	Amount string    `json:"amount"`
	Method string    `json:"method"`
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
}

// HistoryEntry is one installment with its payments
type HistoryEntry struct {
	FeeID          uuid.UUID        `json:"fee_id"`
	FeeType        string           `json:"fee_type"`
	Month          string           `json:"month"`
	OriginalAmount string           `json:"original_amount"`
	PaidAmount     string           `json:"paid_amount"`
	DueAmount      string           `json:"due_amount"`
	PenaltyAmount  string           `json:"penalty_amount"`
	Status         string           `json:"status"`
	ReceiptNumber  string           `json:"receipt_number"`
	Payments       []HistoryPayment `json:"payments"`
}

// UnpaidStudent identifies the student of an unpaid group
type UnpaidStudent struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ScholarNumber string `json:"scholar_number"`
}

// UnpaidFee is one unsettled installment
type UnpaidFee struct {
	ID             uuid.UUID `json:"id"`
	FeeType        string    `json:"fee_type"`
	OriginalAmount string    `json:"original_amount"`
}

// YearLevelFees groups unpaid fees by year-level name
type YearLevelFees struct {
	YearLevel string      `json:"year_level"`
	Fees      []UnpaidFee `json:"fees"`
}

// UnpaidGroup is one student's unsettled installments
type UnpaidGroup struct {
	Student              UnpaidStudent   `json:"student"`
	Month                string          `json:"month"`
	SchoolYear           string          `json:"school_year"`
	YearLevelFeesGrouped []YearLevelFees `json:"year_level_fees_grouped"`
	TotalAmount          string          `json:"total_amount"`
	PaidAmount           string          `json:"paid_amount"`
	DueAmount            string          `json:"due_amount"`
}

// UnpaidReport wraps the unpaid groups
type UnpaidReport struct {
	UnpaidFees []UnpaidGroup `json:"unpaid_fees"`
}

// =============================================================================
// Mappers
// =============================================================================

func money(d decimal.Decimal) string {
	return valueobject.Format(d)
}

// monthName renders 1..12 as JANUARY..DECEMBER, or fallback when month is nil
func monthName(month *int, fallback string) string {
	if month == nil || *month < 1 || *month > 12 {
		return fallback
	}
	return strings.ToUpper(time.Month(*month).String())
}

// ToMasterFeeResponse converts a domain MasterFee to a response
func ToMasterFeeResponse(m *fee.MasterFee) MasterFeeResponse {
	return MasterFeeResponse{
		ID:               m.ID,
		PaymentStructure: m.PaymentStructure.String(),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Version:          m.Version,
	}
}

// ToFeeStructureResponse converts a domain FeeStructure to a response
func ToFeeStructureResponse(f *fee.FeeStructure) FeeStructureResponse {
	return FeeStructureResponse{
		ID:           f.ID,
		MasterFeeID:  f.MasterFeeID,
		FeeType:      f.FeeType.String(),
		FeeAmount:    money(f.FeeAmount),
		YearLevelIDs: f.YearLevelIDs,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
		Version:      f.Version,
	}
}

// ToDiscountResponse converts a discount and its structure to a response
func ToDiscountResponse(d *fee.AppliedFeeDiscount, structure *fee.FeeStructure) DiscountResponse {
	resp := DiscountResponse{
		ID:              d.ID,
		StudentYearID:   d.StudentYearID,
		FeeStructureID:  d.FeeStructureID,
		DiscountName:    d.DiscountName,
		DiscountAmount:  money(d.DiscountAmount),
		FeeAmount:       money(decimal.Zero),
		DiscountPercent: money(decimal.Zero),
		ApprovedAt:      d.ApprovedAt,
		ApprovedBy:      d.ApprovedBy,
	}
	if structure != nil {
		resp.FeeType = structure.FeeType.String()
		resp.FeeAmount = money(structure.FeeAmount)
		resp.DiscountPercent = money(d.Percent(structure.FeeAmount))
	}
	return resp
}

// ToStudentFeeResponse converts a domain StudentFee to a response
func ToStudentFeeResponse(s *fee.StudentFee) StudentFeeResponse {
	return StudentFeeResponse{
		ID:              s.ID,
		StudentYearID:   s.StudentYearID,
		FeeStructureID:  s.FeeStructureID,
		FeeType:         s.FeeType.String(),
		Month:           s.Month,
		SchoolYearID:    s.SchoolYearID,
		DueDate:         Date{s.DueDate},
		OriginalAmount:  money(s.OriginalAmount),
		PaidAmount:      money(s.PaidAmount),
		DueAmount:       money(s.DueAmount),
		PenaltyAmount:   money(s.PenaltyAmount),
		DiscountAmount:  money(s.DiscountAmount),
		AppliedDiscount: s.AppliedDiscount,
		Status:          s.Status.String(),
		ReceiptNumber:   s.ReceiptNumber,
		Version:         s.Version,
	}
}

func toFeeSummary(s *fee.StudentFee) FeeSummary {
	return FeeSummary{
		ID:        s.ID,
		FeeType:   s.FeeType.String(),
		Status:    s.Status.String(),
		DueAmount: money(s.DueAmount),
		Month:     s.Month,
	}
}

// ToFeePaymentResponse converts a journal row to a response
func ToFeePaymentResponse(p *fee.FeePayment) FeePaymentResponse {
	return FeePaymentResponse{
		ID:                p.ID,
		StudentFeeID:      p.StudentFeeID,
		Amount:            money(p.Amount),
		PaymentMethod:     p.PaymentMethod.String(),
		Status:            p.Status.String(),
		PaymentDate:       p.PaymentDate,
		ReceivedBy:        p.ReceivedBy,
		Notes:             p.Notes,
		ChequeNumber:      p.ChequeNumber,
		RazorpayOrderID:   p.Gateway.OrderID,
		RazorpayPaymentID: p.Gateway.PaymentID,
	}
}
