package fee

import (
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeStatus represents the settlement state of a student fee installment
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING" // Nothing paid yet
	FeeStatusPartial FeeStatus = "PARTIAL" // Something paid, balance outstanding
	FeeStatusPaid    FeeStatus = "PAID"    // Nothing outstanding
)

// IsValid checks if the status is a valid FeeStatus
func (s FeeStatus) IsValid() bool {
	switch s {
	case FeeStatusPending, FeeStatusPartial, FeeStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of FeeStatus
func (s FeeStatus) String() string {
	return string(s)
}

// DefaultTuitionPenalty is the fixed surcharge for an overdue tuition installment
var DefaultTuitionPenalty = decimal.NewFromInt(25)

// StudentFeeKey identifies one installment
type StudentFeeKey struct {
	StudentYearID  int64
	FeeStructureID uuid.UUID
	Month          *int
	SchoolYearID   int64
}

// StudentFee is one billing installment for a student-year, fee structure, month and school year.
//
// OriginalAmount is the gross fee amount. DiscountAmount is the approved discount
// folded into the record exactly once (AppliedDiscount gates it). PaidAmount is always
// re-derived from the SUCCESS rows of the payment journal.
type StudentFee struct {
	shared.BaseAggregateRoot
	StudentYearID   int64
	FeeStructureID  uuid.UUID
	FeeType         FeeType
	Month           *int
	SchoolYearID    int64
	DueDate         time.Time
	OriginalAmount  decimal.Decimal
	PaidAmount      decimal.Decimal
	DueAmount       decimal.Decimal
	PenaltyAmount   decimal.Decimal
	DiscountAmount  decimal.Decimal
	AppliedDiscount bool
	PenaltyApplied  bool
	Status          FeeStatus
	ReceiptNumber   string
}

// NewStudentFee creates a PENDING installment for the structure's full fee amount
func NewStudentFee(key StudentFeeKey, structure *FeeStructure, dueDate time.Time, receiptNumber string) (*StudentFee, error) {
	if key.StudentYearID <= 0 {
		return nil, shared.NewBadRequestError("studentYearId is required")
	}
	if key.Month != nil && (*key.Month < 1 || *key.Month > 12) {
		return nil, shared.NewBadRequestError("month must be between 1 and 12")
	}
	if receiptNumber == "" {
		return nil, shared.NewBadRequestError("receipt number is required")
	}
	sf := &StudentFee{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StudentYearID:     key.StudentYearID,
		FeeStructureID:    structure.ID,
		FeeType:           structure.FeeType,
		Month:             key.Month,
		SchoolYearID:      key.SchoolYearID,
		DueDate:           truncateDay(dueDate),
		OriginalAmount:    structure.FeeAmount,
		PaidAmount:        decimal.Zero,
		PenaltyAmount:     decimal.Zero,
		DiscountAmount:    decimal.Zero,
		Status:            FeeStatusPending,
		ReceiptNumber:     receiptNumber,
	}
	sf.Recalculate()
	return sf, nil
}

// Key returns the uniqueness key of the installment
func (s *StudentFee) Key() StudentFeeKey {
	return StudentFeeKey{
		StudentYearID:  s.StudentYearID,
		FeeStructureID: s.FeeStructureID,
		Month:          s.Month,
		SchoolYearID:   s.SchoolYearID,
	}
}

// NetAmount returns the fee amount after the folded discount, never negative
func (s *StudentFee) NetAmount() decimal.Decimal {
	return valueobject.NonNegative(s.OriginalAmount.Sub(s.DiscountAmount))
}

// PayableAmount is the net amount plus any penalty; payments never exceed it
func (s *StudentFee) PayableAmount() decimal.Decimal {
	return s.NetAmount().Add(s.PenaltyAmount)
}

// ApplyDiscountOnce folds a discount into the record the first time it is seen.
// Returns true when the discount was applied by this call.
func (s *StudentFee) ApplyDiscountOnce(amount decimal.Decimal) bool {
	if s.AppliedDiscount || !amount.IsPositive() {
		return false
	}
	s.DiscountAmount = decimal.Min(valueobject.Round(amount), s.OriginalAmount)
	s.AppliedDiscount = true
	s.Recalculate()
	return true
}

// ApplyOverduePenalty adds the fixed penalty to an overdue tuition installment once.
// Returns true when the penalty was applied by this call.
func (s *StudentFee) ApplyOverduePenalty(today time.Time, penalty decimal.Decimal) bool {
	if s.FeeType != FeeTypeTuition || s.PenaltyApplied || !penalty.IsPositive() {
		return false
	}
	if !s.IsOverdue(today) {
		return false
	}
	s.PenaltyAmount = s.PenaltyAmount.Add(valueobject.Round(penalty))
	s.PenaltyApplied = true
	s.Recalculate()
	return true
}

// IsOverdue reports whether the due date is strictly before today
func (s *StudentFee) IsOverdue(today time.Time) bool {
	return !s.DueDate.IsZero() && s.DueDate.Before(truncateDay(today))
}

// EnsureCanPay rejects non-positive amounts and amounts above the current due amount
func (s *StudentFee) EnsureCanPay(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewBadRequestError("Payment amount must be greater than zero")
	}
	if amount.GreaterThan(s.DueAmount) {
		return shared.NewBadRequestError("Amount %s exceeds payable amount %s for %s",
			valueobject.Format(amount), valueobject.Format(s.DueAmount), s.FeeType)
	}
	return nil
}

// SetPaidFromJournal replaces PaidAmount with the journal's SUCCESS total
func (s *StudentFee) SetPaidFromJournal(total decimal.Decimal) {
	s.PaidAmount = valueobject.Round(total)
	s.Recalculate()
}

// Recalculate restores dueAmount = max(0, original - paid - discount + penalty)
// and derives the status from the amounts.
func (s *StudentFee) Recalculate() {
	due := s.OriginalAmount.Sub(s.PaidAmount).Sub(s.DiscountAmount).Add(s.PenaltyAmount)
	s.DueAmount = valueobject.Round(valueobject.NonNegative(due))

	switch {
	case s.DueAmount.IsZero():
		s.Status = FeeStatusPaid
	case s.PaidAmount.IsPositive():
		s.Status = FeeStatusPartial
	default:
		s.Status = FeeStatusPending
	}
	s.Touch()
}

// DefaultDueDate returns the 15th of the given month in the reference year,
// or the reference day itself when no month is given.
func DefaultDueDate(month *int, ref time.Time) time.Time {
	if month == nil {
		return truncateDay(ref)
	}
	return time.Date(ref.Year(), time.Month(*month), 15, 0, 0, 0, 0, ref.Location())
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
