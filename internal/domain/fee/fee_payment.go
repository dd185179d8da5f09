package fee

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was tendered
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodCheque PaymentMethod = "CHEQUE"
)

// IsValid checks if the method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodOnline, PaymentMethodCheque:
		return true
	}
	return false
}

// IsOnline reports whether the payment settles through the gateway
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodOnline
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod parses "online", "cash" or "cheque" case-insensitively
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if m == "CHECK" {
		m = PaymentMethodCheque
	}
	if !m.IsValid() {
		return "", shared.NewBadRequestError("Invalid payment method: %q (expected cash, cheque or online)", raw)
	}
	return m, nil
}

// PaymentStatus is the state of one journal row
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// IsValid checks if the status is supported
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus parses a status case-insensitively
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewBadRequestError("Invalid payment status: %q", raw)
	}
	return s, nil
}

// CanTransitionTo reports whether the journal row may move to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusSuccess || next == PaymentStatusFailed
	case PaymentStatusSuccess:
		return next == PaymentStatusRefunded
	}
	return false
}

// GatewayRef carries the payment gateway identifiers of an online payment
type GatewayRef struct {
	OrderID   string
	PaymentID string
	Signature string
}

// FeePayment is one append-only payment journal row against a StudentFee
type FeePayment struct {
	shared.BaseEntity
	StudentFeeID  uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	Status        PaymentStatus
	PaymentDate   time.Time
	ReceivedBy    *int64
	Notes         string
	ChequeNumber  *string
	Gateway       GatewayRef
}

// NewFeePayment creates a journal row
func NewFeePayment(studentFeeID uuid.UUID, amount decimal.Decimal, method PaymentMethod, status PaymentStatus) (*FeePayment, error) {
	if studentFeeID == uuid.Nil {
		return nil, shared.NewBadRequestError("studentFeeId is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewBadRequestError("Amount must be greater than zero")
	}
	if !method.IsValid() {
		return nil, shared.NewBadRequestError("Invalid payment method: %q", method)
	}
	if !status.IsValid() {
		return nil, shared.NewBadRequestError("Invalid payment status: %q", status)
	}
	return &FeePayment{
		BaseEntity:    shared.NewBaseEntity(),
		StudentFeeID:  studentFeeID,
		Amount:        valueobject.Round(amount),
		PaymentMethod: method,
		Status:        status,
		PaymentDate:   time.Now(),
	}, nil
}

// WithCheque attaches a cheque number; blank numbers are ignored
func (p *FeePayment) WithCheque(number string) *FeePayment {
	number = strings.TrimSpace(number)
	if number != "" {
		p.ChequeNumber = &number
	}
	return p
}

// TransitionTo moves the row to the next status
func (p *FeePayment) TransitionTo(next PaymentStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return shared.NewBadRequestError("Cannot change payment status from %s to %s", p.Status, next)
	}
	p.Status = next
	p.Touch()
	return nil
}

// IsSuccessful reports whether the row counts toward the paid amount
func (p *FeePayment) IsSuccessful() bool {
	return p.Status == PaymentStatusSuccess
}

// String implements fmt.Stringer
func (p *FeePayment) String() string {
	return fmt.Sprintf("Payment %s - %s - %s - studentFee %s",
		p.ID, valueobject.Format(p.Amount), p.PaymentMethod, p.StudentFeeID)
}

// SumSuccessful totals the SUCCESS rows of a journal
func SumSuccessful(payments []FeePayment) decimal.Decimal {
	total := decimal.Zero
	for i := range payments {
		if payments[i].IsSuccessful() {
			total = total.Add(payments[i].Amount)
		}
	}
	return total
}
