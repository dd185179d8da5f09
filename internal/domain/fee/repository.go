package fee

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repositories return shared.ErrNotFound for missing rows.

// MasterFeeRepository persists master fees
type MasterFeeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*MasterFee, error)
	FindAll(ctx context.Context) ([]MasterFee, error)
	Save(ctx context.Context, m *MasterFee) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FeeStructureFilter narrows fee structure listings
type FeeStructureFilter struct {
	YearLevelID *int64
	MasterFeeID *uuid.UUID
}

// FeeStructureRepository persists fee structures
type FeeStructureRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*FeeStructure, error)
	FindAll(ctx context.Context, filter FeeStructureFilter) ([]FeeStructure, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]FeeStructure, error)
	Save(ctx context.Context, f *FeeStructure) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByMasterFee(ctx context.Context, masterFeeID uuid.UUID) (int64, error)
}

// DiscountRepository persists applied discounts
type DiscountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AppliedFeeDiscount, error)
	FindAll(ctx context.Context, studentYearID *int64) ([]AppliedFeeDiscount, error)
	FindByStudentYearAndStructure(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (*AppliedFeeDiscount, error)
	SumAmount(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (decimal.Decimal, error)
	Save(ctx context.Context, d *AppliedFeeDiscount) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OverdueFilter narrows the overdue report
type OverdueFilter struct {
	StudentYearID *int64
	Month         *int
	SchoolYearID  *int64
	Today         time.Time
}

// StudentFeeRepository persists the student fee ledger
type StudentFeeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StudentFee, error)
	FindByKey(ctx context.Context, key StudentFeeKey) (*StudentFee, error)
	// FindForConfirmation finds the installment for (studentYear, structure, month) in any school year
	FindForConfirmation(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID, month *int) (*StudentFee, error)
	FindByStudentYear(ctx context.Context, studentYearID int64) ([]StudentFee, error)
	FindByStudentYearAndSchoolYear(ctx context.Context, studentYearID, schoolYearID int64) ([]StudentFee, error)
	FindOverdue(ctx context.Context, filter OverdueFilter) ([]StudentFee, error)
	FindUnsettledBySchoolYear(ctx context.Context, schoolYearID int64) ([]StudentFee, error)
	FindByStatuses(ctx context.Context, statuses ...FeeStatus) ([]StudentFee, error)
	FindLatestReceipt(ctx context.Context, prefix string) (string, error)
	ExistsByReceiptNumber(ctx context.Context, receipt string) (bool, error)
	CountByFeeStructure(ctx context.Context, feeStructureID uuid.UUID) (int64, error)
	ExistsAppliedDiscount(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (bool, error)
	Create(ctx context.Context, s *StudentFee) error
	// SaveWithLock updates the row only if its version is unchanged, then bumps the version
	SaveWithLock(ctx context.Context, s *StudentFee) error
}

// PaymentFilter narrows journal listings
type PaymentFilter struct {
	StudentFeeID *uuid.UUID
	Status       *PaymentStatus
}

// FeePaymentRepository persists the payment journal
type FeePaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*FeePayment, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]FeePayment, error)
	FindByStudentFees(ctx context.Context, studentFeeIDs []uuid.UUID) ([]FeePayment, error)
	FindByGatewayOrderID(ctx context.Context, orderID string) ([]FeePayment, error)
	ExistsGatewayPayment(ctx context.Context, studentFeeID uuid.UUID, paymentID string) (bool, error)
	ExistsChequeNumber(ctx context.Context, chequeNumber string) (bool, error)
	SumSuccessful(ctx context.Context, studentFeeID uuid.UUID) (decimal.Decimal, error)
	Create(ctx context.Context, p *FeePayment) error
	UpdateStatus(ctx context.Context, p *FeePayment) error
}
