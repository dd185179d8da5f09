package fee

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every StudentFee and FeePayment write made inside Execute commits or rolls
// back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to one transaction.
type TransactionalRepositories interface {
	FeeStructureRepo() fee.FeeStructureRepository
	DiscountRepo() fee.DiscountRepository
	StudentFeeRepo() fee.StudentFeeRepository
	PaymentRepo() fee.FeePaymentRepository
}

// NoOpTransactionScope runs the function against plain repositories.
// Used by tests and tooling.
type NoOpTransactionScope struct {
	structures fee.FeeStructureRepository
	discounts  fee.DiscountRepository
	fees       fee.StudentFeeRepository
	payments   fee.FeePaymentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	structures fee.FeeStructureRepository,
	discounts fee.DiscountRepository,
	fees fee.StudentFeeRepository,
	payments fee.FeePaymentRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		structures: structures,
		discounts:  discounts,
		fees:       fees,
		payments:   payments,
	}
}

// Execute runs fn without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// FeeStructureRepo returns the fee structure repository.
func (s *NoOpTransactionScope) FeeStructureRepo() fee.FeeStructureRepository { return s.structures }

// DiscountRepo returns the discount repository.
func (s *NoOpTransactionScope) DiscountRepo() fee.DiscountRepository { return s.discounts }

// StudentFeeRepo returns the student fee repository.
func (s *NoOpTransactionScope) StudentFeeRepo() fee.StudentFeeRepository { return s.fees }

// PaymentRepo returns the payment journal repository.
func (s *NoOpTransactionScope) PaymentRepo() fee.FeePaymentRepository { return s.payments }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
