package persistence

import (
	"context"

	appfee "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction, rolling back when it returns an error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfee.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) FeeStructureRepo() fee.FeeStructureRepository {
	return NewGormFeeStructureRepository(r.tx)
}

func (r *gormTransactionalRepositories) DiscountRepo() fee.DiscountRepository {
	return NewGormDiscountRepository(r.tx)
}

func (r *gormTransactionalRepositories) StudentFeeRepo() fee.StudentFeeRepository {
	return NewGormStudentFeeRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() fee.FeePaymentRepository {
	return NewGormFeePaymentRepository(r.tx)
}

var (
	_ appfee.TransactionScope          = (*GormTransactionScope)(nil)
	_ appfee.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
