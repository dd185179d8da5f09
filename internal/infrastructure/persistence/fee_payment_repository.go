package persistence

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormFeePaymentRepository implements fee.FeePaymentRepository using GORM.
// The journal is append-only: there is no delete.
type GormFeePaymentRepository struct {
	db *gorm.DB
}

// NewGormFeePaymentRepository creates a new GormFeePaymentRepository
func NewGormFeePaymentRepository(db *gorm.DB) *GormFeePaymentRepository {
	return &GormFeePaymentRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormFeePaymentRepository) WithTx(tx *gorm.DB) *GormFeePaymentRepository {
	return &GormFeePaymentRepository{db: tx}
}

// FindByID finds a journal entry by its ID
func (r *GormFeePaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fee.FeePayment, error) {
	var model models.FeePaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "fee payment")
	}
	return model.ToDomain(), nil
}

// FindAll lists journal entries matching the filter, newest first
func (r *GormFeePaymentRepository) FindAll(ctx context.Context, filter fee.PaymentFilter) ([]fee.FeePayment, error) {
	query := r.db.WithContext(ctx).Model(&models.FeePaymentModel{})
	if filter.StudentFeeID != nil {
		query = query.Where("student_fee_id = ?", *filter.StudentFeeID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return r.find(query.Order("payment_date DESC"))
}

// FindByStudentFees lists the journal entries of several ledger rows
func (r *GormFeePaymentRepository) FindByStudentFees(ctx context.Context, studentFeeIDs []uuid.UUID) ([]fee.FeePayment, error) {
	if len(studentFeeIDs) == 0 {
		return []fee.FeePayment{}, nil
	}
	return r.find(r.db.WithContext(ctx).
		Where("student_fee_id IN ?", studentFeeIDs).
		Order("payment_date ASC"))
}

// FindByGatewayOrderID lists the journal entries created for a gateway order
func (r *GormFeePaymentRepository) FindByGatewayOrderID(ctx context.Context, orderID string) ([]fee.FeePayment, error) {
	return r.find(r.db.WithContext(ctx).
		Where("gateway_order_id = ?", orderID).
		Order("payment_date ASC"))
}

func (r *GormFeePaymentRepository) find(query *gorm.DB) ([]fee.FeePayment, error) {
	var rows []models.FeePaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]fee.FeePayment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// ExistsGatewayPayment reports whether a successful entry already carries the gateway payment id
func (r *GormFeePaymentRepository) ExistsGatewayPayment(ctx context.Context, studentFeeID uuid.UUID, paymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FeePaymentModel{}).
		Where("student_fee_id = ? AND gateway_payment_id = ? AND status = ?", studentFeeID, paymentID, fee.PaymentStatusSuccess).
		Count(&count).Error
	return count > 0, err
}

// ExistsChequeNumber reports whether a cheque number was already recorded
func (r *GormFeePaymentRepository) ExistsChequeNumber(ctx context.Context, chequeNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FeePaymentModel{}).
		Where("cheque_number = ?", chequeNumber).
		Count(&count).Error
	return count > 0, err
}

// SumSuccessful totals the SUCCESS entries of a ledger row
func (r *GormFeePaymentRepository) SumSuccessful(ctx context.Context, studentFeeID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.FeePaymentModel{}).
		Select("SUM(amount)").
		Where("student_fee_id = ? AND status = ?", studentFeeID, fee.PaymentStatusSuccess).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return valueobject.Round(total.Decimal), nil
}

// Create appends a journal entry
func (r *GormFeePaymentRepository) Create(ctx context.Context, p *fee.FeePayment) error {
	var model models.FeePaymentModel
	model.FromDomain(p)
	return translateError(r.db.WithContext(ctx).Create(&model).Error, "fee payment")
}

// UpdateStatus persists a status transition together with the gateway reference
func (r *GormFeePaymentRepository) UpdateStatus(ctx context.Context, p *fee.FeePayment) error {
	p.Touch()
	result := r.db.WithContext(ctx).
		Model(&models.FeePaymentModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":             p.Status,
			"notes":              p.Notes,
			"gateway_payment_id": p.Gateway.PaymentID,
			"gateway_signature":  p.Gateway.Signature,
			"updated_at":         p.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ fee.FeePaymentRepository = (*GormFeePaymentRepository)(nil)
