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

// GormDiscountRepository implements fee.DiscountRepository using GORM
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository creates a new GormDiscountRepository
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormDiscountRepository) WithTx(tx *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: tx}
}

// FindByID finds a discount by its ID
func (r *GormDiscountRepository) FindByID(ctx context.Context, id uuid.UUID) (*fee.AppliedFeeDiscount, error) {
	var model models.AppliedFeeDiscountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "discount")
	}
	return model.ToDomain(), nil
}

// FindAll lists discounts, optionally for one student year
func (r *GormDiscountRepository) FindAll(ctx context.Context, studentYearID *int64) ([]fee.AppliedFeeDiscount, error) {
	query := r.db.WithContext(ctx).Model(&models.AppliedFeeDiscountModel{})
	if studentYearID != nil {
		query = query.Where("student_year_id = ?", *studentYearID)
	}
	var rows []models.AppliedFeeDiscountModel
	if err := query.Order("approved_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]fee.AppliedFeeDiscount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindByStudentYearAndStructure finds the discount for a (student year, structure) pair
func (r *GormDiscountRepository) FindByStudentYearAndStructure(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (*fee.AppliedFeeDiscount, error) {
	var model models.AppliedFeeDiscountModel
	err := r.db.WithContext(ctx).
		Where("student_year_id = ? AND fee_structure_id = ?", studentYearID, feeStructureID).
		First(&model).Error
	if err != nil {
		return nil, translateError(err, "discount")
	}
	return model.ToDomain(), nil
}

// SumAmount totals the discounts recorded for a (student year, structure) pair
func (r *GormDiscountRepository) SumAmount(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.AppliedFeeDiscountModel{}).
		Select("SUM(discount_amount)").
		Where("student_year_id = ? AND fee_structure_id = ?", studentYearID, feeStructureID).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return valueobject.Round(total.Decimal), nil
}

// Save creates or updates a discount
func (r *GormDiscountRepository) Save(ctx context.Context, d *fee.AppliedFeeDiscount) error {
	var model models.AppliedFeeDiscountModel
	model.FromDomain(d)
	return translateError(r.db.WithContext(ctx).Save(&model).Error, "discount")
}

// Delete removes a discount
func (r *GormDiscountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AppliedFeeDiscountModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ fee.DiscountRepository = (*GormDiscountRepository)(nil)
