package persistence

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFeeStructureRepository implements fee.FeeStructureRepository using GORM
type GormFeeStructureRepository struct {
	db *gorm.DB
}

// NewGormFeeStructureRepository creates a new GormFeeStructureRepository
func NewGormFeeStructureRepository(db *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormFeeStructureRepository) WithTx(tx *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: tx}
}

// FindByID finds a fee structure by its ID
func (r *GormFeeStructureRepository) FindByID(ctx context.Context, id uuid.UUID) (*fee.FeeStructure, error) {
	var model models.FeeStructureModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "fee structure")
	}
	return model.ToDomain(), nil
}

// FindAll lists fee structures. Year-level membership is checked in memory
// so the same query runs on the jsonb (PostgreSQL) and text (SQLite) column.
func (r *GormFeeStructureRepository) FindAll(ctx context.Context, filter fee.FeeStructureFilter) ([]fee.FeeStructure, error) {
	query := r.db.WithContext(ctx).Model(&models.FeeStructureModel{})
	if filter.MasterFeeID != nil {
		query = query.Where("master_fee_id = ?", *filter.MasterFeeID)
	}

	var rows []models.FeeStructureModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]fee.FeeStructure, 0, len(rows))
	for i := range rows {
		fs := rows[i].ToDomain()
		if filter.YearLevelID != nil && !fs.AppliesTo(*filter.YearLevelID) {
			continue
		}
		out = append(out, *fs)
	}
	return out, nil
}

// FindByIDs loads the given fee structures; missing ids are skipped
func (r *GormFeeStructureRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]fee.FeeStructure, error) {
	if len(ids) == 0 {
		return []fee.FeeStructure{}, nil
	}
	var rows []models.FeeStructureModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]fee.FeeStructure, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a fee structure
func (r *GormFeeStructureRepository) Save(ctx context.Context, f *fee.FeeStructure) error {
	var model models.FeeStructureModel
	model.FromDomain(f)
	return translateError(r.db.WithContext(ctx).Save(&model).Error, "fee structure")
}

// Delete removes a fee structure
func (r *GormFeeStructureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FeeStructureModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error, "fee structure")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByMasterFee counts fee structures owned by a master fee
func (r *GormFeeStructureRepository) CountByMasterFee(ctx context.Context, masterFeeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FeeStructureModel{}).
		Where("master_fee_id = ?", masterFeeID).
		Count(&count).Error
	return count, err
}

var _ fee.FeeStructureRepository = (*GormFeeStructureRepository)(nil)
