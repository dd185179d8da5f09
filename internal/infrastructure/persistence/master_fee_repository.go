package persistence

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMasterFeeRepository implements fee.MasterFeeRepository using GORM
type GormMasterFeeRepository struct {
	db *gorm.DB
}

// NewGormMasterFeeRepository creates a new GormMasterFeeRepository
func NewGormMasterFeeRepository(db *gorm.DB) *GormMasterFeeRepository {
	return &GormMasterFeeRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormMasterFeeRepository) WithTx(tx *gorm.DB) *GormMasterFeeRepository {
	return &GormMasterFeeRepository{db: tx}
}

// FindByID finds a master fee by its ID
func (r *GormMasterFeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*fee.MasterFee, error) {
	var model models.MasterFeeModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "master fee")
	}
	return model.ToDomain(), nil
}

// FindAll lists master fees, oldest first
func (r *GormMasterFeeRepository) FindAll(ctx context.Context) ([]fee.MasterFee, error) {
	var rows []models.MasterFeeModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]fee.MasterFee, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a master fee
func (r *GormMasterFeeRepository) Save(ctx context.Context, m *fee.MasterFee) error {
	var model models.MasterFeeModel
	model.FromDomain(m)
	return translateError(r.db.WithContext(ctx).Save(&model).Error, "master fee")
}

// Delete removes a master fee
func (r *GormMasterFeeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MasterFeeModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error, "master fee")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ fee.MasterFeeRepository = (*GormMasterFeeRepository)(nil)
