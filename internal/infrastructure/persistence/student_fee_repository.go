package persistence

import (
	"context"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStudentFeeRepository implements fee.StudentFeeRepository using GORM
type GormStudentFeeRepository struct {
	db *gorm.DB
}

// NewGormStudentFeeRepository creates a new GormStudentFeeRepository
func NewGormStudentFeeRepository(db *gorm.DB) *GormStudentFeeRepository {
	return &GormStudentFeeRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormStudentFeeRepository) WithTx(tx *gorm.DB) *GormStudentFeeRepository {
	return &GormStudentFeeRepository{db: tx}
}

// FindByID finds a student fee by its ID
func (r *GormStudentFeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*fee.StudentFee, error) {
	var model models.StudentFeeModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "student fee")
	}
	return model.ToDomain(), nil
}

// FindByKey finds the ledger row for (student year, structure, month, school year)
func (r *GormStudentFeeRepository) FindByKey(ctx context.Context, key fee.StudentFeeKey) (*fee.StudentFee, error) {
	query := r.db.WithContext(ctx).
		Where("student_year_id = ? AND fee_structure_id = ? AND school_year_id = ?",
			key.StudentYearID, key.FeeStructureID, key.SchoolYearID)
	query = whereMonth(query, key.Month)

	var model models.StudentFeeModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err, "student fee")
	}
	return model.ToDomain(), nil
}

// FindForConfirmation finds the most recent installment for (student year, structure, month)
func (r *GormStudentFeeRepository) FindForConfirmation(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID, month *int) (*fee.StudentFee, error) {
	query := r.db.WithContext(ctx).
		Where("student_year_id = ? AND fee_structure_id = ?", studentYearID, feeStructureID)
	query = whereMonth(query, month)

	var model models.StudentFeeModel
	if err := query.Order("created_at DESC").First(&model).Error; err != nil {
		return nil, translateError(err, "student fee")
	}
	return model.ToDomain(), nil
}

// FindByStudentYear lists every ledger row of a student year
func (r *GormStudentFeeRepository) FindByStudentYear(ctx context.Context, studentYearID int64) ([]fee.StudentFee, error) {
	return r.find(ctx, r.db.Where("student_year_id = ?", studentYearID))
}

// FindByStudentYearAndSchoolYear lists ledger rows of a student year within a school year
func (r *GormStudentFeeRepository) FindByStudentYearAndSchoolYear(ctx context.Context, studentYearID, schoolYearID int64) ([]fee.StudentFee, error) {
	return r.find(ctx, r.db.Where("student_year_id = ? AND school_year_id = ?", studentYearID, schoolYearID))
}

// FindOverdue lists rows with an outstanding balance whose due date is before today
func (r *GormStudentFeeRepository) FindOverdue(ctx context.Context, filter fee.OverdueFilter) ([]fee.StudentFee, error) {
	today := filter.Today
	if today.IsZero() {
		today = time.Now()
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	query := r.db.Where("due_amount > 0 AND due_date < ?", today)
	if filter.StudentYearID != nil {
		query = query.Where("student_year_id = ?", *filter.StudentYearID)
	}
	if filter.Month != nil {
		query = query.Where("month = ?", *filter.Month)
	}
	if filter.SchoolYearID != nil {
		query = query.Where("school_year_id = ?", *filter.SchoolYearID)
	}
	return r.find(ctx, query)
}

// FindUnsettledBySchoolYear lists rows of a school year that are not fully paid
func (r *GormStudentFeeRepository) FindUnsettledBySchoolYear(ctx context.Context, schoolYearID int64) ([]fee.StudentFee, error) {
	return r.find(ctx, r.db.Where("school_year_id = ? AND status <> ?", schoolYearID, fee.FeeStatusPaid))
}

// FindByStatuses lists rows in any of the given statuses
func (r *GormStudentFeeRepository) FindByStatuses(ctx context.Context, statuses ...fee.FeeStatus) ([]fee.StudentFee, error) {
	if len(statuses) == 0 {
		return []fee.StudentFee{}, nil
	}
	return r.find(ctx, r.db.Where("status IN ?", statuses))
}

func (r *GormStudentFeeRepository) find(ctx context.Context, query *gorm.DB) ([]fee.StudentFee, error) {
	var rows []models.StudentFeeModel
	err := query.WithContext(ctx).
		Order("student_year_id ASC, month ASC, due_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]fee.StudentFee, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindLatestReceipt returns the highest receipt number with the given prefix, or ""
func (r *GormStudentFeeRepository) FindLatestReceipt(ctx context.Context, prefix string) (string, error) {
	var receipts []string
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeeModel{}).
		Where("receipt_number LIKE ?", prefix+"%").
		Order("receipt_number DESC").
		Limit(1).
		Pluck("receipt_number", &receipts).Error
	if err != nil || len(receipts) == 0 {
		return "", err
	}
	return receipts[0], nil
}

// ExistsByReceiptNumber reports whether a receipt number is taken
func (r *GormStudentFeeRepository) ExistsByReceiptNumber(ctx context.Context, receipt string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeeModel{}).
		Where("receipt_number = ?", receipt).
		Count(&count).Error
	return count > 0, err
}

// CountByFeeStructure counts ledger rows referencing a fee structure
func (r *GormStudentFeeRepository) CountByFeeStructure(ctx context.Context, feeStructureID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeeModel{}).
		Where("fee_structure_id = ?", feeStructureID).
		Count(&count).Error
	return count, err
}

// ExistsAppliedDiscount reports whether a discount was already folded into any row of the pair
func (r *GormStudentFeeRepository) ExistsAppliedDiscount(ctx context.Context, studentYearID int64, feeStructureID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentFeeModel{}).
		Where("student_year_id = ? AND fee_structure_id = ? AND applied_discount = ?", studentYearID, feeStructureID, true).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new ledger row
func (r *GormStudentFeeRepository) Create(ctx context.Context, s *fee.StudentFee) error {
	var model models.StudentFeeModel
	model.FromDomain(s)
	return translateError(r.db.WithContext(ctx).Create(&model).Error, "student fee")
}

// SaveWithLock saves with optimistic locking (checks version) and bumps the version
func (r *GormStudentFeeRepository) SaveWithLock(ctx context.Context, s *fee.StudentFee) error {
	expected := s.Version
	s.Touch()
	result := r.db.WithContext(ctx).
		Model(&models.StudentFeeModel{}).
		Where("id = ? AND version = ?", s.ID, expected).
		Updates(map[string]any{
			"due_date":         s.DueDate,
			"original_amount":  s.OriginalAmount,
			"paid_amount":      s.PaidAmount,
			"due_amount":       s.DueAmount,
			"penalty_amount":   s.PenaltyAmount,
			"discount_amount":  s.DiscountAmount,
			"applied_discount": s.AppliedDiscount,
			"penalty_applied":  s.PenaltyApplied,
			"status":           s.Status,
			"version":          expected + 1,
			"updated_at":       s.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeOptimisticLock, "Student fee was modified by another transaction")
	}
	s.Version = expected + 1
	return nil
}

func whereMonth(query *gorm.DB, month *int) *gorm.DB {
	if month == nil {
		return query.Where("month IS NULL")
	}
	return query.Where("month = ?", *month)
}

var _ fee.StudentFeeRepository = (*GormStudentFeeRepository)(nil)
