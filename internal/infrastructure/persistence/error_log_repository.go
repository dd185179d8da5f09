package persistence

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultErrorLogPageSize = 20

// GormErrorLogRepository implements shared.ErrorLogRepository using GORM
type GormErrorLogRepository struct {
	db *gorm.DB
}

// NewGormErrorLogRepository creates a new GormErrorLogRepository
func NewGormErrorLogRepository(db *gorm.DB) *GormErrorLogRepository {
	return &GormErrorLogRepository{db: db}
}

// Save appends an error log row
func (r *GormErrorLogRepository) Save(ctx context.Context, entry shared.ErrorLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	model := models.ErrorLogModelFrom(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID returns one error log entry
func (r *GormErrorLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.ErrorLogEntry, error) {
	var model models.ErrorLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "error log")
	}
	entry := model.ToEntry()
	return &entry, nil
}

// FindAll returns a page of entries, newest first, with the matching total
func (r *GormErrorLogRepository) FindAll(ctx context.Context, filter shared.ErrorLogFilter) ([]shared.ErrorLogEntry, int64, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = defaultErrorLogPageSize
	}
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.ErrorLogModel{})
		if filter.StatusCode != 0 {
			q = q.Where("status_code = ?", filter.StatusCode)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ErrorLogModel
	err := scoped().Order("occurred_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	entries := make([]shared.ErrorLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToEntry()
	}
	return entries, total, nil
}

var (
	_ shared.ErrorLogRepository = (*GormErrorLogRepository)(nil)
	_ shared.ErrorLogReader     = (*GormErrorLogRepository)(nil)
)
