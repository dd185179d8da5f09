package persistence

import (
	"errors"

	"github.com/erp/schoolfees/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM sentinel errors onto domain errors.
// Requires gorm.Config.TranslateError for duplicate-key detection.
func translateError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewConflictError("%s already exists", what)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.NewConflictError("%s is still referenced", what)
	default:
		return err
	}
}
