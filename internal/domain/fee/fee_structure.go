package fee

import (
	"slices"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeStructure is a payable fee with an amount and the year-levels it applies to
type FeeStructure struct {
	shared.BaseAggregateRoot
	MasterFeeID  uuid.UUID
	FeeType      FeeType
	FeeAmount    decimal.Decimal
	YearLevelIDs []int64
}

// NewFeeStructure creates a fee structure. Year-level ids must already be
// validated against the roster by the caller.
func NewFeeStructure(masterFeeID uuid.UUID, feeType FeeType, amount decimal.Decimal, yearLevelIDs []int64) (*FeeStructure, error) {
	fs := &FeeStructure{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	if err := fs.apply(masterFeeID, feeType, amount, yearLevelIDs); err != nil {
		return nil, err
	}
	return fs, nil
}

// Update replaces the structure's definition
func (f *FeeStructure) Update(masterFeeID uuid.UUID, feeType FeeType, amount decimal.Decimal, yearLevelIDs []int64) error {
	if err := f.apply(masterFeeID, feeType, amount, yearLevelIDs); err != nil {
		return err
	}
	f.Touch()
	return nil
}

func (f *FeeStructure) apply(masterFeeID uuid.UUID, feeType FeeType, amount decimal.Decimal, yearLevelIDs []int64) error {
	if masterFeeID == uuid.Nil {
		return shared.NewBadRequestError("masterFeeId is required")
	}
	if !feeType.IsValid() {
		return shared.NewBadRequestError("Invalid fee type: %q", feeType)
	}
	if amount.IsNegative() {
		return shared.NewBadRequestError("feeAmount must be zero or greater")
	}
	ids := NormalizeYearLevelIDs(yearLevelIDs)
	if len(ids) == 0 {
		return shared.NewBadRequestError("yearLevelIds must not be empty")
	}
	f.MasterFeeID = masterFeeID
	f.FeeType = feeType
	f.FeeAmount = valueobject.Round(amount)
	f.YearLevelIDs = ids
	return nil
}

// AppliesTo reports whether the structure applies to the given year-level
func (f *FeeStructure) AppliesTo(yearLevelID int64) bool {
	return slices.Contains(f.YearLevelIDs, yearLevelID)
}

// NormalizeYearLevelIDs de-duplicates and sorts ids, dropping non-positive values
func NormalizeYearLevelIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
