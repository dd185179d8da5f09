package fee

import (
	"strings"
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountPolicy holds the percentage ceilings for applying and re-pricing discounts
type DiscountPolicy struct {
	ApplyCeiling  decimal.Decimal
	UpdateCeiling decimal.Decimal
}

// DefaultDiscountPolicy returns the 90% apply / 80% update ceilings
func DefaultDiscountPolicy() DiscountPolicy {
	return DiscountPolicy{
		ApplyCeiling:  decimal.NewFromInt(90),
		UpdateCeiling: decimal.NewFromInt(80),
	}
}

var maxPercent = decimal.NewFromInt(100)

// ValidatePercent checks 0 <= percent <= 100 and percent <= ceiling
func ValidatePercent(percent, ceiling decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(maxPercent) {
		return shared.NewBadRequestError("Discount percent must be between 0 and 100")
	}
	if percent.GreaterThan(ceiling) {
		return shared.NewBadRequestError("Discount percent cannot exceed %s%%", ceiling.String())
	}
	return nil
}

// AppliedFeeDiscount is an approved discount for one student-year on one fee structure
type AppliedFeeDiscount struct {
	shared.BaseAggregateRoot
	StudentYearID  int64
	FeeStructureID uuid.UUID
	DiscountName   string
	DiscountAmount decimal.Decimal
	ApprovedAt     time.Time
	ApprovedBy     *int64
}

// NewAppliedFeeDiscount prices a discount as a percentage of the structure's fee amount
func NewAppliedFeeDiscount(
	studentYearID int64,
	structure *FeeStructure,
	name string,
	percent decimal.Decimal,
	ceiling decimal.Decimal,
	approvedBy *int64,
) (*AppliedFeeDiscount, error) {
	if studentYearID <= 0 {
		return nil, shared.NewBadRequestError("studentYearId is required")
	}
	d := &AppliedFeeDiscount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StudentYearID:     studentYearID,
		FeeStructureID:    structure.ID,
	}
	if err := d.Reprice(structure, name, percent, ceiling, approvedBy); err != nil {
		return nil, err
	}
	return d, nil
}

// Reprice recomputes the amount from the structure's current fee amount and restamps approval
func (d *AppliedFeeDiscount) Reprice(
	structure *FeeStructure,
	name string,
	percent decimal.Decimal,
	ceiling decimal.Decimal,
	approvedBy *int64,
) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewBadRequestError("discountName is required")
	}
	if err := ValidatePercent(percent, ceiling); err != nil {
		return err
	}
	d.DiscountName = name
	d.DiscountAmount = valueobject.PercentOf(structure.FeeAmount, percent)
	d.ApprovedAt = time.Now()
	d.ApprovedBy = approvedBy
	d.Touch()
	return nil
}

// Percent returns DiscountAmount / feeAmount * 100, rounded to two places
func (d *AppliedFeeDiscount) Percent(feeAmount decimal.Decimal) decimal.Decimal {
	return valueobject.RatioPercent(d.DiscountAmount, feeAmount)
}
