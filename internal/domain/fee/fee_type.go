package fee

import (
	"strings"

	"github.com/erp/schoolfees/internal/domain/shared"
)

// FeeType represents the kind of payable fee
type FeeType string

const (
	FeeTypeAdmission   FeeType = "ADMISSION"
	FeeTypeExam        FeeType = "EXAM"
	FeeTypeTuition     FeeType = "TUITION"
	FeeTypeCaution     FeeType = "CAUTION"
	FeeTypeMaintenance FeeType = "MAINTENANCE"
	FeeTypeForm        FeeType = "FORM"
	FeeTypeOther       FeeType = "OTHER"
)

// AllFeeTypes lists every supported fee type
var AllFeeTypes = []FeeType{
	FeeTypeAdmission, FeeTypeExam, FeeTypeTuition, FeeTypeCaution,
	FeeTypeMaintenance, FeeTypeForm, FeeTypeOther,
}

// IsValid checks if the fee type is supported
func (t FeeType) IsValid() bool {
	for _, v := range AllFeeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// String returns the string representation of FeeType
func (t FeeType) String() string {
	return string(t)
}

// ParseFeeType normalizes loose input such as "Tuition Fee", "tuition_fee" or "TUITION".
func ParseFeeType(raw string) (FeeType, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	s = strings.TrimSuffix(s, "_FEES")
	s = strings.TrimSuffix(s, "_FEE")
	t := FeeType(s)
	if !t.IsValid() {
		return "", shared.NewBadRequestError("Invalid fee type: %q", raw)
	}
	return t, nil
}

// PaymentStructure represents how often a master fee is charged
type PaymentStructure string

const (
	PaymentStructureMonthly   PaymentStructure = "MONTHLY"
	PaymentStructureQuarterly PaymentStructure = "QUARTERLY"
	PaymentStructureYearly    PaymentStructure = "YEARLY"
	PaymentStructureOthers    PaymentStructure = "OTHERS"
)

// IsValid checks if the payment structure is supported
func (p PaymentStructure) IsValid() bool {
	switch p {
	case PaymentStructureMonthly, PaymentStructureQuarterly, PaymentStructureYearly, PaymentStructureOthers:
		return true
	}
	return false
}

// String returns the string representation of PaymentStructure
func (p PaymentStructure) String() string {
	return string(p)
}

// ParsePaymentStructure parses a payment structure case-insensitively
func ParsePaymentStructure(raw string) (PaymentStructure, error) {
	p := PaymentStructure(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", shared.NewBadRequestError("Invalid payment structure: %q (expected monthly, quarterly, yearly or others)", raw)
	}
	return p, nil
}
