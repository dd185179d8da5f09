package fee

import (
	"github.com/erp/schoolfees/internal/domain/shared"
)

// MasterFee groups fee structures under a billing cadence
type MasterFee struct {
	shared.BaseAggregateRoot
	PaymentStructure PaymentStructure
}

// NewMasterFee creates a master fee with the given cadence
func NewMasterFee(structure PaymentStructure) (*MasterFee, error) {
	if !structure.IsValid() {
		return nil, shared.NewBadRequestError("Invalid payment structure: %q", structure)
	}
	return &MasterFee{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentStructure:  structure,
	}, nil
}

// ChangeStructure updates the billing cadence
func (m *MasterFee) ChangeStructure(structure PaymentStructure) error {
	if !structure.IsValid() {
		return shared.NewBadRequestError("Invalid payment structure: %q", structure)
	}
	m.PaymentStructure = structure
	m.Touch()
	return nil
}
