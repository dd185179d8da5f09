package fee

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService manages master fees and fee structures
type CatalogService struct {
	masterFees fee.MasterFeeRepository
	structures fee.FeeStructureRepository
	fees       fee.StudentFeeRepository
	roster     fee.RosterLookup
	logger     *zap.Logger
}

// CatalogServiceConfig holds the dependencies of the catalog service
type CatalogServiceConfig struct {
	MasterFees fee.MasterFeeRepository
	Structures fee.FeeStructureRepository
	StudentFee fee.StudentFeeRepository
	Roster     fee.RosterLookup
	Logger     *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(cfg CatalogServiceConfig) *CatalogService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		masterFees: cfg.MasterFees,
		structures: cfg.Structures,
		fees:       cfg.StudentFee,
		roster:     cfg.Roster,
		logger:     logger,
	}
}

// CreateMasterFee creates a master fee
func (s *CatalogService) CreateMasterFee(ctx context.Context, req MasterFeeRequest) (*MasterFeeResponse, error) {
	structure, err := fee.ParsePaymentStructure(req.PaymentStructure)
	if err != nil {
		return nil, err
	}
	m, err := fee.NewMasterFee(structure)
	if err != nil {
		return nil, err
	}
	if err := s.masterFees.Save(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("Master fee created", zap.String("master_fee_id", m.ID.String()),
		zap.String("payment_structure", structure.String()))
	resp := ToMasterFeeResponse(m)
	return &resp, nil
}

// UpdateMasterFee changes a master fee's billing cadence
func (s *CatalogService) UpdateMasterFee(ctx context.Context, id uuid.UUID, req MasterFeeRequest) (*MasterFeeResponse, error) {
	m, err := s.getMasterFee(ctx, id)
	if err != nil {
		return nil, err
	}
	structure, err := fee.ParsePaymentStructure(req.PaymentStructure)
	if err != nil {
		return nil, err
	}
	if err := m.ChangeStructure(structure); err != nil {
		return nil, err
	}
	if err := s.masterFees.Save(ctx, m); err != nil {
		return nil, err
	}
	resp := ToMasterFeeResponse(m)
	return &resp, nil
}

// GetMasterFee returns one master fee
func (s *CatalogService) GetMasterFee(ctx context.Context, id uuid.UUID) (*MasterFeeResponse, error) {
	m, err := s.getMasterFee(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToMasterFeeResponse(m)
	return &resp, nil
}

// ListMasterFees returns every master fee
func (s *CatalogService) ListMasterFees(ctx context.Context) ([]MasterFeeResponse, error) {
	list, err := s.masterFees.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MasterFeeResponse, 0, len(list))
	for i := range list {
		out = append(out, ToMasterFeeResponse(&list[i]))
	}
	return out, nil
}

// DeleteMasterFee removes a master fee that owns no fee structures
func (s *CatalogService) DeleteMasterFee(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getMasterFee(ctx, id); err != nil {
		return err
	}
	count, err := s.structures.CountByMasterFee(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.NewConflictError("Master fee %s still has %d fee structure(s)", id, count)
	}
	return s.masterFees.Delete(ctx, id)
}

func (s *CatalogService) getMasterFee(ctx context.Context, id uuid.UUID) (*fee.MasterFee, error) {
	m, err := s.masterFees.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("MasterFee not found: %s", id)
		}
		return nil, err
	}
	return m, nil
}

// CreateFeeStructure validates the year-levels against the roster and creates a fee structure
func (s *CatalogService) CreateFeeStructure(ctx context.Context, req FeeStructureRequest) (resp *FeeStructureResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "CatalogService", "CreateFeeStructure")
	defer func() { telemetry.EndSpan(span, err) }()

	feeType, ids, err := s.validateStructure(ctx, req)
	if err != nil {
		return nil, err
	}
	fs, err := fee.NewFeeStructure(req.MasterFeeID, feeType, req.FeeAmount, ids)
	if err != nil {
		return nil, err
	}
	if err := s.structures.Save(ctx, fs); err != nil {
		return nil, err
	}
	s.logger.Info("Fee structure created",
		zap.String("fee_structure_id", fs.ID.String()),
		zap.String("fee_type", fs.FeeType.String()),
		zap.Int64s("year_level_ids", fs.YearLevelIDs))
	out := ToFeeStructureResponse(fs)
	return &out, nil
}

// UpdateFeeStructure re-validates and replaces a fee structure's definition
func (s *CatalogService) UpdateFeeStructure(ctx context.Context, id uuid.UUID, req FeeStructureRequest) (resp *FeeStructureResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "CatalogService", "UpdateFeeStructure")
	defer func() { telemetry.EndSpan(span, err) }()

	fs, err := s.getStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	feeType, ids, err := s.validateStructure(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := fs.Update(req.MasterFeeID, feeType, req.FeeAmount, ids); err != nil {
		return nil, err
	}
	if err := s.structures.Save(ctx, fs); err != nil {
		return nil, err
	}
	out := ToFeeStructureResponse(fs)
	return &out, nil
}

// GetFeeStructure returns one fee structure
func (s *CatalogService) GetFeeStructure(ctx context.Context, id uuid.UUID) (*FeeStructureResponse, error) {
	fs, err := s.getStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToFeeStructureResponse(fs)
	return &out, nil
}

// ListFeeStructures lists fee structures, optionally only those applying to a year-level
func (s *CatalogService) ListFeeStructures(ctx context.Context, yearLevelID *int64) ([]FeeStructureResponse, error) {
	list, err := s.structures.FindAll(ctx, fee.FeeStructureFilter{YearLevelID: yearLevelID})
	if err != nil {
		return nil, err
	}
	out := make([]FeeStructureResponse, 0, len(list))
	for i := range list {
		out = append(out, ToFeeStructureResponse(&list[i]))
	}
	return out, nil
}

// DeleteFeeStructure removes a fee structure no installment references
func (s *CatalogService) DeleteFeeStructure(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getStructure(ctx, id); err != nil {
		return err
	}
	count, err := s.fees.CountByFeeStructure(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.NewConflictError("Fee structure %s is referenced by %d student fee(s)", id, count)
	}
	return s.structures.Delete(ctx, id)
}

func (s *CatalogService) getStructure(ctx context.Context, id uuid.UUID) (*fee.FeeStructure, error) {
	fs, err := s.structures.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("FeeStructure not found: %s", id)
		}
		return nil, err
	}
	return fs, nil
}

// validateStructure checks the master fee, fee type, amount and every year-level id
func (s *CatalogService) validateStructure(ctx context.Context, req FeeStructureRequest) (fee.FeeType, []int64, error) {
	if _, err := s.getMasterFee(ctx, req.MasterFeeID); err != nil {
		return "", nil, err
	}
	feeType, err := fee.ParseFeeType(req.FeeType)
	if err != nil {
		return "", nil, err
	}
	if req.FeeAmount.IsNegative() {
		return "", nil, shared.NewBadRequestError("feeAmount must be zero or greater")
	}
	ids := fee.NormalizeYearLevelIDs(req.YearLevelIDs)
	if len(ids) == 0 {
		return "", nil, shared.NewBadRequestError("yearLevelIds must not be empty")
	}
	for _, id := range ids {
		if _, err := s.roster.GetYearLevelByID(ctx, id); err != nil {
			if fee.IsRosterNotFound(err) {
				return "", nil, shared.NewNotFoundError("YearLevel not found: %d", id)
			}
			s.logger.Warn("Roster unavailable while validating year level",
				zap.Int64("year_level_id", id), zap.Error(err))
			return "", nil, shared.NewBadGatewayError(err, "Roster service failed while loading year level %d", id)
		}
	}
	return feeType, ids, nil
}
