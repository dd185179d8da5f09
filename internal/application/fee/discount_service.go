package fee

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiscountService approves, re-prices and lists per-student fee discounts
type DiscountService struct {
	structures fee.FeeStructureRepository
	discounts  fee.DiscountRepository
	fees       fee.StudentFeeRepository
	roster     fee.RosterLookup
	levels     *levelResolver
	policy     fee.DiscountPolicy
	logger     *zap.Logger
}

// DiscountServiceConfig holds the dependencies of the discount service
type DiscountServiceConfig struct {
	Structures fee.FeeStructureRepository
	Discounts  fee.DiscountRepository
	StudentFee fee.StudentFeeRepository
	Roster     fee.RosterLookup
	LevelCache fee.YearLevelNameCache
	Settings   Settings
	Logger     *zap.Logger
}

// NewDiscountService creates a new DiscountService
func NewDiscountService(cfg DiscountServiceConfig) *DiscountService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := cfg.Settings.withDefaults()
	return &DiscountService{
		structures: cfg.Structures,
		discounts:  cfg.Discounts,
		fees:       cfg.StudentFee,
		roster:     cfg.Roster,
		levels: &levelResolver{
			roster: cfg.Roster,
			cache:  cfg.LevelCache,
			ttl:    settings.YearLevelTTL,
			logger: logger,
		},
		policy: *settings.Policy,
		logger: logger,
	}
}

// ApplyDiscount approves a percentage discount for a student on a fee structure
// the student's level is billed for.
func (s *DiscountService) ApplyDiscount(ctx context.Context, principal *auth.Principal, req ApplyDiscountRequest) (resp *DiscountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "DiscountService", "ApplyDiscount",
		telemetry.SpanAttrStudentYearID, req.StudentYearID)
	defer func() { telemetry.EndSpan(span, err) }()

	sy, err := s.roster.GetStudentYearLevel(ctx, req.StudentYearID)
	if err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", req.StudentYearID)
	}
	structure, err := s.getStructure(ctx, req.FeeStructureID)
	if err != nil {
		return nil, err
	}
	matches, err := s.levels.structureMatchesLevel(ctx, structure, sy.LevelName)
	if err != nil {
		return nil, err
	}
	if !matches {
		return nil, shared.NewBadRequestError("Fee %s does not apply to the student's class: %s",
			structure.FeeType, sy.LevelName)
	}

	discount, err := fee.NewAppliedFeeDiscount(req.StudentYearID, structure, req.DiscountName,
		req.DiscountPercent, s.policy.ApplyCeiling, principal.UserIDPtr())
	if err != nil {
		return nil, err
	}

	existing, err := findOptional(s.discounts.FindByStudentYearAndStructure(ctx, req.StudentYearID, structure.ID))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewConflictError("A discount is already applied to %s for student year %d",
			structure.FeeType, req.StudentYearID)
	}

	if err := s.discounts.Save(ctx, discount); err != nil {
		return nil, err
	}
	s.logger.Info("Discount applied",
		zap.Int64("student_year_id", req.StudentYearID),
		zap.String("fee_structure_id", structure.ID.String()),
		zap.String("discount_amount", money(discount.DiscountAmount)),
		zap.Int64p("approved_by", discount.ApprovedBy))

	out := ToDiscountResponse(discount, structure)
	return &out, nil
}

// UpdateDiscount re-prices a discount from the structure's current fee amount
func (s *DiscountService) UpdateDiscount(ctx context.Context, principal *auth.Principal, id uuid.UUID, req UpdateDiscountRequest) (*DiscountResponse, error) {
	discount, err := s.discounts.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("AppliedFeeDiscount not found: %s", id)
		}
		return nil, err
	}
	structure, err := s.getStructure(ctx, discount.FeeStructureID)
	if err != nil {
		return nil, err
	}
	if err := discount.Reprice(structure, req.DiscountName, req.DiscountPercent,
		s.policy.UpdateCeiling, principal.UserIDPtr()); err != nil {
		return nil, err
	}
	if err := s.discounts.Save(ctx, discount); err != nil {
		return nil, err
	}
	s.logger.Info("Discount updated",
		zap.String("discount_id", id.String()),
		zap.String("discount_amount", money(discount.DiscountAmount)))

	out := ToDiscountResponse(discount, structure)
	return &out, nil
}

// ListDiscounts returns every applied discount
func (s *DiscountService) ListDiscounts(ctx context.Context) ([]DiscountResponse, error) {
	list, err := s.discounts.FindAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.toResponses(ctx, list)
}

// ListStudentDiscounts returns the structures billed to the student's level
// together with the student's approved discounts.
func (s *DiscountService) ListStudentDiscounts(ctx context.Context, studentYearID int64) (*StudentDiscountsResponse, error) {
	sy, err := s.roster.GetStudentYearLevel(ctx, studentYearID)
	if err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", studentYearID)
	}
	level, err := s.levels.resolve(ctx, sy)
	if err != nil {
		return nil, err
	}
	available, err := s.structures.FindAll(ctx, fee.FeeStructureFilter{YearLevelID: &level.ID})
	if err != nil {
		return nil, err
	}
	applied, err := s.discounts.FindAll(ctx, &studentYearID)
	if err != nil {
		return nil, err
	}
	appliedResp, err := s.toResponses(ctx, applied)
	if err != nil {
		return nil, err
	}

	resp := &StudentDiscountsResponse{
		AvailableFees:    make([]FeeStructureResponse, 0, len(available)),
		AppliedDiscounts: appliedResp,
	}
	for i := range available {
		resp.AvailableFees = append(resp.AvailableFees, ToFeeStructureResponse(&available[i]))
	}
	return resp, nil
}

// DeleteDiscount removes a discount that no installment has folded in yet
func (s *DiscountService) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	discount, err := s.discounts.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return shared.NewNotFoundError("AppliedFeeDiscount not found: %s", id)
		}
		return err
	}
	applied, err := s.fees.ExistsAppliedDiscount(ctx, discount.StudentYearID, discount.FeeStructureID)
	if err != nil {
		return err
	}
	if applied {
		return shared.NewConflictError("Discount %s has already been applied to a student fee", id)
	}
	return s.discounts.Delete(ctx, id)
}

func (s *DiscountService) getStructure(ctx context.Context, id uuid.UUID) (*fee.FeeStructure, error) {
	fs, err := s.structures.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("FeeStructure not found: %s", id)
		}
		return nil, err
	}
	return fs, nil
}

func (s *DiscountService) toResponses(ctx context.Context, list []fee.AppliedFeeDiscount) ([]DiscountResponse, error) {
	if len(list) == 0 {
		return []DiscountResponse{}, nil
	}
	ids := make([]uuid.UUID, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].FeeStructureID)
	}
	structures, err := s.structures.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*fee.FeeStructure, len(structures))
	for i := range structures {
		byID[structures[i].ID] = &structures[i]
	}
	out := make([]DiscountResponse, 0, len(list))
	for i := range list {
		out = append(out, ToDiscountResponse(&list[i], byID[list[i].FeeStructureID]))
	}
	return out, nil
}
