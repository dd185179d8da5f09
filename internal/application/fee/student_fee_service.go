package fee

import (
	"context"
	"fmt"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var minOnlineTotal = decimal.NewFromInt(1)

// StudentFeeService maintains the student fee ledger: single installments
// and multi-fee submissions, cash, cheque or online.
type StudentFeeService struct {
	txScope TransactionScope
	roster  fee.RosterLookup
	gateway fee.PaymentGateway
	levels  *levelResolver
	ledger  *ledger
	logger  *zap.Logger
}

// StudentFeeServiceConfig holds the dependencies of the student fee service
type StudentFeeServiceConfig struct {
	TxScope    TransactionScope
	Roster     fee.RosterLookup
	Gateway    fee.PaymentGateway
	LevelCache fee.YearLevelNameCache
	Settings   Settings
	Metrics    Metrics
	Clock      Clock
	Logger     *zap.Logger
}

// NewStudentFeeService creates a new StudentFeeService
func NewStudentFeeService(cfg StudentFeeServiceConfig) *StudentFeeService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	settings := cfg.Settings.withDefaults()
	return &StudentFeeService{
		txScope: cfg.TxScope,
		roster:  cfg.Roster,
		gateway: cfg.Gateway,
		levels: &levelResolver{
			roster: cfg.Roster,
			cache:  cfg.LevelCache,
			ttl:    settings.YearLevelTTL,
			logger: logger,
		},
		ledger: &ledger{
			receipts: NewReceiptGenerator(settings.ReceiptMaxRetries, cfg.Clock, metrics, logger),
			settings: settings,
			clock:    cfg.Clock,
			metrics:  metrics,
		},
		logger: logger,
	}
}

// CreateOrUpdateStudentFee creates or refreshes one installment and records
// an offline payment against it.
func (s *StudentFeeService) CreateOrUpdateStudentFee(ctx context.Context, principal *auth.Principal, req StudentFeeRequest) (resp *StudentFeeResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "StudentFeeService", "CreateOrUpdateStudentFee",
		telemetry.SpanAttrStudentYearID, req.StudentYearID,
		telemetry.SpanAttrSchoolYearID, req.SchoolYearID)
	defer func() { telemetry.EndSpan(span, err) }()

	method := fee.PaymentMethodCash
	if req.PaymentMethod != "" {
		if method, err = fee.ParsePaymentMethod(req.PaymentMethod); err != nil {
			return nil, err
		}
	}
	if req.AmountPaid.IsNegative() {
		return nil, shared.NewBadRequestError("amountPaid must be zero or greater")
	}

	sy, err := s.roster.GetStudentYearLevel(ctx, req.StudentYearID)
	if err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", req.StudentYearID)
	}
	level, err := s.levels.resolve(ctx, sy)
	if err != nil {
		return nil, err
	}

	var sf *fee.StudentFee
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		structure, err := loadStructure(ctx, repos, req.FeeStructureID)
		if err != nil {
			return err
		}
		if _, err := s.roster.GetSchoolYear(ctx, req.SchoolYearID); err != nil {
			return rosterAbort(err, "SchoolYear", req.SchoolYearID)
		}
		if !structure.AppliesTo(level.ID) {
			return shared.NewBadRequestError("Selected fee does not belong to the student's class: %s", sy.LevelName)
		}

		key := fee.StudentFeeKey{
			StudentYearID:  req.StudentYearID,
			FeeStructureID: structure.ID,
			Month:          req.Month,
			SchoolYearID:   req.SchoolYearID,
		}
		sf, err = s.ledger.prepare(ctx, repos, key, structure, req.DueDate)
		if err != nil {
			return err
		}
		s.ledger.applyPenalty(sf)

		if req.AmountPaid.GreaterThan(sf.DueAmount) {
			return shared.NewBadRequestError("Amount cannot exceed due amount: %s", money(sf.DueAmount))
		}

		if !method.IsOnline() && req.AmountPaid.IsPositive() {
			if _, err := s.ledger.record(ctx, repos, sf, journalEntry{
				amount:     req.AmountPaid,
				method:     method,
				status:     fee.PaymentStatusSuccess,
				cheque:     req.ChequeNumber,
				receivedBy: principal.UserIDPtr(),
			}); err != nil {
				return err
			}
		}
		return s.ledger.settle(ctx, repos, sf)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Student fee saved",
		zap.Int64("student_year_id", sf.StudentYearID),
		zap.String("student_fee_id", sf.ID.String()),
		zap.String("status", sf.Status.String()),
		zap.String("due_amount", money(sf.DueAmount)))
	out := ToStudentFeeResponse(sf)
	return &out, nil
}

// submitLine is one prepared installment of a submission
type submitLine struct {
	sf     *fee.StudentFee
	amount decimal.Decimal
}

// SubmitFee records a payment for several installments at once. Online
// submissions open one gateway order for the total and leave the journal rows
// PENDING; a gateway failure rolls back every row written by the call.
func (s *StudentFeeService) SubmitFee(ctx context.Context, principal *auth.Principal, req SubmitFeeRequest) (resp *SubmitFeeResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "StudentFeeService", "SubmitFee",
		telemetry.SpanAttrStudentYearID, req.StudentYearID,
		telemetry.SpanAttrLineItems, len(req.Fees))
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.Fees) == 0 {
		return nil, shared.NewBadRequestError("student_year_id and fees are required")
	}
	method := fee.PaymentMethodCash
	if req.PaymentMethod != "" {
		if method, err = fee.ParsePaymentMethod(req.PaymentMethod); err != nil {
			return nil, err
		}
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentMode, method.String())

	if _, err := s.roster.GetStudentYearLevel(ctx, req.StudentYearID); err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", req.StudentYearID)
	}

	resp = &SubmitFeeResponse{}
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines := make([]submitLine, 0, len(req.Fees))
		seen := make(map[string]struct{}, len(req.Fees))
		total := decimal.Zero

		for i, item := range req.Fees {
			lineKey := fmt.Sprintf("%s/%s", item.FeeID, monthName(item.Month, "-"))
			if _, dup := seen[lineKey]; dup {
				return shared.NewBadRequestError("fees[%d]: fee %s is listed twice for the same month", i, item.FeeID)
			}
			seen[lineKey] = struct{}{}
			amount := valueobject.Round(item.Amount)
			if amount.IsNegative() {
				return shared.NewBadRequestError("fees[%d]: amount must be zero or greater", i)
			}
			structure, err := loadStructure(ctx, repos, item.FeeID)
			if err != nil {
				return err
			}
			key := fee.StudentFeeKey{
				StudentYearID:  req.StudentYearID,
				FeeStructureID: structure.ID,
				Month:          item.Month,
				SchoolYearID:   req.SchoolYearID,
			}
			sf, err := s.ledger.prepare(ctx, repos, key, structure, item.DueDate)
			if err != nil {
				return err
			}
			maxPayable := valueobject.NonNegative(sf.NetAmount().Sub(sf.PaidAmount))
			if amount.GreaterThan(maxPayable) {
				return shared.NewBadRequestError("Amount cannot exceed due amount after discount: %s", money(maxPayable))
			}
			lines = append(lines, submitLine{sf: sf, amount: amount})
			total = total.Add(amount)
		}

		var gatewayRef fee.GatewayRef
		if method.IsOnline() {
			if total.LessThan(minOnlineTotal) {
				return shared.NewBadRequestError("Paid amount must be at least 1 %s to create a gateway order", s.ledger.settings.Currency)
			}
			receipt, err := s.ledger.receipts.Next(ctx, repos.StudentFeeRepo())
			if err != nil {
				return err
			}
			order, err := s.gateway.CreateOrder(ctx, fee.OrderRequest{
				AmountMinor: valueobject.MinorUnits(total),
				Currency:    s.ledger.settings.Currency,
				Receipt:     receipt,
			})
			if err != nil {
				s.logger.Error("Gateway order creation failed",
					zap.Int64("student_year_id", req.StudentYearID),
					zap.String("amount", money(total)),
					zap.Error(err))
				return gatewayError(err)
			}
			gatewayRef.OrderID = order.ID
			resp.RazorpayOrderID = order.ID
			resp.ReceiptNumber = receipt
			telemetry.SetAttributes(span, telemetry.SpanAttrOrderID, order.ID)
		}

		status := fee.PaymentStatusSuccess
		if method.IsOnline() {
			status = fee.PaymentStatusPending
		}
		cheque := req.ChequeNumber
		for _, line := range lines {
			if line.amount.IsPositive() {
				entry := journalEntry{
					amount:     line.amount,
					method:     method,
					status:     status,
					cheque:     cheque,
					receivedBy: principal.UserIDPtr(),
					gateway:    gatewayRef,
				}
				if cheque == "" && req.ChequeNumber != "" {
					entry.notes = fmt.Sprintf("cheque %s", req.ChequeNumber)
				}
				if _, err := s.ledger.record(ctx, repos, line.sf, entry); err != nil {
					return err
				}
				// one cheque settles the whole submission; it is stored on the first row
				cheque = ""
			}
			s.ledger.applyPenalty(line.sf)
			if err := s.ledger.settle(ctx, repos, line.sf); err != nil {
				return err
			}
		}

		summaries := make([]FeeSummary, 0, len(lines))
		for _, line := range lines {
			summaries = append(summaries, toFeeSummary(line.sf))
		}
		if method.IsOnline() {
			resp.Message = "Payment initiated successfully - status pending."
			resp.Fees = summaries
		} else {
			resp.Message = fmt.Sprintf("%d fee records submitted successfully!", len(lines))
			resp.TotalAmountPaid = money(total)
			resp.PaymentMode = method.String()
			resp.Data = summaries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Fees submitted",
		zap.Int64("student_year_id", req.StudentYearID),
		zap.String("payment_mode", method.String()),
		zap.Int("line_items", len(req.Fees)),
		zap.String("order_id", resp.RazorpayOrderID))
	return resp, nil
}
