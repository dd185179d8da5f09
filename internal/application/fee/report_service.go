package fee

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const notAvailable = "N/A"

// Preview statuses
const (
	PreviewPaid          = "Paid"
	PreviewPartiallyPaid = "Partially Paid"
	PreviewPending       = "Pending"
)

// ReceiptDocument is everything a printed receipt shows
type ReceiptDocument struct {
	Fee           StudentFeeResponse
	StudentName   string
	ScholarNumber string
	ClassName     string
	YearName      string
	Payments      []HistoryPayment
	IssuedAt      time.Time
}

// ReportRenderer turns report read models into downloadable documents
type ReportRenderer interface {
	UnpaidFeesXLSX(report *UnpaidReport) ([]byte, error)
	OverdueFeesXLSX(rows []OverdueFee) ([]byte, error)
	ReceiptPDF(doc *ReceiptDocument) ([]byte, error)
}

// ReportService builds the read-only fee reports
type ReportService struct {
	fees       fee.StudentFeeRepository
	structures fee.FeeStructureRepository
	discounts  fee.DiscountRepository
	payments   fee.FeePaymentRepository
	roster     fee.RosterLookup
	levels     *levelResolver
	renderer   ReportRenderer
	clock      Clock
	logger     *zap.Logger
}

// ReportServiceConfig holds the dependencies of the report service
type ReportServiceConfig struct {
	StudentFee fee.StudentFeeRepository
	Structures fee.FeeStructureRepository
	Discounts  fee.DiscountRepository
	Payments   fee.FeePaymentRepository
	Roster     fee.RosterLookup
	LevelCache fee.YearLevelNameCache
	Renderer   ReportRenderer
	Settings   Settings
	Clock      Clock
	Logger     *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(cfg ReportServiceConfig) *ReportService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := cfg.Settings.withDefaults()
	return &ReportService{
		fees:       cfg.StudentFee,
		structures: cfg.Structures,
		discounts:  cfg.Discounts,
		payments:   cfg.Payments,
		roster:     cfg.Roster,
		levels: &levelResolver{
			roster: cfg.Roster,
			cache:  cfg.LevelCache,
			ttl:    settings.YearLevelTTL,
			logger: logger,
		},
		renderer: cfg.Renderer,
		clock:    cfg.Clock,
		logger:   logger,
	}
}

// PreviewFees lays out, month by month, every fee billed to the student's
// level with what has been paid against it. It reads only.
func (s *ReportService) PreviewFees(ctx context.Context, studentYearID int64) ([]MonthPreview, error) {
	sy, err := s.roster.GetStudentYearLevel(ctx, studentYearID)
	if err != nil {
		if fee.IsRosterNotFound(err) {
			return nil, shared.NewNotFoundError("StudentYearLevel not found: %d", studentYearID)
		}
		return nil, shared.NewServiceUnavailableError(err, "StudentYearLevel service unavailable for id: %d", studentYearID)
	}
	level, err := s.levels.resolve(ctx, sy)
	if err != nil {
		return nil, err
	}
	structures, err := s.structures.FindAll(ctx, fee.FeeStructureFilter{YearLevelID: &level.ID})
	if err != nil {
		return nil, err
	}
	rows, err := s.fees.FindByStudentYear(ctx, studentYearID)
	if err != nil {
		return nil, err
	}

	discounts := make(map[uuid.UUID]decimal.Decimal, len(structures))
	for i := range structures {
		total, err := s.discounts.SumAmount(ctx, studentYearID, structures[i].ID)
		if err != nil {
			return nil, err
		}
		discounts[structures[i].ID] = total
	}

	out := make([]MonthPreview, 0, 12)
	for m := 1; m <= 12; m++ {
		month := m
		briefs := make([]FeeBrief, 0, len(structures))
		for i := range structures {
			fs := &structures[i]
			if fs.FeeType == fee.FeeTypeAdmission && month != 1 {
				continue
			}
			paid := decimal.Zero
			for j := range rows {
				if rows[j].FeeStructureID != fs.ID {
					continue
				}
				if fs.FeeType != fee.FeeTypeAdmission && (rows[j].Month == nil || *rows[j].Month != month) {
					continue
				}
				paid = paid.Add(rows[j].PaidAmount)
			}
			base := fs.FeeAmount.Sub(discounts[fs.ID])
			if base.IsNegative() {
				base = decimal.Zero
			}
			briefs = append(briefs, FeeBrief{
				FeeID:           fs.ID,
				FeeType:         fs.FeeType.String(),
				OriginalAmount:  money(base),
				PaidAmount:      money(paid),
				Status:          previewStatus(paid, base),
				AppliedDiscount: money(discounts[fs.ID]),
			})
		}
		if len(briefs) == 0 {
			continue
		}
		out = append(out, MonthPreview{Month: monthName(&month, ""), Fees: briefs})
	}
	return out, nil
}

func previewStatus(paid, base decimal.Decimal) string {
	switch {
	case base.IsPositive() && paid.GreaterThanOrEqual(base):
		return PreviewPaid
	case paid.IsPositive():
		return PreviewPartiallyPaid
	}
	return PreviewPending
}

// studentInfo is the roster view of a student used to label report rows
type studentInfo struct {
	studentID     *int64
	name          string
	scholarNumber string
	className     string
	yearName      string
}

// studentLookup resolves student-years once per report and degrades to N/A
type studentLookup struct {
	roster fee.RosterLookup
	logger *zap.Logger
	seen   map[int64]studentInfo
}

func (s *ReportService) newStudentLookup() *studentLookup {
	return &studentLookup{roster: s.roster, logger: s.logger, seen: make(map[int64]studentInfo)}
}

func (l *studentLookup) get(ctx context.Context, studentYearID int64) studentInfo {
	if info, ok := l.seen[studentYearID]; ok {
		return info
	}
	info := studentInfo{name: notAvailable, scholarNumber: notAvailable, className: notAvailable, yearName: notAvailable}
	sy, err := l.roster.GetStudentYearLevel(ctx, studentYearID)
	if err != nil {
		l.logger.Warn("Roster lookup failed, labelling report row N/A",
			zap.Int64("student_year_id", studentYearID), zap.Error(err))
	} else {
		info = studentInfo{
			studentID:     sy.StudentID,
			name:          orNA(sy.StudentName),
			scholarNumber: orNA(sy.ScholarNumber),
			className:     orNA(sy.LevelName),
			yearName:      orNA(sy.YearName),
		}
	}
	l.seen[studentYearID] = info
	return info
}

func orNA(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}

// GetOverdueFees lists installments with an outstanding balance past their due date
func (s *ReportService) GetOverdueFees(ctx context.Context, q OverdueQuery) ([]OverdueFee, error) {
	rows, err := s.fees.FindOverdue(ctx, fee.OverdueFilter{
		StudentYearID: q.StudentYearID,
		Month:         q.Month,
		SchoolYearID:  q.SchoolYearID,
		Today:         todayFrom(s.clock.now()),
	})
	if err != nil {
		return nil, err
	}
	students := s.newStudentLookup()
	out := make([]OverdueFee, 0, len(rows))
	for i := range rows {
		sf := &rows[i]
		info := students.get(ctx, sf.StudentYearID)
		dueMonth := int(sf.DueDate.Month())
		out = append(out, OverdueFee{
			FeeID:          sf.ID,
			StudentYearID:  sf.StudentYearID,
			FeeType:        sf.FeeType.String(),
			OriginalAmount: money(sf.OriginalAmount),
			PaidAmount:     money(sf.PaidAmount),
			DueAmount:      money(sf.DueAmount),
			Status:         "Overdue",
			DueDate:        Date{sf.DueDate},
			StudentName:    info.name,
			ScholarNumber:  info.scholarNumber,
			ClassName:      info.className,
			Month:          monthName(&dueMonth, notAvailable),
		})
	}
	return out, nil
}

// GetPendingFees lists the school year's unsettled installments
func (s *ReportService) GetPendingFees(ctx context.Context, schoolYearID int64) ([]PendingFee, error) {
	if schoolYearID <= 0 {
		return nil, shared.NewBadRequestError("school_year_id is required")
	}
	rows, err := s.fees.FindUnsettledBySchoolYear(ctx, schoolYearID)
	if err != nil {
		return nil, err
	}
	out := make([]PendingFee, 0, len(rows))
	for i := range rows {
		sf := &rows[i]
		out = append(out, PendingFee{
			FeeID:          sf.ID,
			StudentYearID:  sf.StudentYearID,
			FeeType:        sf.FeeType.String(),
			Month:          monthName(sf.Month, notAvailable),
			OriginalAmount: money(sf.NetAmount()),
			PaidAmount:     money(sf.PaidAmount),
			DueAmount:      money(sf.DueAmount),
			Status:         sf.Status.String(),
		})
	}
	return out, nil
}

// GetFeeHistory lists a student's installments for a school year with their payments
func (s *ReportService) GetFeeHistory(ctx context.Context, studentYearID, schoolYearID int64) ([]HistoryEntry, error) {
	if studentYearID <= 0 || schoolYearID <= 0 {
		return nil, shared.NewBadRequestError("student_year_id and school_year_id are required")
	}
	rows, err := s.fees.FindByStudentYearAndSchoolYear(ctx, studentYearID, schoolYearID)
	if err != nil {
		return nil, err
	}
	byFee, err := s.paymentsFor(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(rows))
	for i := range rows {
		sf := &rows[i]
		out = append(out, HistoryEntry{
			FeeID:          sf.ID,
			FeeType:        sf.FeeType.String(),
			Month:          monthName(sf.Month, notAvailable),
			OriginalAmount: money(sf.OriginalAmount),
			PaidAmount:     money(sf.PaidAmount),
			DueAmount:      money(sf.DueAmount),
			PenaltyAmount:  money(sf.PenaltyAmount),
			Status:         sf.Status.String(),
			ReceiptNumber:  sf.ReceiptNumber,
			Payments:       byFee[sf.ID],
		})
	}
	return out, nil
}

func (s *ReportService) paymentsFor(ctx context.Context, rows []fee.StudentFee) (map[uuid.UUID][]HistoryPayment, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	byFee := make(map[uuid.UUID][]HistoryPayment, len(rows))
	for _, id := range ids {
		byFee[id] = []HistoryPayment{}
	}
	if len(ids) == 0 {
		return byFee, nil
	}
	payments, err := s.payments.FindByStudentFees(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		p := &payments[i]
		byFee[p.StudentFeeID] = append(byFee[p.StudentFeeID], HistoryPayment{
			ID:     p.ID,
			Amount: money(p.Amount),
			Method: p.PaymentMethod.String(),
			Status: p.Status.String(),
			Date:   p.PaymentDate,
		})
	}
	return byFee, nil
}

// GetStudentUnpaidFees groups PENDING and PARTIAL installments by student,
// then by year-level name, with per-student totals.
func (s *ReportService) GetStudentUnpaidFees(ctx context.Context) (*UnpaidReport, error) {
	rows, err := s.fees.FindByStatuses(ctx, fee.FeeStatusPending, fee.FeeStatusPartial)
	if err != nil {
		return nil, err
	}

	type group struct {
		view               UnpaidGroup
		total, paid, dueAm decimal.Decimal
	}
	students := s.newStudentLookup()
	order := make([]int64, 0)
	groups := make(map[int64]*group)

	for i := range rows {
		sf := &rows[i]
		info := students.get(ctx, sf.StudentYearID)
		key := sf.StudentYearID
		if info.studentID != nil {
			key = *info.studentID
		}
		g, ok := groups[key]
		if !ok {
			g = &group{view: UnpaidGroup{
				Student:              UnpaidStudent{ID: key, Name: info.name, ScholarNumber: info.scholarNumber},
				Month:                monthName(sf.Month, "Unknown"),
				SchoolYear:           strconv.FormatInt(sf.SchoolYearID, 10),
				YearLevelFeesGrouped: []YearLevelFees{},
			}}
			groups[key] = g
			order = append(order, key)
		}

		idx := -1
		for j := range g.view.YearLevelFeesGrouped {
			if g.view.YearLevelFeesGrouped[j].YearLevel == info.className {
				idx = j
				break
			}
		}
		if idx < 0 {
			g.view.YearLevelFeesGrouped = append(g.view.YearLevelFeesGrouped, YearLevelFees{YearLevel: info.className})
			idx = len(g.view.YearLevelFeesGrouped) - 1
		}
		yl := &g.view.YearLevelFeesGrouped[idx]
		yl.Fees = append(yl.Fees, UnpaidFee{
			ID:             sf.ID,
			FeeType:        sf.FeeType.String(),
			OriginalAmount: money(sf.OriginalAmount),
		})

		g.total = g.total.Add(sf.OriginalAmount)
		g.paid = g.paid.Add(sf.PaidAmount)
		g.dueAm = g.dueAm.Add(sf.DueAmount)
	}

	report := &UnpaidReport{UnpaidFees: make([]UnpaidGroup, 0, len(order))}
	for _, key := range order {
		g := groups[key]
		g.view.TotalAmount = money(g.total)
		g.view.PaidAmount = money(g.paid)
		g.view.DueAmount = money(g.dueAm)
		report.UnpaidFees = append(report.UnpaidFees, g.view)
	}
	return report, nil
}

// ExportUnpaidFeesXLSX renders the unpaid report as a spreadsheet
func (s *ReportService) ExportUnpaidFeesXLSX(ctx context.Context) ([]byte, error) {
	report, err := s.GetStudentUnpaidFees(ctx)
	if err != nil {
		return nil, err
	}
	return s.renderer.UnpaidFeesXLSX(report)
}

// ExportOverdueFeesXLSX renders the overdue report as a spreadsheet
func (s *ReportService) ExportOverdueFeesXLSX(ctx context.Context, q OverdueQuery) ([]byte, error) {
	rows, err := s.GetOverdueFees(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.renderer.OverdueFeesXLSX(rows)
}

// RenderReceiptPDF renders the receipt of one installment with its successful payments
func (s *ReportService) RenderReceiptPDF(ctx context.Context, studentFeeID uuid.UUID) ([]byte, error) {
	sf, err := s.fees.FindByID(ctx, studentFeeID)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("StudentFee not found: %s", studentFeeID)
		}
		return nil, err
	}
	byFee, err := s.paymentsFor(ctx, []fee.StudentFee{*sf})
	if err != nil {
		return nil, err
	}
	payments := make([]HistoryPayment, 0, len(byFee[sf.ID]))
	for _, p := range byFee[sf.ID] {
		if p.Status == fee.PaymentStatusSuccess.String() {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].Date.Before(payments[j].Date) })

	info := s.newStudentLookup().get(ctx, sf.StudentYearID)
	doc := &ReceiptDocument{
		Fee:           ToStudentFeeResponse(sf),
		StudentName:   info.name,
		ScholarNumber: info.scholarNumber,
		ClassName:     info.className,
		YearName:      info.yearName,
		Payments:      payments,
		IssuedAt:      s.clock.now(),
	}
	return s.renderer.ReceiptPDF(doc)
}
