package fee_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfee "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
)

func TestReportService_PreviewFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuition := f.seedStructure(t, fee.FeeTypeTuition, "1000", levelGrade5)
	admission := f.seedStructure(t, fee.FeeTypeAdmission, "2000", levelGrade5)
	f.seedStructure(t, fee.FeeTypeExam, "700", levelGrade6)

	_, err := f.discounts.ApplyDiscount(ctx, f.principal, appfee.ApplyDiscountRequest{
		StudentYearID: studentYearID, FeeStructureID: admission, DiscountName: "Early bird", DiscountPercent: dec("10"),
	})
	require.NoError(t, err)
	_, err = f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees: []appfee.FeeLineItem{
			{FeeID: tuition, Month: intPtr(1), Amount: dec("1000")},
			{FeeID: tuition, Month: intPtr(2), Amount: dec("400")},
			{FeeID: admission, Amount: dec("500")},
		},
	})
	require.NoError(t, err)
	feeRows := f.count(t, &models.StudentFeeModel{})

	preview, err := f.reports.PreviewFees(ctx, studentYearID)
	require.NoError(t, err)
	require.Len(t, preview, 12)

	jan := preview[0]
	assert.Equal(t, "JANUARY", jan.Month)
	require.Len(t, jan.Fees, 2)
	byType := map[string]appfee.FeeBrief{}
	for _, b := range jan.Fees {
		byType[b.FeeType] = b
	}
	assert.Equal(t, appfee.PreviewPaid, byType["TUITION"].Status)
	assert.Equal(t, "1800.00", byType["ADMISSION"].OriginalAmount)
	assert.Equal(t, "500.00", byType["ADMISSION"].PaidAmount)
	assert.Equal(t, "200.00", byType["ADMISSION"].AppliedDiscount)
	assert.Equal(t, appfee.PreviewPartiallyPaid, byType["ADMISSION"].Status)

	feb := preview[1]
	require.Len(t, feb.Fees, 1)
	assert.Equal(t, appfee.PreviewPartiallyPaid, feb.Fees[0].Status)
	assert.Equal(t, appfee.PreviewPending, preview[2].Fees[0].Status)

	again, err := f.reports.PreviewFees(ctx, studentYearID)
	require.NoError(t, err)
	assert.Equal(t, preview, again)
	assert.Equal(t, feeRows, f.count(t, &models.StudentFeeModel{}))
}

func TestReportService_PreviewFeesRosterErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reports.PreviewFees(ctx, 404)
	requireCode(t, err, shared.CodeNotFound)

	f.roster.students[studentYearID].LevelName = "Grade 9"
	_, err = f.reports.PreviewFees(ctx, studentYearID)
	requireCode(t, err, shared.CodeBadGateway)

	f.roster.down = true
	_, err = f.reports.PreviewFees(ctx, studentYearID)
	requireCode(t, err, shared.CodeServiceUnavailable)
}

func TestReportService_OverdueFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tuition := f.seedStructure(t, fee.FeeTypeTuition, "1000", levelGrade5)

	_, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees: []appfee.FeeLineItem{
			{FeeID: tuition, Month: intPtr(4), Amount: dec("100")},
			{FeeID: tuition, Month: intPtr(8), Amount: dec("0")},
		},
	})
	require.NoError(t, err)

	rows, err := f.reports.GetOverdueFees(ctx, appfee.OverdueQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Overdue", rows[0].Status)
	assert.Equal(t, "APRIL", rows[0].Month)
	assert.Equal(t, "925.00", rows[0].DueAmount)
	assert.Equal(t, "Asha Rao", rows[0].StudentName)
	assert.Equal(t, "grade 5", rows[0].ClassName)

	f.roster.down = true
	rows, err = f.reports.GetOverdueFees(ctx, appfee.OverdueQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "N/A", rows[0].StudentName)
	assert.Equal(t, "N/A", rows[0].ScholarNumber)
}

func TestReportService_PendingAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	form := f.seedStructure(t, fee.FeeTypeForm, "50", levelGrade5)

	_, err := f.discounts.ApplyDiscount(ctx, f.principal, appfee.ApplyDiscountRequest{
		StudentYearID: studentYearID, FeeStructureID: exam, DiscountName: "Merit", DiscountPercent: dec("20"),
	})
	require.NoError(t, err)
	_, err = f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees: []appfee.FeeLineItem{
			{FeeID: exam, Amount: dec("150")},
			{FeeID: form, Amount: dec("50")},
		},
	})
	require.NoError(t, err)

	_, err = f.reports.GetPendingFees(ctx, 0)
	requireCode(t, err, shared.CodeBadRequest)

	pending, err := f.reports.GetPendingFees(ctx, schoolYearID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "400.00", pending[0].OriginalAmount)
	assert.Equal(t, "250.00", pending[0].DueAmount)
	assert.Equal(t, "PARTIAL", pending[0].Status)

	history, err := f.reports.GetFeeHistory(ctx, studentYearID, schoolYearID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		require.Len(t, h.Payments, 1)
		assert.Equal(t, "SUCCESS", h.Payments[0].Status)
		assert.Regexp(t, fee.ReceiptPattern, h.ReceiptNumber)
	}
}

func TestReportService_StudentUnpaidFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g5 := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	g6 := f.seedStructure(t, fee.FeeTypeExam, "700", levelGrade6)
	tuition := f.seedStructure(t, fee.FeeTypeTuition, "1000", levelGrade5)

	_, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees: []appfee.FeeLineItem{
			{FeeID: g5, Month: intPtr(6), Amount: dec("100")},
			{FeeID: tuition, Month: intPtr(6), Amount: dec("1000")},
		},
	})
	require.NoError(t, err)
	_, err = f.payments.InitiatePayment(ctx, appfee.InitiatePaymentRequest{
		StudentYearID: otherStudentID,
		SchoolYearID:  schoolYearID,
		Fees:          []appfee.FeeLineItem{{FeeID: g6, Amount: dec("700")}},
	})
	require.NoError(t, err)

	report, err := f.reports.GetStudentUnpaidFees(ctx)
	require.NoError(t, err)
	require.Len(t, report.UnpaidFees, 2)

	groups := map[string]appfee.UnpaidGroup{}
	for _, g := range report.UnpaidFees {
		groups[g.Student.Name] = g
	}

	asha := groups["Asha Rao"]
	assert.Equal(t, int64(100), asha.Student.ID)
	assert.Equal(t, "JUNE", asha.Month)
	assert.Equal(t, "3", asha.SchoolYear)
	require.Len(t, asha.YearLevelFeesGrouped, 1)
	assert.Len(t, asha.YearLevelFeesGrouped[0].Fees, 1)
	assert.Equal(t, "400.00", asha.DueAmount)

	ravi := groups["Ravi Kumar"]
	assert.Equal(t, otherStudentID, ravi.Student.ID)
	assert.Equal(t, "Unknown", ravi.Month)
	assert.Equal(t, "700.00", ravi.TotalAmount)
}

type stubRenderer struct {
	unpaid  *appfee.UnpaidReport
	overdue []appfee.OverdueFee
	receipt *appfee.ReceiptDocument
}

func (r *stubRenderer) UnpaidFeesXLSX(report *appfee.UnpaidReport) ([]byte, error) {
	r.unpaid = report
	return []byte("xlsx"), nil
}

func (r *stubRenderer) OverdueFeesXLSX(rows []appfee.OverdueFee) ([]byte, error) {
	r.overdue = rows
	return []byte("xlsx"), nil
}

func (r *stubRenderer) ReceiptPDF(doc *appfee.ReceiptDocument) ([]byte, error) {
	r.receipt = doc
	return []byte("%PDF"), nil
}

func TestReportService_RenderReceiptPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	resp, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("500")}},
	})
	require.NoError(t, err)

	renderer := &stubRenderer{}
	reports := appfee.NewReportService(appfee.ReportServiceConfig{
		StudentFee: persistenceStudentFees(f),
		Payments:   persistencePayments(f),
		Roster:     f.roster,
		Renderer:   renderer,
		Clock:      fixedClock(),
	})

	out, err := reports.RenderReceiptPDF(ctx, resp.Data[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), out)
	require.NotNil(t, renderer.receipt)
	assert.Equal(t, "Asha Rao", renderer.receipt.StudentName)
	assert.Equal(t, "PAID", renderer.receipt.Fee.Status)
	assert.Len(t, renderer.receipt.Payments, 1)
	assert.Equal(t, fixedNow, renderer.receipt.IssuedAt)
}
