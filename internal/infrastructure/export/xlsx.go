// Package export renders fee reports as spreadsheets and receipts as PDF documents.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	feeapp "github.com/erp/schoolfees/internal/application/fee"
)

// Renderer implements feeapp.ReportRenderer with excelize and gofpdf
type Renderer struct {
	SchoolName string
	Currency   string
}

// NewRenderer creates a Renderer
func NewRenderer(schoolName, currency string) *Renderer {
	if currency == "" {
		currency = "INR"
	}
	return &Renderer{SchoolName: schoolName, Currency: currency}
}

var _ feeapp.ReportRenderer = (*Renderer)(nil)

const (
	unpaidSheet  = "unpaid"
	overdueSheet = "overdue"
)

var unpaidHeader = []any{
	"Student ID", "Student", "Scholar No.", "Month", "School Year",
	"Year Level", "Fee ID", "Fee Type", "Original Amount",
	"Student Total", "Student Paid", "Student Due",
}

// UnpaidFeesXLSX writes one row per unpaid fee, repeating the student's totals
func (r *Renderer) UnpaidFeesXLSX(report *feeapp.UnpaidReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", unpaidSheet)

	if err := f.SetSheetRow(unpaidSheet, "A1", &unpaidHeader); err != nil {
		return nil, err
	}
	row := 2
	if report != nil {
		for _, g := range report.UnpaidFees {
			for _, yl := range g.YearLevelFeesGrouped {
				for _, fee := range yl.Fees {
					values := []any{
						g.Student.ID, g.Student.Name, g.Student.ScholarNumber, g.Month, g.SchoolYear,
						yl.YearLevel, fee.ID.String(), fee.FeeType, fee.OriginalAmount,
						g.TotalAmount, g.PaidAmount, g.DueAmount,
					}
					if err := f.SetSheetRow(unpaidSheet, fmt.Sprintf("A%d", row), &values); err != nil {
						return nil, err
					}
					row++
				}
			}
		}
	}
	if err := styleHeader(f, unpaidSheet, len(unpaidHeader)); err != nil {
		return nil, err
	}
	return write(f)
}

var overdueHeader = []any{
	"Fee ID", "Student Year ID", "Student", "Scholar No.", "Class",
	"Fee Type", "Month", "Due Date", "Original Amount", "Paid Amount", "Due Amount", "Status",
}

// OverdueFeesXLSX writes the overdue report
func (r *Renderer) OverdueFeesXLSX(rows []feeapp.OverdueFee) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", overdueSheet)

	if err := f.SetSheetRow(overdueSheet, "A1", &overdueHeader); err != nil {
		return nil, err
	}
	for i, o := range rows {
		values := []any{
			o.FeeID.String(), o.StudentYearID, o.StudentName, o.ScholarNumber, o.ClassName,
			o.FeeType, o.Month, o.DueDate.Format(feeapp.DateLayout),
			o.OriginalAmount, o.PaidAmount, o.DueAmount, o.Status,
		}
		if err := f.SetSheetRow(overdueSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, err
		}
	}
	if err := styleHeader(f, overdueSheet, len(overdueHeader)); err != nil {
		return nil, err
	}
	return write(f)
}

func styleHeader(f *excelize.File, sheet string, columns int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func write(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
