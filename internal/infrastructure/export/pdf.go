package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	feeapp "github.com/erp/schoolfees/internal/application/fee"
)

// ReceiptPDF renders a one-page fee receipt
func (r *Renderer) ReceiptPDF(doc *feeapp.ReceiptDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("export: nil receipt document")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	title := "Fee Receipt"
	if r.SchoolName != "" {
		title = r.SchoolName + " - " + title
	}
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}
	fee := doc.Fee
	line("Receipt No.", fee.ReceiptNumber)
	line("Issued", doc.IssuedAt.Format(time.RFC3339))
	line("Student", doc.StudentName)
	line("Scholar No.", doc.ScholarNumber)
	line("Class", doc.ClassName)
	line("School Year", doc.YearName)
	line("Fee Type", fee.FeeType)
	if fee.Month != nil {
		line("Month", time.Month(*fee.Month).String())
	}
	if !fee.DueDate.IsZero() {
		line("Due Date", fee.DueDate.Format(feeapp.DateLayout))
	}
	pdf.Ln(4)

	line(fmt.Sprintf("Fee Amount (%s)", r.Currency), fee.OriginalAmount)
	line("Discount", fee.DiscountAmount)
	line("Penalty", fee.PenaltyAmount)
	line("Paid", fee.PaidAmount)
	line("Balance Due", fee.DueAmount)
	line("Status", fee.Status)
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range doc.Payments {
		pdf.CellFormat(40, 6, p.Date.Format(feeapp.DateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, p.Method, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, p.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, p.Amount, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
