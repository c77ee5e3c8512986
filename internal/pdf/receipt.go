package pdf

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

// RenderReceipt writes a one-page payment receipt.
func RenderReceipt(w io.Writer, detail model.PaymentDetail) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "Payment Receipt", "", 1, "C", false, 0, "")
	doc.Ln(6)

	doc.SetFont("Helvetica", "", 12)
	line := func(label, value string) {
		doc.CellFormat(0, 8, fmt.Sprintf("%s: %s", label, value), "", 1, "L", false, 0, "")
	}
	line("Receipt No", detail.Payment.ReceiptNo)
	line("Student", detail.Student.Name)
	line("Batch", detail.Batch.BatchName)
	line("Amount Paid", fmt.Sprintf("Rs. %d", detail.Payment.AmountPaid))
	line("Mode", detail.Payment.Mode)
	line("Date", detail.Payment.Date.Format("Mon Jan 02 2006"))

	return doc.Output(w)
}
