package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/templeseva/donation-backend/models"
)

// RenderReport renders the admin export PDF: a summary block followed by one
// itemized block per record.
func RenderReport(payments []models.Payment, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "ISKCON Payments Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Generated on: "+now.Format("02/01/2006, 3:04:05 pm"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	var totalRevenue float64
	completed := 0
	for _, p := range payments {
		if p.Done {
			totalRevenue += p.Amount
			completed++
		}
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Payments: %d", len(payments)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Completed Payments: %d", completed), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Total Revenue: Rs "+FormatINR(totalRevenue), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Payment Details", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)

	for i, p := range payments {
		status := "Pending"
		if p.Done {
			status = "Completed"
		}
		pdf.CellFormat(0, 5, fmt.Sprintf("%d. %s - Rs %s", i+1, orNA(p.Name), FormatINR(p.Amount)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, "    Contact: "+orNA(p.ContactNo), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, "    Transaction ID: "+orNA(p.TransactionID), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, "    Status: "+status, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, "    Date: "+p.UpdatedAt.Format("02/01/2006, 3:04:05 pm"), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
