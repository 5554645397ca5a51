// Package receipt renders donation receipts to single-page PDFs and persists
// them under a flat directory served back over HTTP.
package receipt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/templeseva/donation-backend/models"
)

// Data is the normalized payment projection a receipt is rendered from.
type Data struct {
	Name              string
	Amount            float64
	ContactNo         string
	TransactionID     string
	Method            string
	UpiID             string
	RazorpayPaymentID string
	ToUser            string
	UpdatedAt         time.Time
}

// FromPayment projects a completed payment record into renderer input.
func FromPayment(p *models.Payment) Data {
	return Data{
		Name:              p.Name,
		Amount:            p.Amount,
		ContactNo:         p.ContactNo,
		TransactionID:     p.TransactionID,
		Method:            p.Method,
		UpiID:             p.UpiID,
		RazorpayPaymentID: p.RazorpayPaymentID,
		ToUser:            p.ToUser,
		UpdatedAt:         p.UpdatedAt,
	}
}

// Receipt is a rendered document plus its persisted location.
type Receipt struct {
	FileName string
	URL      string
	Bytes    []byte
}

// Store writes rendered receipts to Dir and addresses them under BaseURL.
type Store struct {
	Dir     string
	BaseURL string // e.g. "http://localhost:8080", no trailing slash
}

func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	return &Store{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Generate renders d and writes the PDF to a fresh file. Filenames embed the
// transaction id plus a uniqueness suffix; existing files are never touched,
// so requesting the same receipt twice yields two files.
func (s *Store) Generate(d Data) (*Receipt, error) {
	var buf bytes.Buffer
	if err := render(&buf, d, time.Now()); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	fileName := fmt.Sprintf("receipt-%s-%s.pdf", sanitize(d.TransactionID), suffix)
	if err := os.WriteFile(filepath.Join(s.Dir, fileName), buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("save receipt: %w", err)
	}

	return &Receipt{
		FileName: fileName,
		URL:      s.BaseURL + "/api/receipts/" + fileName,
		Bytes:    buf.Bytes(),
	}, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

type row struct {
	Label string
	Value string
}

// rows builds the itemized key/value lines. Gateway-specific rows (UPI id,
// Razorpay payment id) are omitted for cash payments and when unset.
func rows(d Data, now time.Time) []row {
	method := "Online Payment"
	if d.Method == models.MethodCash {
		method = "Cash Payment"
	}

	out := []row{
		{"Name", orNA(d.Name)},
		{"Amount", "Rs " + FormatINR(d.Amount)},
		{"Contact", orNA(d.ContactNo)},
		{"Transaction ID", orNA(d.TransactionID)},
		{"Payment Method", method},
	}
	if d.Method != models.MethodCash && d.UpiID != "" {
		out = append(out, row{"UPI ID", d.UpiID})
	}
	if d.Method != models.MethodCash && d.RazorpayPaymentID != "" {
		out = append(out, row{"Razorpay Payment ID", d.RazorpayPaymentID})
	}

	when := d.UpdatedAt
	if when.IsZero() {
		when = now
	}
	out = append(out,
		row{"Date & Time", when.Format("02/01/2006, 3:04:05 pm")},
		row{"Recipient", orNA(d.ToUser)},
	)
	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func render(buf *bytes.Buffer, d Data, now time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "ISKCON", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetDrawColor(60, 60, 60)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	for i, r := range rows(d, now) {
		fill := i%2 == 0
		if fill {
			pdf.SetFillColor(248, 249, 250)
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(55, 9, r.Label, "", 0, "L", fill, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 9, ": "+r.Value, "", 1, "L", fill, 0, "")
	}
	pdf.Ln(6)

	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Thank you for your donation to ISKCON!", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Your contribution helps in spreading Krishna Consciousness", "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Hare Krishna!", "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "This is a computer-generated receipt. For queries, contact ISKCON support.", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "Generated on: "+now.Format("02/01/2006, 3:04:05 pm"), "", 1, "C", false, 0, "")

	return pdf.Output(buf)
}

// FormatINR renders an amount with Indian thousands grouping: the last three
// digits form one group, every two digits after that another (12,34,567).
func FormatINR(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', -1, 64)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	if len(intPart) > 3 {
		head := intPart[:len(intPart)-3]
		tail := intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(append(groups, tail), ",")
	}

	out := intPart + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
