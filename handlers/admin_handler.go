package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/templeseva/donation-backend/models"
	"github.com/templeseva/donation-backend/receipt"
)

type paymentFilters struct {
	Search   string
	Status   string // "completed" | "pending" | ""
	DateFrom *time.Time
	DateTo   *time.Time
}

func filtersFromQuery(c *fiber.Ctx) (paymentFilters, error) {
	f := paymentFilters{
		Search: c.Query("search"),
		Status: c.Query("status"),
	}
	var err error
	if f.DateFrom, err = parseDate(c.Query("dateFrom")); err != nil {
		return f, err
	}
	f.DateTo, err = parseDate(c.Query("dateTo"))
	return f, err
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

// applyPaymentFilters is shared by the count and data queries so both see
// the same filter set.
func applyPaymentFilters(f paymentFilters) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Search != "" {
			term := "%" + strings.ToLower(f.Search) + "%"
			db = db.Where(
				"LOWER(name) LIKE ? OR LOWER(contact_no) LIKE ? OR LOWER(transaction_id) LIKE ? OR LOWER(to_user) LIKE ?",
				term, term, term, term,
			)
		}
		switch f.Status {
		case "completed":
			db = db.Where("done = ?", true)
		case "pending":
			db = db.Where("done = ?", false)
		}
		if f.DateFrom != nil {
			db = db.Where("updated_at >= ?", *f.DateFrom)
		}
		if f.DateTo != nil {
			db = db.Where("updated_at <= ?", *f.DateTo)
		}
		return db
	}
}

type paymentStats struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalPayments     int64   `json:"totalPayments"`
	CompletedPayments int64   `json:"completedPayments"`
	PendingPayments   int64   `json:"pendingPayments"`
}

type monthlyRevenue struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Revenue float64 `json:"revenue"`
	Count   int64   `json:"count"`
}

// ListPayments is the dashboard query: filtered page of records plus
// pagination metadata, table-wide statistics and a 12-month revenue rollup.
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	f, err := filtersFromQuery(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid date filter: " + err.Error()})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	var total int64
	if err := h.DB.Model(&models.Payment{}).Scopes(applyPaymentFilters(f)).Count(&total).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to count payments: " + err.Error()})
	}

	var payments []models.Payment
	if err := h.DB.Model(&models.Payment{}).
		Scopes(applyPaymentFilters(f)).
		Order("updated_at DESC").
		Limit(limit).Offset(offset).
		Find(&payments).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to retrieve payments: " + err.Error()})
	}

	stats, err := h.computeStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to compute stats: " + err.Error()})
	}
	monthly, err := h.monthlyRevenue(12)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to compute monthly revenue: " + err.Error()})
	}

	pages := int64(0)
	if total > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payments": payments,
			"pagination": fiber.Map{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": pages,
			},
			"stats":          stats,
			"monthlyRevenue": monthly,
		},
	})
}

func (h *PaymentHandler) computeStats() (paymentStats, error) {
	var stats paymentStats
	err := h.DB.Model(&models.Payment{}).
		Select(
			"COALESCE(SUM(CASE WHEN done = ? THEN amount ELSE 0 END), 0) AS total_revenue, "+
				"COUNT(*) AS total_payments, "+
				"COALESCE(SUM(CASE WHEN done = ? THEN 1 ELSE 0 END), 0) AS completed_payments, "+
				"COALESCE(SUM(CASE WHEN done = ? THEN 1 ELSE 0 END), 0) AS pending_payments",
			true, true, false,
		).
		Scan(&stats).Error
	return stats, err
}

// monthlyRevenue rolls completed records up by calendar year+month in Go; the
// row volume here is small and this keeps the query portable across drivers.
func (h *PaymentHandler) monthlyRevenue(months int) ([]monthlyRevenue, error) {
	var completed []struct {
		UpdatedAt time.Time
		Amount    float64
	}
	if err := h.DB.Model(&models.Payment{}).
		Where("done = ?", true).
		Select("updated_at", "amount").
		Scan(&completed).Error; err != nil {
		return nil, err
	}

	byMonth := make(map[[2]int]*monthlyRevenue)
	for _, p := range completed {
		key := [2]int{p.UpdatedAt.Year(), int(p.UpdatedAt.Month())}
		m := byMonth[key]
		if m == nil {
			m = &monthlyRevenue{Year: key[0], Month: key[1]}
			byMonth[key] = m
		}
		m.Revenue += p.Amount
		m.Count++
	}

	out := make([]monthlyRevenue, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	if len(out) > months {
		out = out[:months]
	}
	return out, nil
}

// ExportPayments streams the full filter set as CSV or PDF, no pagination.
func (h *PaymentHandler) ExportPayments(c *fiber.Ctx) error {
	f, err := filtersFromQuery(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid date filter: " + err.Error()})
	}
	format := c.Query("format", "csv")

	var payments []models.Payment
	if err := h.DB.Model(&models.Payment{}).
		Scopes(applyPaymentFilters(f)).
		Order("updated_at DESC").
		Find(&payments).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Export failed: " + err.Error()})
	}

	stamp := time.Now().Format("2006-01-02")

	switch format {
	case "csv":
		body, err := exportCSV(payments)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Export failed: " + err.Error()})
		}
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="payments-export-%s.csv"`, stamp))
		return c.Send(body)

	case "pdf":
		body, err := receipt.RenderReport(payments, time.Now())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Export failed: " + err.Error()})
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="payments-export-%s.pdf"`, stamp))
		return c.Send(body)

	default:
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid format"})
	}
}

var csvHeader = []string{
	"Name", "Contact No", "Amount", "Transaction ID",
	"Razorpay Payment ID", "UPI ID", "Recipient", "Status", "Date",
}

func exportCSV(payments []models.Payment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, p := range payments {
		status := "Pending"
		if p.Done {
			status = "Completed"
		}
		rec := []string{
			p.Name,
			p.ContactNo,
			strconv.FormatFloat(p.Amount, 'f', -1, 64),
			p.TransactionID,
			p.RazorpayPaymentID,
			p.UpiID,
			p.ToUser,
			status,
			p.UpdatedAt.Format("02/01/2006, 3:04:05 pm"),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateCashReceipt records a manually collected cash donation as a
// completed payment and sends its receipt over WhatsApp inline. The record is
// created first; a delivery failure leaves it in place and is reported.
func (h *PaymentHandler) GenerateCashReceipt(c *fiber.Ctx) error {
	var req models.CashReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request: " + err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": validationMessage(err)})
	}

	receiptID := newCashReceiptID()

	payment := models.Payment{
		Name:          req.Name,
		ContactNo:     req.ContactNo,
		Purpose:       req.Purpose,
		Amount:        req.Amount,
		TransactionID: receiptID,
		ToUser:        req.ToUser,
		Done:          true,
		Method:        models.MethodCash,
	}
	if err := h.DB.Create(&payment).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to save cash payment: " + err.Error()})
	}
	log.Printf("cash-receipt: payment created txn=%s amount=%.2f", receiptID, req.Amount)

	pdfURL, err := h.deliverReceipt(&payment, req.ContactNo)
	if err != nil {
		log.Printf("cash-receipt: delivery failed txn=%s: %v", receiptID, err)
		return c.Status(500).JSON(fiber.Map{
			"success":   false,
			"message":   "Cash receipt recorded, but WhatsApp delivery failed",
			"receiptId": receiptID,
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Cash receipt generated and PDF sent via WhatsApp successfully!",
		"receiptId": receiptID,
		"pdfUrl":    pdfURL,
	})
}

// newCashReceiptID generates a locally unique id for manually recorded cash
// donations, e.g. CASH-1735000000000-4F9A2C81D.
func newCashReceiptID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:9])
	return fmt.Sprintf("CASH-%d-%s", time.Now().UnixMilli(), token)
}
