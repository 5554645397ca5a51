package handlers

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/templeseva/donation-backend/models"
	"github.com/templeseva/donation-backend/receipt"
	"github.com/templeseva/donation-backend/whatsapp"
)

// Canned replies for the inbound WhatsApp flow.
const (
	msgInvalidRequest = "Invalid request. Please provide a valid message."
	msgInvalidFormat  = "Invalid message format. Please include the Transaction ID."
	msgNotFound       = "Payment not found or not completed. Please check your Transaction ID."
	msgTechnicalError = "An error occurred. Please try again later."
)

var transactionIDRe = regexp.MustCompile(`(?i)\b(?:transaction\s*id|txn|id)\b[:\s]*([A-Za-z0-9_\-]+)`)

// inboundRequest is the decoded form of the webhook payload, one of three
// shapes: a Twilio form post, a freeform JSON lookup, or a verification-shape
// JSON body carrying an already-known transaction id.
type inboundRequest struct {
	From          string
	Message       string
	TransactionID string // set only for the verification shape
}

func decodeInbound(c *fiber.Ctx) (inboundRequest, error) {
	if strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationForm) {
		return inboundRequest{
			From:    c.FormValue("From"),
			Message: c.FormValue("Body"),
		}, nil
	}

	var body models.InboundMessage
	if err := c.BodyParser(&body); err != nil {
		return inboundRequest{}, err
	}
	req := inboundRequest{From: body.From, Message: body.Message}
	if body.PaymentData != nil && body.PaymentData.TransactionID != "" {
		req.TransactionID = body.PaymentData.TransactionID
	}
	return req, nil
}

// parseTransactionID extracts a transaction identifier out of free text,
// accepting "Transaction ID: x", "TXN x" and "ID: x" case-insensitively.
func parseTransactionID(message string) (string, bool) {
	m := transactionIDRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// HandleWhatsAppVerify is the dual-mode inbound webhook: Twilio form posts
// and JSON bodies land here. It looks up a completed payment by transaction
// id, renders the receipt PDF, responds, and completes the outbound send in
// the background so the caller-visible latency stays bounded. Canned error
// replies are best-effort; the HTTP status always reflects the true outcome.
func (h *PaymentHandler) HandleWhatsAppVerify(c *fiber.Ctx) error {
	req, err := decodeInbound(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request: " + err.Error()})
	}

	if req.From == "" || (req.Message == "" && req.TransactionID == "") {
		h.sendCanned(req.From, msgInvalidRequest)
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Missing from or message"})
	}

	transactionID := req.TransactionID
	if transactionID == "" {
		id, ok := parseTransactionID(req.Message)
		if !ok {
			log.Printf("whatsapp-verify: no transaction id in message from %s", req.From)
			h.sendCanned(req.From, msgInvalidFormat)
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid message format"})
		}
		transactionID = id
	}

	var payment models.Payment
	err = h.DB.Where("transaction_id = ? AND done = ?", transactionID, true).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("whatsapp-verify: payment not found or not completed txn=%s", transactionID)
			h.sendCanned(req.From, msgNotFound)
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Payment not found"})
		}
		h.sendCanned(req.From, msgTechnicalError)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Server error", "error": err.Error()})
	}

	rcpt, err := h.Receipts.Generate(receipt.FromPayment(&payment))
	if err != nil {
		log.Printf("whatsapp-verify: pdf generation failed txn=%s: %v", transactionID, err)
		h.sendCanned(req.From, msgTechnicalError)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Server error", "error": err.Error()})
	}

	// Respond now, finish the send in the background (Twilio expects the
	// webhook answer within its own deadline).
	to := whatsapp.NormalizeAddress(req.From)
	body := receiptMessage(&payment)
	go func() {
		if err := h.Relay.Send(to, body, rcpt.URL); err != nil {
			log.Printf("whatsapp-verify: send failed txn=%s to=%s: %v", transactionID, to, err)
			return
		}
		log.Printf("whatsapp-verify: receipt sent txn=%s to=%s", transactionID, to)
	}()

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "Receipt sent",
		"transactionId": transactionID,
		"pdfUrl":        rcpt.URL,
	})
}

// deliverReceipt renders and sends a receipt inline. Used by the paths that
// need the send outcome (verification, cash receipt generation).
func (h *PaymentHandler) deliverReceipt(p *models.Payment, to string) (string, error) {
	rcpt, err := h.Receipts.Generate(receipt.FromPayment(p))
	if err != nil {
		return "", fmt.Errorf("generate receipt: %w", err)
	}
	if err := h.Relay.Send(whatsapp.NormalizeAddress(to), receiptMessage(p), rcpt.URL); err != nil {
		return rcpt.URL, err
	}
	return rcpt.URL, nil
}

// receiptMessage formats the text that accompanies the PDF attachment.
func receiptMessage(p *models.Payment) string {
	var b strings.Builder
	b.WriteString("Thank you for your payment to ISKCON! Here is your receipt.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Amount: Rs %s\n", receipt.FormatINR(p.Amount))
	fmt.Fprintf(&b, "Contact: %s\n", p.ContactNo)
	fmt.Fprintf(&b, "Transaction ID: %s\n", p.TransactionID)
	if p.Method == models.MethodCash {
		b.WriteString("Payment Method: Cash Payment\n")
	} else {
		b.WriteString("Payment Method: Online Payment\n")
		if p.UpiID != "" {
			fmt.Fprintf(&b, "UPI ID: %s\n", p.UpiID)
		}
	}
	fmt.Fprintf(&b, "Date: %s\n", p.UpdatedAt.Format("02/01/2006, 3:04:05 pm"))
	fmt.Fprintf(&b, "Recipient: %s", p.ToUser)
	return b.String()
}

// sendCanned fires a best-effort reply; failures are logged, never surfaced.
func (h *PaymentHandler) sendCanned(to, body string) {
	if to == "" {
		return
	}
	if err := h.Relay.Send(whatsapp.NormalizeAddress(to), body); err != nil {
		log.Printf("whatsapp-verify: canned reply to %s failed: %v", to, err)
	}
}
