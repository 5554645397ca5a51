package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"math"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/templeseva/donation-backend/models"
	"github.com/templeseva/donation-backend/receipt"
)

var contactNoRe = regexp.MustCompile(`^\+91\d{10}$`)

// Notifier delivers a message (optionally with attachments) to a WhatsApp
// handle. Satisfied by *whatsapp.Relay.
type Notifier interface {
	Send(to, body string, mediaURL ...string) error
}

type PaymentHandler struct {
	DB       *gorm.DB
	Gateway  Gateway
	Relay    Notifier
	Receipts *receipt.Store

	// Shared secret for verifying gateway callback signatures.
	RazorpaySecret string

	validate *validator.Validate
}

func NewPaymentHandler(db *gorm.DB, gw Gateway, relay Notifier, receipts *receipt.Store, razorpaySecret string) *PaymentHandler {
	v := validator.New()
	_ = v.RegisterValidation("inphone", func(fl validator.FieldLevel) bool {
		return contactNoRe.MatchString(fl.Field().String())
	})
	return &PaymentHandler{
		DB:             db,
		Gateway:        gw,
		Relay:          relay,
		Receipts:       receipts,
		RazorpaySecret: razorpaySecret,
		validate:       v,
	}
}

func (h *PaymentHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// CreateOrder creates a Razorpay order for the donation and persists a
// pending payment record carrying the order id. The record is written only
// after the gateway call succeeds; there is no compensating cancel for the
// opposite failure (gateway order created, local write failed), which
// verification later surfaces as order-not-found.
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	var req models.OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request: " + err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": validationMessage(err)})
	}

	amountPaise := int64(math.Round(req.Amount * 100))
	orderID, err := h.Gateway.CreateOrder(amountPaise, req.TransactionID)
	if err != nil {
		log.Printf("create-order: gateway order failed txn=%s: %v", req.TransactionID, err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create payment order"})
	}

	payment := models.Payment{
		Name:          req.Name,
		ContactNo:     req.ContactNo,
		Purpose:       req.Purpose,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		Oid:           orderID,
		ToUser:        req.ToUser,
		Done:          false,
		Method:        models.MethodOnline,
	}
	if err := h.DB.Create(&payment).Error; err != nil {
		log.Printf("create-order: persist failed txn=%s order=%s: %v", req.TransactionID, orderID, err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to save payment record"})
	}

	return c.JSON(fiber.Map{"success": true, "orderId": orderID})
}

// VerifyPayment validates the checkout callback signature and completes the
// matching record. The signature compare is the sole authenticity gate for
// the done transition. Receipt delivery runs only when this request performed
// the false->true transition, and its failure never rolls the transition back
// or fails the response; it is reported in the note field.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	var req models.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request: " + err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": validationMessage(err)})
	}

	var payment models.Payment
	if err := h.DB.Where("oid = ?", req.RazorpayOrderID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Order Id not found"})
		}
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to look up payment: " + err.Error()})
	}

	if h.RazorpaySecret == "" {
		log.Printf("verify-payment: razorpay secret missing")
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Server configuration error: Razorpay secret missing"})
	}
	if !verifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, h.RazorpaySecret) {
		log.Printf("verify-payment: signature mismatch order=%s", req.RazorpayOrderID)
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Payment Verification Failed"})
	}

	// Learn the payment method / UPI handle from the gateway. A fetch failure
	// aborts before the record is touched: the record stays pending so the
	// gateway retry can complete it with real method/UPI detail.
	fetched, err := h.Gateway.FetchPayment(req.RazorpayPaymentID)
	if err != nil {
		log.Printf("verify-payment: payment fetch failed payment=%s: %v", req.RazorpayPaymentID, err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch payment details"})
	}
	method := models.MethodOnline
	if m, _ := fetched["method"].(string); m != "" {
		method = m
	}
	var upiID string
	if method == "upi" {
		if vpa, _ := fetched["vpa"].(string); vpa != "" {
			upiID = vpa
		} else {
			upiID = "N/A"
		}
	} else {
		upiID = method
	}

	updates := map[string]interface{}{
		"done":                true,
		"upi_id":              upiID,
		"razorpay_payment_id": req.RazorpayPaymentID,
		"method":              method,
	}
	if fetched != nil {
		updates["gateway_payload"] = datatypes.JSONMap(fetched)
	}

	// Guarded update: only the request that flips done=false to true owns
	// receipt delivery, so concurrent verifications cannot double-send.
	res := h.DB.Model(&models.Payment{}).
		Where("oid = ? AND done = ?", req.RazorpayOrderID, false).
		Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to update payment: " + res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return c.JSON(fiber.Map{"success": true, "message": "Payment already verified"})
	}

	if err := h.DB.Where("oid = ?", req.RazorpayOrderID).First(&payment).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to reload payment: " + err.Error()})
	}

	paymentData := paymentDataFor(&payment, req.RazorpayOrderID, method)

	resp := fiber.Map{
		"success":     true,
		"message":     "Payment verified and receipt sent successfully",
		"paymentData": paymentData,
	}
	if pdfURL, err := h.deliverReceipt(&payment, payment.ContactNo); err != nil {
		log.Printf("verify-payment: receipt delivery failed txn=%s: %v", payment.TransactionID, err)
		resp["message"] = "Payment verified successfully, but receipt delivery failed"
		resp["note"] = "Payment was successful, but WhatsApp notification failed. User can request receipt manually."
	} else {
		resp["pdfUrl"] = pdfURL
	}
	return c.JSON(resp)
}

func paymentDataFor(p *models.Payment, orderID, method string) fiber.Map {
	return fiber.Map{
		"name":              p.Name,
		"amount":            p.Amount,
		"contactNo":         p.ContactNo,
		"transactionId":     p.TransactionID,
		"razorpayPaymentId": p.RazorpayPaymentID,
		"upiId":             p.UpiID,
		"paymentMethod":     method,
		"orderId":           orderID,
		"paymentStatus":     "Success",
		"updatedAt":         p.UpdatedAt.Format("02/01/2006, 3:04:05 pm"),
		"recipient":         p.ToUser,
	}
}

// verifySignature recomputes the expected HMAC-SHA256 of "order_id|payment_id"
// under the shared secret and compares it to the supplied hex signature.
func verifySignature(orderID, paymentID, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch {
		case fe.Tag() == "inphone":
			return "Contact number must be in format +91xxxxxxxxxx"
		case fe.Tag() == "gt" && fe.Field() == "Amount":
			return "Invalid amount"
		case fe.Tag() == "required" && fe.Field() == "Amount":
			return "Invalid amount"
		default:
			return "Missing required fields"
		}
	}
	return "Invalid request"
}
