package models

// OrderRequest is the payload from the donation form to create a gateway order.
type OrderRequest struct {
	Name          string  `json:"name" validate:"required"`
	ContactNo     string  `json:"contactNo" validate:"required,inphone"` // "+91xxxxxxxxxx"
	Purpose       string  `json:"purpose" validate:"required"`           // donation category
	Amount        float64 `json:"amount" validate:"required,gt=0"`       // major units (INR)
	TransactionID string  `json:"transactionId" validate:"required"`
	ToUser        string  `json:"to_user" validate:"required"` // recipient fund
}

// VerifyRequest is the Razorpay checkout callback payload.
type VerifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// CashReceiptRequest creates a completed cash record and sends its receipt.
type CashReceiptRequest struct {
	Name      string  `json:"name" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	ContactNo string  `json:"contactNo" validate:"required,inphone"`
	ToUser    string  `json:"to_user" validate:"required"`
	Purpose   string  `json:"purpose" validate:"required"`
	Method    string  `json:"method,omitempty"` // ignored; always recorded as cash
}

// InboundPaymentData is the verification-shape JSON body: the transaction id
// is already known, no free-text parsing needed.
type InboundPaymentData struct {
	TransactionID string `json:"transactionId"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// InboundMessage is a JSON body on the WhatsApp webhook, either freeform
// ({from, message}) or verification-shape ({from, paymentData}).
type InboundMessage struct {
	From        string              `json:"from"`
	Message     string              `json:"message,omitempty"`
	PaymentData *InboundPaymentData `json:"paymentData,omitempty"`
}
