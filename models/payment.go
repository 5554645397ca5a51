package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment methods. Online is the default; cash rows are created directly by
// the admin receipt endpoint and are completed at creation time.
const (
	MethodOnline = "online"
	MethodCash   = "cash"
)

// Payment is one donation attempt, online or cash.
//
// TransactionID is the external-facing identifier (Razorpay receipt id or a
// locally generated CASH-... id). Oid is the Razorpay order id and is empty
// for cash rows. Done flips to true exactly once, on successful signature
// verification or at creation for cash.
type Payment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name              string  `json:"name"`
	ContactNo         string  `json:"contactNo"`
	Purpose           string  `json:"purpose"`
	Amount            float64 `json:"amount"`
	TransactionID     string  `gorm:"uniqueIndex;column:transaction_id" json:"transactionId"`
	Oid               string  `gorm:"index" json:"oid,omitempty"`
	ToUser            string  `gorm:"column:to_user" json:"to_user"`
	Done              bool    `gorm:"default:false;index" json:"done"`
	UpiID             string  `gorm:"column:upi_id" json:"upiId,omitempty"`
	RazorpayPaymentID string  `gorm:"column:razorpay_payment_id" json:"razorpayPaymentId,omitempty"`
	Method            string  `gorm:"default:online" json:"method"`

	// Raw payment object fetched from the gateway after verification.
	GatewayPayload datatypes.JSONMap `gorm:"type:jsonb" json:"-"`
}
