package handlers

import (
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Gateway is the slice of the payment gateway this service uses: order
// creation for checkout handoff and payment-detail fetch after verification.
type Gateway interface {
	CreateOrder(amountPaise int64, receiptID string) (orderID string, err error)
	FetchPayment(paymentID string) (map[string]interface{}, error)
}

// RazorpayGateway adapts the Razorpay SDK client to Gateway.
type RazorpayGateway struct {
	Client *razorpay.Client
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{Client: razorpay.NewClient(keyID, keySecret)}
}

func (g *RazorpayGateway) CreateOrder(amountPaise int64, receiptID string) (string, error) {
	order, err := g.Client.Order.Create(map[string]interface{}{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receiptID,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create razorpay order: %w", err)
	}
	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("razorpay order response missing id: %v", order)
	}
	return id, nil
}

func (g *RazorpayGateway) FetchPayment(paymentID string) (map[string]interface{}, error) {
	payment, err := g.Client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch razorpay payment %s: %w", paymentID, err)
	}
	return payment, nil
}
