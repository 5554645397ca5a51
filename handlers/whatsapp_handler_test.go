package handlers

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templeseva/donation-backend/models"
)

func TestParseTransactionID(t *testing.T) {
	cases := []struct {
		message string
		want    string
		ok      bool
	}{
		{"Transaction ID: TXN-1001", "TXN-1001", true},
		{"transaction id CASH-1735000000000-4F9A2C81D", "CASH-1735000000000-4F9A2C81D", true},
		{"TXN: pay_abc123", "pay_abc123", true},
		{"please send my receipt, id: 42", "42", true},
		{"TransactionID:ABC_9", "ABC_9", true},
		{"hello there", "", false},
		{"I paid yesterday", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := parseTransactionID(tc.message)
		assert.Equal(t, tc.ok, ok, "message %q", tc.message)
		assert.Equal(t, tc.want, got, "message %q", tc.message)
	}
}

func seedCompleted(t *testing.T, h *PaymentHandler, txn string) *models.Payment {
	t.Helper()
	p := &models.Payment{
		Name:              "Radha Menon",
		ContactNo:         "+919812345678",
		Purpose:           "Food Distribution",
		Amount:            2500,
		TransactionID:     txn,
		Oid:               "order_" + txn,
		ToUser:            "default_user",
		Done:              true,
		UpiID:             "radha@upi",
		RazorpayPaymentID: "pay_" + txn,
		Method:            models.MethodOnline,
	}
	require.NoError(t, h.DB.Create(p).Error)
	return p
}

func TestWhatsAppVerifyFormLookup(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)
	seedCompleted(t, h, "TXN-3001")

	form := url.Values{}
	form.Set("From", "whatsapp:+919812345678")
	form.Set("Body", "Transaction ID: TXN-3001")
	req := httptest.NewRequest("POST", "/api/whatsapp/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "TXN-3001", body["transactionId"])
	pdfURL, _ := body["pdfUrl"].(string)
	assert.Contains(t, pdfURL, "/api/receipts/receipt-TXN-3001-")

	// Outbound send is detached; wait for it.
	require.Eventually(t, func() bool { return relay.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	sent := relay.last()
	assert.Equal(t, "whatsapp:+919812345678", sent.To)
	assert.Contains(t, sent.Body, "TXN-3001")
	assert.Contains(t, sent.Body, "Rs 2,500")
	assert.Contains(t, sent.Body, "radha@upi")
	require.Len(t, sent.Media, 1)
	assert.Equal(t, pdfURL, sent.Media[0])
}

func TestWhatsAppVerifyJSONVerificationShape(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)
	seedCompleted(t, h, "TXN-3002")

	resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
		"from": "+919812345678",
		"paymentData": map[string]interface{}{
			"transactionId": "TXN-3002",
			"paymentMethod": "upi",
		},
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "TXN-3002", body["transactionId"])

	require.Eventually(t, func() bool { return relay.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "whatsapp:+919812345678", relay.last().To, "prefix added exactly once")
}

func TestWhatsAppVerifyJSONFreeform(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)
	seedCompleted(t, h, "TXN-3003")

	resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
		"from":    "whatsapp:+919812345678",
		"message": "Hi, my txn TXN-3003 please",
	}), 5000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Eventually(t, func() bool { return relay.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWhatsAppVerifyNotFound(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)

	form := url.Values{}
	form.Set("From", "whatsapp:+919812345678")
	form.Set("Body", "Transaction ID: TXN-NOPE")
	req := httptest.NewRequest("POST", "/api/whatsapp/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	require.Equal(t, 1, relay.count())
	assert.Equal(t, msgNotFound, relay.last().Body)
}

func TestWhatsAppVerifyPendingIsNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	app := newTestApp(h)
	seedPending(t, h, "TXN-3004", "order_pending")

	resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
		"from":    "+919812345678",
		"message": "Transaction ID: TXN-3004",
	}), 5000)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode, "receipts are only issued for completed records")
}

func TestWhatsAppVerifyInvalidFormat(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
		"from":    "+919812345678",
		"message": "hello, how are you",
	}), 5000)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	require.Equal(t, 1, relay.count())
	assert.Equal(t, msgInvalidFormat, relay.last().Body)
}

func TestWhatsAppVerifyMissingFrom(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
		"message": "Transaction ID: TXN-1",
	}), 5000)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Zero(t, relay.count(), "no canned reply without a sender handle")
}

func TestWhatsAppVerifyRepeatedLookupRendersFreshFiles(t *testing.T) {
	h, _, relay := newTestHandler(t)
	app := newTestApp(h)
	seedCompleted(t, h, "TXN-3005")

	urls := make(map[string]bool)
	for i := 0; i < 2; i++ {
		resp, err := app.Test(jsonRequest(t, "POST", "/api/whatsapp/verify", map[string]interface{}{
			"from":    "+919812345678",
			"message": "Transaction ID: TXN-3005",
		}), 5000)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		body := decodeBody(t, resp)
		urls[body["pdfUrl"].(string)] = true
	}
	assert.Len(t, urls, 2, "each lookup persists a distinct file")
	require.Eventually(t, func() bool { return relay.count() == 2 }, 3*time.Second, 10*time.Millisecond)
}
