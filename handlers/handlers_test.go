package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/templeseva/donation-backend/models"
	"github.com/templeseva/donation-backend/receipt"
)

type fakeGateway struct {
	orderID    string
	orderErr   error
	payment    map[string]interface{}
	paymentErr error

	createCalls int
	lastAmount  int64
	lastReceipt string
}

func (g *fakeGateway) CreateOrder(amountPaise int64, receiptID string) (string, error) {
	g.createCalls++
	g.lastAmount = amountPaise
	g.lastReceipt = receiptID
	if g.orderErr != nil {
		return "", g.orderErr
	}
	return g.orderID, nil
}

func (g *fakeGateway) FetchPayment(paymentID string) (map[string]interface{}, error) {
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.payment, nil
}

type sentMessage struct {
	To    string
	Body  string
	Media []string
}

type fakeRelay struct {
	mu    sync.Mutex
	err   error
	sends []sentMessage
}

func (r *fakeRelay) Send(to, body string, mediaURL ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sends = append(r.sends, sentMessage{To: to, Body: body, Media: mediaURL})
	return nil
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func (r *fakeRelay) last() sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends[len(r.sends)-1]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Payment{}))
	return db
}

const testSecret = "test-razorpay-secret"

func newTestHandler(t *testing.T) (*PaymentHandler, *fakeGateway, *fakeRelay) {
	t.Helper()
	gw := &fakeGateway{orderID: "order_test123"}
	relay := &fakeRelay{}
	receipts, err := receipt.NewStore(t.TempDir(), "http://test.local")
	require.NoError(t, err)
	return NewPaymentHandler(newTestDB(t), gw, relay, receipts, testSecret), gw, relay
}

func newTestApp(h *PaymentHandler) *fiber.App {
	app := fiber.New()
	app.Get("/health", h.Health)
	app.Post("/api/create-order", h.CreateOrder)
	app.Post("/api/verify-payment", h.VerifyPayment)
	app.Post("/api/whatsapp/verify", h.HandleWhatsAppVerify)
	app.Get("/api/admin/payments", h.ListPayments)
	app.Get("/api/admin/export", h.ExportPayments)
	app.Post("/api/admin/generate-receipt", h.GenerateCashReceipt)
	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

var errFake = errors.New("fake failure")
