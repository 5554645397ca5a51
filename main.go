package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/templeseva/donation-backend/handlers"
	"github.com/templeseva/donation-backend/models"
	"github.com/templeseva/donation-backend/receipt"
	"github.com/templeseva/donation-backend/whatsapp"
)

func main() {
	_ = godotenv.Load()

	// Database connection
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto migrate models
	if err := db.AutoMigrate(&models.Payment{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Razorpay client setup
	keyID := os.Getenv("RAZORPAY_KEY_ID")
	keySecret := os.Getenv("RAZORPAY_KEY_SECRET")
	if keyID == "" || keySecret == "" {
		log.Fatal("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET must be set")
	}
	gateway := handlers.NewRazorpayGateway(keyID, keySecret)

	// Twilio WhatsApp relay setup
	relay, err := whatsapp.NewRelay(
		os.Getenv("TWILIO_ACCOUNT_SID"),
		os.Getenv("TWILIO_AUTH_TOKEN"),
		os.Getenv("TWILIO_WHATSAPP_NUMBER"),
	)
	if err != nil {
		log.Fatal("Failed to create WhatsApp relay:", err)
	}

	// Receipt store
	receiptsDir := os.Getenv("RECEIPTS_DIR")
	if receiptsDir == "" {
		receiptsDir = "receipts"
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	receipts, err := receipt.NewStore(receiptsDir, baseURL)
	if err != nil {
		log.Fatal("Failed to create receipt store:", err)
	}

	// Old receipts are swept in production; correctness never depends on it.
	if os.Getenv("RECEIPT_CLEANUP") == "1" {
		stop := make(chan struct{})
		defer close(stop)
		receipts.StartCleanup(time.Hour, 24*time.Hour, stop)
	}

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(db, gateway, relay, receipts, keySecret)

	// Create Fiber app
	app := fiber.New()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	// Routes
	app.Get("/health", paymentHandler.Health)
	app.Post("/api/create-order", paymentHandler.CreateOrder)
	app.Post("/api/verify-payment", paymentHandler.VerifyPayment)
	app.Post("/api/whatsapp/verify", paymentHandler.HandleWhatsAppVerify)
	app.Get("/api/admin/payments", paymentHandler.ListPayments)
	app.Get("/api/admin/export", paymentHandler.ExportPayments)
	app.Post("/api/admin/generate-receipt", paymentHandler.GenerateCashReceipt)

	// Generated PDFs, served with range support for WhatsApp media fetches.
	app.Static("/api/receipts", receiptsDir, fiber.Static{
		ByteRange: true,
		MaxAge:    3600,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Println("Server running on http://localhost:" + port)
	log.Fatal(app.Listen(":" + port))
}
