package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	TaxRate               float64
	FreeDeliveryThreshold float64
	DeliveryFee           float64
	Currency              string

	StripeSecretKey          string
	StripeAPIURL             string
	PaymentWebhookSecret     string
	PaymentMaxAttempts       int
	PaymentReconcileInterval time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OutboundTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	UploadDir       string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		Port:            getEnvOrDefault("PORT", "5000"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "supplyhub"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 30, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 30, 24*time.Hour),

		TaxRate:               getFloatEnv("TAX_RATE", 0.18),
		FreeDeliveryThreshold: getFloatEnv("FREE_DELIVERY_THRESHOLD", 1000),
		DeliveryFee:           getFloatEnv("DELIVERY_FEE", 100),
		Currency:              strings.ToUpper(getEnvOrDefault("CURRENCY", "INR")),

		StripeSecretKey:          getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeAPIURL:             getEnvOrDefault("STRIPE_API_URL", "https://api.stripe.com"),
		PaymentWebhookSecret:     getEnvOrDefault("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentMaxAttempts:       getIntEnv("PAYMENT_MAX_ATTEMPTS", 5),
		PaymentReconcileInterval: getDurationEnv("PAYMENT_RECONCILE_INTERVAL", 60, time.Second),

		OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),

		OutboundTimeout: getDurationEnv("OUTBOUND_TIMEOUT", 10, time.Second),
		RateLimitRPS:    getFloatEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 20),
		UploadDir:       getEnvOrDefault("UPLOAD_DIR", "./public/uploads"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}
