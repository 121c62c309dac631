package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	JWTSecret      string
	AccessTokenTTL time.Duration
	PublicURL      string

	MercadoPagoAccessToken   string
	MercadoPagoWebhookSecret string
	MercadoPagoBaseURL       string
	PaymentSessionTTL        time.Duration

	ResendAPIKey string
	EmailFrom    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers       []string
	KafkaPaymentsTopic string

	ReconcileWorkers  int
	CheckoutRateLimit int

	CartFile  string
	ServerURL string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "bikestore"),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		PublicURL:      strings.TrimRight(getEnvOrDefault("PUBLIC_URL", "http://localhost:8080"), "/"),

		MercadoPagoAccessToken:   getEnvOrDefault("MERCADOPAGO_ACCESS_TOKEN", ""),
		MercadoPagoWebhookSecret: getEnvOrDefault("MERCADOPAGO_WEBHOOK_SECRET", ""),
		MercadoPagoBaseURL:       getEnvOrDefault("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
		PaymentSessionTTL:        getDurationEnv("PAYMENT_SESSION_TTL", 48, time.Hour),

		ResendAPIKey: getEnvOrDefault("RESEND_API_KEY", ""),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "Bike Store <pedidos@bikestore.local>"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getListEnv("KAFKA_BROKERS"),
		KafkaPaymentsTopic: getEnvOrDefault("KAFKA_PAYMENTS_TOPIC", "payment-notifications"),

		ReconcileWorkers:  getIntEnv("RECONCILE_WORKERS", 4),
		CheckoutRateLimit: getIntEnv("CHECKOUT_RATE_LIMIT", 5),

		CartFile:  getEnvOrDefault("CART_FILE", defaultCartFile()),
		ServerURL: strings.TrimRight(getEnvOrDefault("BIKESTORE_URL", "http://localhost:8080"), "/"),
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
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultCartFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cart.json"
	}
	return filepath.Join(home, ".bikestore", "cart.json")
}
