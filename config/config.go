package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	PublicURL   string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Vending provider configuration
	VendBaseURL   string
	VendAPIKey    string
	VendAPISecret string

	// PayPal configuration
	PayPalMode         string
	PayPalClientID     string
	PayPalClientSecret string

	// Pricing configuration
	Currency     string
	ExchangeRate decimal.Decimal
	TaxFeeRate   decimal.Decimal

	// Timeout configuration
	PendingTTL     time.Duration
	RequestTimeout time.Duration

	// Rate limiting
	InitiateRateLimit  int
	InitiateRateWindow time.Duration

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Vending provider
		VendBaseURL:   getEnv("VEND_BASE_URL", "https://sb-api.efashe.com/rw/v2"),
		VendAPIKey:    getEnv("VEND_API_KEY", ""),
		VendAPISecret: getEnv("VEND_API_SECRET", ""),

		// PayPal
		PayPalMode:         getEnv("PAYPAL_MODE", "sandbox"),
		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),

		// Pricing
		Currency:     getEnv("CURRENCY", "USD"),
		ExchangeRate: getEnvAsDecimal("EXCHANGE_RATE", "1150"),
		TaxFeeRate:   getEnvAsDecimal("TAX_FEE_RATE", "0.04"),

		// Timeouts
		PendingTTL:     getEnvAsDuration("PENDING_TTL", "30m"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "10s"),

		// Rate limiting
		InitiateRateLimit:  getEnvAsInt("INITIATE_RATE_LIMIT", 10),
		InitiateRateWindow: getEnvAsDuration("INITIATE_RATE_WINDOW", "1m"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	value, _ := decimal.NewFromString(defaultValue)
	return value
}
