package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries everything the service needs at construction time.
// It is read once at startup and never mutated afterwards.
type Config struct {
	ListenAddr string

	DBUsername string
	DBPassword string
	DBHost     string
	DBPort     string
	DBDatabase string
	DBSchema   string

	// Gateway contract.
	MerchantID      string
	SecretKey       string
	GatewayBaseURL  string
	CallbackBaseURL string
	Currency        string
	PaymentLifetime time.Duration
	InitiateTimeout time.Duration
	HealthTimeout   time.Duration

	// Interbank QR template.
	QRMerchantBlock string
	QRTrailerTag    string

	// Reconciliation worker.
	WorkerInterval time.Duration
	StuckThreshold time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      getenv("PAYMENTS_LISTEN_ADDR", ":8080"),
		DBUsername:      os.Getenv("PAYMENTS_DB_USERNAME"),
		DBPassword:      os.Getenv("PAYMENTS_DB_PASSWORD"),
		DBHost:          getenv("PAYMENTS_DB_HOST", "localhost"),
		DBPort:          getenv("PAYMENTS_DB_PORT", "5432"),
		DBDatabase:      os.Getenv("PAYMENTS_DB_DATABASE"),
		DBSchema:        getenv("PAYMENTS_DB_SCHEMA", "public"),
		MerchantID:      os.Getenv("PAYMENTS_MERCHANT_ID"),
		SecretKey:       os.Getenv("PAYMENTS_SECRET_KEY"),
		GatewayBaseURL:  os.Getenv("PAYMENTS_GATEWAY_URL"),
		CallbackBaseURL: os.Getenv("PAYMENTS_CALLBACK_BASE_URL"),
		Currency:        getenv("PAYMENTS_CURRENCY", "KGS"),
		PaymentLifetime: getduration("PAYMENTS_LIFETIME", 30*time.Minute),
		InitiateTimeout: getduration("PAYMENTS_INITIATE_TIMEOUT", 30*time.Second),
		HealthTimeout:   getduration("PAYMENTS_HEALTH_TIMEOUT", 10*time.Second),
		QRMerchantBlock: os.Getenv("PAYMENTS_QR_MERCHANT_BLOCK"),
		QRTrailerTag:    getenv("PAYMENTS_QR_TRAILER_TAG", "6304"),
		WorkerInterval:  getduration("PAYMENTS_WORKER_INTERVAL", time.Minute),
		StuckThreshold:  getduration("PAYMENTS_STUCK_THRESHOLD", 5*time.Minute),
	}

	if cfg.MerchantID == "" {
		return Config{}, fmt.Errorf("config: PAYMENTS_MERCHANT_ID is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("config: PAYMENTS_SECRET_KEY is required")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("config: PAYMENTS_GATEWAY_URL is required")
	}
	return cfg, nil
}

// DSN renders the postgres connection string in the form the pgx stdlib
// driver expects.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, c.DBSchema,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
