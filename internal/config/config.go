package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string

	PostgresURL  string
	MaxOpenConns int
	MaxIdleConns int

	KafkaBrokers []string
	OTLPEndpoint string

	ReservationTTL time.Duration
	SweepInterval  time.Duration

	CatalogServiceURL   string
	InventoryServiceURL string
	OrdersServiceURL    string
	EmailServiceURL     string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load(serviceName, defaultPort string) *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: getEnv("SERVICE_VERSION", "0.1.0"),
		Port:           getEnv("PORT", defaultPort),

		PostgresURL:  os.Getenv("POSTGRES_URL"),
		MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),

		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		ReservationTTL: getEnvAsDuration("RESERVATION_TTL", 15*time.Minute),
		SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", time.Minute),

		CatalogServiceURL:   os.Getenv("CATALOG_SERVICE_URL"),
		InventoryServiceURL: os.Getenv("INVENTORY_SERVICE_URL"),
		OrdersServiceURL:    os.Getenv("ORDERS_SERVICE_URL"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// Require returns an error naming every listed variable that is unset.
func (c *Config) Require(names ...string) error {
	values := map[string]string{
		"POSTGRES_URL":          c.PostgresURL,
		"KAFKA_BROKERS":         strings.Join(c.KafkaBrokers, ","),
		"CATALOG_SERVICE_URL":   c.CatalogServiceURL,
		"INVENTORY_SERVICE_URL": c.InventoryServiceURL,
		"ORDERS_SERVICE_URL":    c.OrdersServiceURL,
		"EMAIL_SERVICE_URL":     c.EmailServiceURL,
	}

	var errs []error
	for _, name := range names {
		if values[name] == "" {
			errs = append(errs, errors.New(name+" environment variable is required"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
