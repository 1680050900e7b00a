package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration values.
type Config struct {
	Secret                  string
	DatabaseDSN             string
	HTTPPort                string
	LogLevel                string
	CriticalVariancePercent decimal.Decimal
	AllowedOrigins          []string
	RequestTimeout          time.Duration
	ProductCatalogCSV       string
}

// Load reads configuration from environment variables with reasonable defaults.
// A .env file in the working directory is honoured when present.
func Load() Config {
	_ = godotenv.Load()

	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:clinicstock.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if level == "" {
		level = "info"
	}

	tolerance := decimal.Zero
	if raw := strings.TrimSpace(os.Getenv("CRITICAL_VARIANCE_PERCENT")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			log.Printf("invalid CRITICAL_VARIANCE_PERCENT value %q, variance tiers disabled", raw)
		} else {
			tolerance = parsed
		}
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		origins = origins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	timeout := 15 * time.Second
	if raw := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Printf("invalid REQUEST_TIMEOUT value %q, defaulting to %s", raw, timeout)
		} else {
			timeout = parsed
		}
	}

	return Config{
		Secret:                  secret,
		DatabaseDSN:             dsn,
		HTTPPort:                port,
		LogLevel:                level,
		CriticalVariancePercent: tolerance,
		AllowedOrigins:          origins,
		RequestTimeout:          timeout,
		ProductCatalogCSV:       strings.TrimSpace(os.Getenv("PRODUCT_CATALOG_CSV")),
	}
}
