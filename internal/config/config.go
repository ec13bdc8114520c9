package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	// Pricing knobs for the total composer.
	TaxBps      int64
	ShippingFee int64
	// Orders above this amount ship free. Zero disables the threshold.
	FreeShippingAbove int64

	AccessTokenTTL time.Duration
	IdempotencyTTL time.Duration
	CatalogTTL     time.Duration
	CartTTL        time.Duration

	EmailEnabled      bool
	EmailFrom         string
	WorkerConcurrency int

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	TracingEnabled   bool
	TracingEndpoint  string
	TracingSampling  float64

	RateLimitCheckout string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		RazorpayKeyID:         k.String("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     k.String("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: k.String("RAZORPAY_WEBHOOK_SECRET"),

		TaxBps:            parseInt64(k.String("TAX_BPS"), 0),
		ShippingFee:       parseInt64(k.String("SHIPPING_FEE"), 0),
		FreeShippingAbove: parseInt64(k.String("FREE_SHIPPING_ABOVE"), 0),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CatalogTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),

		EmailEnabled:      parseBool(k.String("EMAIL_ENABLED")),
		EmailFrom:         valueOrDefault(k.String("EMAIL_FROM"), "orders@campuskart.in"),
		WorkerConcurrency: int(parseInt64(k.String("WORKER_CONCURRENCY"), 5)),

		LogFormat:        valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "campuskart"),
		TracingEnabled:   parseBool(k.String("TRACING_ENABLED")),
		TracingEndpoint:  k.String("TRACING_ENDPOINT"),
		TracingSampling:  parseFloat(k.String("TRACING_SAMPLING_RATIO"), 1),

		RateLimitCheckout: valueOrDefault(k.String("RATE_LIMIT_CHECKOUT"), "10-M"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(envVars map[string]string) (*Config, error) {
	original := make(map[string]string, len(envVars))
	for key := range envVars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, envVars[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
