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
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string

	Avalara Avalara

	TaxUpdateRoutes  []string
	SessionTTL       time.Duration
	CatalogCacheTTL  time.Duration
	OrderLockTTL     time.Duration
	RateLimit        string
	RequestBodyLimit int64
	QueueConcurrency int
	MigrateOnStart   bool

	LogFormat         string
	LogLevel          string
	OTelExporter      string
	OTelEndpoint      string
	OTelSamplingRatio float64
}

// Avalara groups the tax provider settings.
type Avalara struct {
	AccountNumber    string
	LicenseKey       string
	CompanyCode      string
	LiveMode         bool
	Timeout          time.Duration
	HeadlessMode     bool
	BlockCartOnError bool
	TaxCountries     []string
	ShippingTaxCode  string
	DefaultTaxCode   string
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
		RedisURL:           valueOrDefault(k.String("REDIS_URL"), "redis://localhost:6379/0"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Avalara: Avalara{
			AccountNumber:    strings.TrimSpace(k.String("AVALARA_ACCOUNT_NUMBER")),
			LicenseKey:       strings.TrimSpace(k.String("AVALARA_LICENSE_KEY")),
			CompanyCode:      valueOrDefault(k.String("AVALARA_COMPANY_CODE"), "DEFAULT"),
			LiveMode:         parseBool(k.String("AVALARA_LIVE_MODE")),
			Timeout:          parseDuration(k.String("AVALARA_TIMEOUT"), "10s"),
			HeadlessMode:     parseBool(k.String("AVALARA_HEADLESS_MODE")),
			BlockCartOnError: parseBool(k.String("AVALARA_BLOCK_CART_ON_ERROR")),
			TaxCountries:     upper(splitAndTrim(k.String("AVALARA_TAX_COUNTRIES"))),
			ShippingTaxCode:  valueOrDefault(k.String("AVALARA_SHIPPING_TAX_CODE"), "FR020100"),
			DefaultTaxCode:   valueOrDefault(k.String("AVALARA_DEFAULT_TAX_CODE"), "P0000000"),
		},
		TaxUpdateRoutes:   splitAndTrim(k.String("TAX_UPDATE_ROUTES")),
		SessionTTL:        parseDuration(k.String("SESSION_TTL"), "2h"),
		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		OrderLockTTL:      parseDuration(k.String("ORDER_LOCK_TTL"), "30s"),
		RateLimit:         valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		RequestBodyLimit:  parseInt64(k.String("REQUEST_BODY_LIMIT"), 1<<20),
		QueueConcurrency:  int(parseInt64(k.String("QUEUE_CONCURRENCY"), 5)),
		MigrateOnStart:    parseBool(k.String("MIGRATE_ON_START")),
		LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		OTelExporter:      valueOrDefault(k.String("OTEL_EXPORTER"), "none"),
		OTelEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelSamplingRatio: parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Avalara.AccountNumber == "" || cfg.Avalara.LicenseKey == "" {
		return nil, errors.New("AVALARA_ACCOUNT_NUMBER and AVALARA_LICENSE_KEY are required")
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 5
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

func upper(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
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
