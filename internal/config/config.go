package config

import (
	"errors"
	"fmt"
	"os"
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

	AccessTokenTTL time.Duration

	MoMoAppID     string
	MoMoAppSecret string
	MoMoBaseURL   string
	MoMoPhone     string

	DPOCompanyToken string
	DPOServiceType  string
	DPOBaseURL      string

	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	OAuthRedirectURL     string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	MailFrom  string
	AdminMail string

	CurrencyCode       string
	DefaultDeliveryFee int64
	DeliveryDistanceKM int
	LowStockThreshold  int

	IdempotencyTTL  time.Duration
	CatalogCacheTTL time.Duration
	OutboundTimeout time.Duration

	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	MigrationsDir  string
	MigrateOnStart bool

	OTLPEndpoint     string
	TraceSampleRatio float64
	MetricsBuckets   string

	LoginRateWindow time.Duration
	LoginRateMax    int
	MaxBodyBytes    int64

	SecurityHeaders bool
	EnableHSTS      bool

	WorkerConcurrency int
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

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "168h"),

		MoMoAppID:     k.String("MOMO_APP_ID"),
		MoMoAppSecret: k.String("MOMO_APP_SECRET"),
		MoMoBaseURL:   valueOrDefault(k.String("MOMO_BASE_URL"), "https://developer.mtn.com"),
		MoMoPhone:     k.String("MOMO_PHONE"),

		DPOCompanyToken: k.String("DPO_COMPANY_TOKEN"),
		DPOServiceType:  k.String("DPO_SERVICE_TYPE"),
		DPOBaseURL:      valueOrDefault(k.String("DPO_BASE_URL"), "https://secure.3gdirectpay.com"),

		GoogleClientID:       k.String("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   k.String("GOOGLE_CLIENT_SECRET"),
		FacebookClientID:     k.String("FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: k.String("FACEBOOK_CLIENT_SECRET"),
		OAuthRedirectURL:     k.String("OAUTH_REDIRECT_URL"),

		SMTPHost:  k.String("SMTP_HOST"),
		SMTPPort:  valueOrDefault(k.String("SMTP_PORT"), "587"),
		SMTPUser:  k.String("SMTP_USER"),
		SMTPPass:  k.String("SMTP_PASS"),
		MailFrom:  k.String("MAIL_FROM"),
		AdminMail: k.String("ADMIN_MAIL"),

		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "RWF"),
		DefaultDeliveryFee: int64(intOrDefault(k.String("DELIVERY_DEFAULT_FEE"), 2000)),
		DeliveryDistanceKM: intOrDefault(k.String("DELIVERY_PLACEHOLDER_KM"), 5),
		LowStockThreshold:  intOrDefault(k.String("LOW_STOCK_THRESHOLD"), 10),

		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		OutboundTimeout: parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),

		CircuitMinRequests:  intOrDefault(k.String("CIRCUIT_MIN_REQUESTS"), 5),
		CircuitFailureRatio: floatOrDefault(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		MigrationsDir:  valueOrDefault(k.String("MIGRATIONS_DIR"), "migrations"),
		MigrateOnStart: parseBool(valueOrDefault(k.String("MIGRATE_ON_START"), "true")),

		OTLPEndpoint:     k.String("OTLP_ENDPOINT"),
		TraceSampleRatio: floatOrDefault(k.String("TRACE_SAMPLE_RATIO"), 0.1),
		MetricsBuckets:   k.String("METRICS_BUCKETS_MS"),

		LoginRateWindow: parseDuration(k.String("LOGIN_RATE_WINDOW"), "1m"),
		LoginRateMax:    intOrDefault(k.String("LOGIN_RATE_MAX"), 10),
		MaxBodyBytes:    int64(intOrDefault(k.String("MAX_BODY_BYTES"), 1<<20)),

		SecurityHeaders: parseBool(valueOrDefault(k.String("SECURITY_HEADERS"), "true")),
		EnableHSTS:      parseBool(k.String("ENABLE_HSTS")),

		WorkerConcurrency: intOrDefault(k.String("WORKER_CONCURRENCY"), 5),
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

func intOrDefault(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func floatOrDefault(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed float64
	if _, err := fmt.Sscanf(trimmed, "%g", &parsed); err != nil {
		return fallback
	}
	return parsed
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
