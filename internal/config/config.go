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

// PriceSource points a product at its published price sheet.
type PriceSource struct {
	URL        string
	CodeColumn string
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	TraceSampleRatio float64
	EnablePprof      bool

	PriceSources     map[string]PriceSource
	PriceRefresh     time.Duration
	PriceTimeout     time.Duration
	PriceCacheTTL    time.Duration
	PriceRetries     int
	PriceRetryBase   time.Duration
	DefaultProduct   string
	SessionTTL       time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	WebhookURL           string
	WebhookSecret        string
	WebhookTimeout       time.Duration
	WebhookReplayTTL     time.Duration
	WebhookMaxAttempts   int
	WebhookAllowInsecure bool

	BreakerFailureRatio float64
	BreakerMinRequests  int
	BreakerOpenFor      time.Duration

	QueueName        string
	QueueConcurrency int

	AdminJWTSecret  string
	AdminIssuer     string
	AdminAudience   string
	AdminAPIKeyHash string
	AdminTokenTTL   time.Duration

	RateLimitMutations string
	SubmitPerMinute    int
	IdempotencyTTL     time.Duration
	MaxBodyBytes       int64
	HealthTimeout      time.Duration
}

// productKeys lists the product lines the service knows price sources for.
var productKeys = []string{"pegasus", "womondo"}

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
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "camper"),
		EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING")),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TraceSampleRatio: parseFloat(k.String("OBS_TRACE_SAMPLE_RATIO"), 0.1),
		EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF")),

		PriceSources:     map[string]PriceSource{},
		PriceRefresh:     parseDuration(k.String("PRICETABLE_REFRESH"), "15m"),
		PriceTimeout:     parseDuration(k.String("PRICETABLE_TIMEOUT"), "10s"),
		PriceCacheTTL:    parseDuration(k.String("PRICETABLE_CACHE_TTL"), "24h"),
		PriceRetries:     parseInt(k.String("PRICETABLE_RETRIES"), 3),
		PriceRetryBase:   parseDuration(k.String("PRICETABLE_RETRY_BASE"), "500ms"),
		DefaultProduct:   strings.ToLower(valueOrDefault(k.String("DEFAULT_PRODUCT"), "pegasus")),
		SessionTTL:       parseDuration(k.String("SESSION_TTL"), "72h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),

		WebhookURL:           strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:        k.String("WEBHOOK_SECRET"),
		WebhookTimeout:       parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		WebhookReplayTTL:     parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxAttempts:   parseInt(k.String("WEBHOOK_MAX_ATTEMPTS"), 8),
		WebhookAllowInsecure: parseBool(k.String("WEBHOOK_ALLOW_INSECURE_TLS")),

		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		QueueName:        valueOrDefault(k.String("QUEUE_NAME"), "submissions"),
		QueueConcurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 4),

		AdminJWTSecret:  k.String("ADMIN_JWT_SECRET"),
		AdminIssuer:     valueOrDefault(k.String("ADMIN_JWT_ISSUER"), "camper-configurator"),
		AdminAudience:   valueOrDefault(k.String("ADMIN_JWT_AUDIENCE"), "camper-admin"),
		AdminAPIKeyHash: strings.TrimSpace(k.String("ADMIN_API_KEY_HASH")),
		AdminTokenTTL:   parseDuration(k.String("ADMIN_TOKEN_TTL"), "1h"),

		RateLimitMutations: valueOrDefault(k.String("RATE_LIMIT_MUTATIONS"), "120-M"),
		SubmitPerMinute:    parseInt(k.String("RATE_LIMIT_SUBMIT_PER_MINUTE"), 6),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		MaxBodyBytes:       int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 64<<10)),
		HealthTimeout:      parseDuration(k.String("HEALTH_TIMEOUT"), "2s"),
	}

	for _, key := range productKeys {
		prefix := "PRICETABLE_" + strings.ToUpper(key) + "_"
		src := PriceSource{
			URL:        strings.TrimSpace(k.String(prefix + "URL")),
			CodeColumn: valueOrDefault(k.String(prefix+"CODE_COLUMN"), "MO_CODE"),
		}
		if src.URL != "" {
			cfg.PriceSources[key] = src
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("OBS_TRACE_SAMPLE_RATIO must be within [0,1], got %v", c.TraceSampleRatio)
	}
	if c.WebhookMaxAttempts < 1 {
		return errors.New("WEBHOOK_MAX_ATTEMPTS must be positive")
	}
	return nil
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

// AdminEnabled reports whether any admin credential is configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != "" || c.AdminAPIKeyHash != ""
}

// SubmissionsEnabled reports whether submitted quotes have somewhere to go.
func (c *Config) SubmissionsEnabled() bool {
	return c.WebhookURL != ""
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
		return strings.TrimSpace(value)
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

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
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
