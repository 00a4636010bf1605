package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Monite        MoniteConfig
	Query         QueryConfig
	Locale        LocaleConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int

	// APIRequestsPerSecond throttles calls to the Monite API. Zero disables it.
	APIRequestsPerSecond float64
	APIBurst             int

	// TrustedProxies are the addresses or CIDRs whose X-Forwarded-For header
	// is honoured when keying clients.
	TrustedProxies []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Environment is "production" or anything else; production enables HSTS.
	Environment string
}

// MoniteConfig holds the Monite API connection and the entity user the
// gateway acts as.
type MoniteConfig struct {
	APIURL       string
	EntityID     string
	EntityUserID string
	ClientID     string
	ClientSecret string

	// Headers are sent with every API request, e.g. "x-partner: acme".
	Headers map[string]string
}

// QueryConfig holds query cache configuration
type QueryConfig struct {
	StaleTime  time.Duration
	Retry      int
	RetryDelay time.Duration
	RedisAddr  string
	RedisTTL   time.Duration
}

// LocaleConfig holds locale negotiation configuration
type LocaleConfig struct {
	Default   string
	Supported []string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// CORSConfig holds the origins allowed to embed widgets
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// Load loads configuration from a .env file, if present, and environment
// variables
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "10s"),
			RequestTimeout:  parseDuration("SERVER_REQUEST_TIMEOUT", "30s"),
			Environment:     getEnv("APP_ENV", "development"),
		},
		Monite: MoniteConfig{
			APIURL:       getEnv("MONITE_API_URL", "https://api.sandbox.monite.com/v1"),
			EntityID:     getEnv("MONITE_ENTITY_ID", ""),
			EntityUserID: getEnv("MONITE_ENTITY_USER_ID", ""),
			ClientID:     getEnv("MONITE_CLIENT_ID", ""),
			ClientSecret: getEnv("MONITE_CLIENT_SECRET", ""),
			Headers:      parseHeaders("MONITE_HEADERS"),
		},
		Query: QueryConfig{
			StaleTime:  parseDuration("QUERY_STALE_TIME", "1m"),
			Retry:      parseInt("QUERY_RETRY", 0),
			RetryDelay: parseDuration("QUERY_RETRY_DELAY", "1s"),
			RedisAddr:  getEnv("QUERY_REDIS_ADDR", ""),
			RedisTTL:   parseDuration("QUERY_REDIS_TTL", "10m"),
		},
		Locale: LocaleConfig{
			Default:   getEnv("LOCALE_DEFAULT", "en"),
			Supported: parseList("LOCALE_SUPPORTED", "en,de,fr,es,it,nl"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "monite-widgets-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:    parseFloat("RATELIMIT_RPS", 10),
			Burst:                parseInt("RATELIMIT_BURST", 20),
			APIRequestsPerSecond: parseFloat("MONITE_API_RPS", 0),
			APIBurst:             parseInt("MONITE_API_BURST", 10),
			TrustedProxies:       parseList("RATELIMIT_TRUSTED_PROXIES", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseList("CORS_ALLOWED_ORIGINS", "*"),
			MaxAge:         parseInt("CORS_MAX_AGE", 300),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Monite.EntityID == "" {
		errs = append(errs, errors.New("MONITE_ENTITY_ID is required"))
	} else if _, err := uuid.Parse(c.Monite.EntityID); err != nil {
		errs = append(errs, errors.New("MONITE_ENTITY_ID must be a UUID"))
	}
	if c.Monite.ClientID == "" || c.Monite.ClientSecret == "" {
		errs = append(errs, errors.New("MONITE_CLIENT_ID and MONITE_CLIENT_SECRET are required"))
	}
	if c.Monite.EntityUserID == "" {
		errs = append(errs, errors.New("MONITE_ENTITY_USER_ID is required"))
	}
	if c.Query.Retry < 0 {
		errs = append(errs, errors.New("QUERY_RETRY must not be negative"))
	}
	if len(c.Locale.Supported) == 0 {
		errs = append(errs, errors.New("LOCALE_SUPPORTED must list at least one locale"))
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

func parseList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders reads "name: value" pairs separated by ";".
func parseHeaders(key string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(value, ";") {
		name, v, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		headers[strings.ToLower(name)] = strings.TrimSpace(v)
	}
	return headers
}

// IsProduction reports whether the gateway runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
