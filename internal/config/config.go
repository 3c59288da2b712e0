package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/insurspeak/internal/domain"
)

type Config struct {
	// Backend providing /process-document and /ask-question
	ServiceURL     string
	RequestTimeout time.Duration
	MaxRetries     int

	// Browser view
	Port           string
	MaxUploadBytes int64
	SessionTTL     time.Duration

	DefaultInsuranceType domain.InsuranceType

	// Logging
	LogLevel    string
	LogFile     string
	Environment string
}

// MaxRetriesLimit caps MAX_RETRIES.
const MaxRetriesLimit = 10

// Load reads .env files (if any) and then the process environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		ServiceURL:     envOr("INSURSPEAK_SERVICE_URL", "http://localhost:8000"),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 120*time.Second),
		MaxRetries:     envInt("MAX_RETRIES", 2),

		Port:           envOr("PORT", "8090"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		SessionTTL:     envDuration("SESSION_TTL", 1*time.Hour),

		DefaultInsuranceType: domain.InsuranceType(strings.ToLower(envOr("DEFAULT_INSURANCE_TYPE", string(domain.InsuranceHealth)))),

		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		Environment: envOr("APP_ENV", "development"),
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	cfg.MaxRetries = min(max(cfg.MaxRetries, 0), MaxRetriesLimit)
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}

	return cfg
}

// IsProduction reports whether logs should be machine readable.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("INSURSPEAK_SERVICE_URL must be an http(s) URL, got %q", c.ServiceURL))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Port))
	}
	if _, err := domain.ParseInsuranceType(string(c.DefaultInsuranceType)); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_INSURANCE_TYPE: %w", err))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
