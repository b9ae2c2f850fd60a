// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetWebhookRatePerSecond() float64
}

// SchedulerConfig provides settings for the Redis-backed task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SMSConfig provides settings for the Twilio SMS transport.
type SMSConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioFromNumber() string
	GetTwilioBaseURL() string
	GetSMSRatePerSecond() float64
	IsSMSEnabled() bool
}

// LLMConfig provides credentials for the language-model providers.
// Providers are probed in a fixed order; the first with credentials wins.
type LLMConfig interface {
	GetOpenAIAPIKey() string
	GetOpenAIModel() string
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	GetLLMTimeout() time.Duration
}

// PipelineConfig provides tuning for the inbound message pipeline.
type PipelineConfig interface {
	GetQualifyHistoryLimit() int
	GetLeadLockTTL() time.Duration
	GetRouteSweepInterval() time.Duration
}

// WebhookConfig provides settings for authenticating inbound webhooks.
type WebhookConfig interface {
	GetTwilioAuthToken() string
	GetWebhookValidateSignature() bool
	GetWebhookPublicURL() string
	GetInternalAPIKey() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string
	TwilioBaseURL            string
	SMSRatePerSecond         float64
	OpenAIAPIKey             string
	OpenAIModel              string
	GeminiAPIKey             string
	GeminiModel              string
	MoonshotAPIKey           string
	MoonshotModel            string
	LLMTimeout               time.Duration
	QualifyHistoryLimit      int
	LeadLockTTL              time.Duration
	RouteSweepInterval       time.Duration
	WebhookValidateSignature bool
	WebhookPublicURL         string
	WebhookRatePerSecond     float64
	InternalAPIKey           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string              { return c.HTTPAddr }
func (c *Config) GetWebhookRatePerSecond() float64 { return c.WebhookRatePerSecond }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SMSConfig implementation
func (c *Config) GetTwilioAccountSID() string  { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string   { return c.TwilioAuthToken }
func (c *Config) GetTwilioFromNumber() string  { return c.TwilioFromNumber }
func (c *Config) GetTwilioBaseURL() string     { return c.TwilioBaseURL }
func (c *Config) GetSMSRatePerSecond() float64 { return c.SMSRatePerSecond }
func (c *Config) IsSMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// LLMConfig implementation
func (c *Config) GetOpenAIAPIKey() string      { return c.OpenAIAPIKey }
func (c *Config) GetOpenAIModel() string       { return c.OpenAIModel }
func (c *Config) GetGeminiAPIKey() string      { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string       { return c.GeminiModel }
func (c *Config) GetMoonshotAPIKey() string    { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string     { return c.MoonshotModel }
func (c *Config) GetLLMTimeout() time.Duration { return c.LLMTimeout }

// PipelineConfig implementation
func (c *Config) GetQualifyHistoryLimit() int          { return c.QualifyHistoryLimit }
func (c *Config) GetLeadLockTTL() time.Duration        { return c.LeadLockTTL }
func (c *Config) GetRouteSweepInterval() time.Duration { return c.RouteSweepInterval }

// WebhookConfig implementation
func (c *Config) GetWebhookValidateSignature() bool { return c.WebhookValidateSignature }
func (c *Config) GetWebhookPublicURL() string       { return c.WebhookPublicURL }
func (c *Config) GetInternalAPIKey() string         { return c.InternalAPIKey }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:         getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioBaseURL:            getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		SMSRatePerSecond:         mustFloat(getEnv("SMS_RATE_PER_SECOND", "10")),
		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:              getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		MoonshotAPIKey:           getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:            getEnv("MOONSHOT_MODEL", "kimi-k2-turbo-preview"),
		LLMTimeout:               mustDuration(getEnv("LLM_TIMEOUT", "20s")),
		QualifyHistoryLimit:      mustInt(getEnv("QUALIFY_HISTORY_LIMIT", "20")),
		LeadLockTTL:              mustDuration(getEnv("LEAD_LOCK_TTL", "60s")),
		RouteSweepInterval:       mustDuration(getEnv("ROUTE_SWEEP_INTERVAL", "0s")),
		WebhookValidateSignature: strings.EqualFold(getEnv("WEBHOOK_VALIDATE_SIGNATURE", "false"), "true"),
		WebhookPublicURL:         strings.TrimRight(getEnv("WEBHOOK_PUBLIC_URL", ""), "/"),
		WebhookRatePerSecond:     mustFloat(getEnv("WEBHOOK_RATE_PER_SECOND", "20")),
		InternalAPIKey:           getEnv("INTERNAL_API_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookValidateSignature && cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN is required when WEBHOOK_VALIDATE_SIGNATURE is true")
	}
	if cfg.WebhookValidateSignature && cfg.WebhookPublicURL == "" {
		return nil, fmt.Errorf("WEBHOOK_PUBLIC_URL is required when WEBHOOK_VALIDATE_SIGNATURE is true")
	}
	if cfg.QualifyHistoryLimit < 1 {
		cfg.QualifyHistoryLimit = 20
	}
	if cfg.LeadLockTTL <= 0 {
		cfg.LeadLockTTL = 60 * time.Second
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 20 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}
