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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// FinanceConfig provides settings for the external finance (fee) service.
type FinanceConfig interface {
	GetFinanceBaseURL() string
	GetFinanceAPIKey() string
	GetDeEnrollReasonID() int
}

// MDMConfig provides settings for the master-data service.
type MDMConfig interface {
	GetMDMBaseURL() string
	GetMDMAPIKey() string
}

// AdminPanelConfig provides settings for the admin-panel workflow service.
type AdminPanelConfig interface {
	GetAdminPanelBaseURL() string
	GetAdminPanelAPIKey() string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for the SMTP email sender.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayAPIKey() string
	GetSMSSenderID() string
	IsSMSEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketEnquiryDocuments() string
	GetMinioBucketExports() string
	IsMinIOEnabled() bool
}

// PaymentWebhookConfig provides settings for validating inbound payment events.
type PaymentWebhookConfig interface {
	GetPaymentWebhookSecret() string
	GetPaymentBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                         string
	HTTPAddr                    string
	DatabaseURL                 string
	JWTAccessSecret             string
	CORSAllowAll                bool
	CORSOrigins                 []string
	CORSAllowCreds              bool
	AppBaseURL                  string
	FinanceBaseURL              string
	FinanceAPIKey               string
	DeEnrollReasonID            int
	MDMBaseURL                  string
	MDMAPIKey                   string
	AdminPanelBaseURL           string
	AdminPanelAPIKey            string
	RedisURL                    string
	RedisTLSInsecure            bool
	AsynqQueueName              string
	AsynqConcurrency            int
	EmailEnabled                bool
	SMTPHost                    string
	SMTPPort                    int
	SMTPUsername                string
	SMTPPassword                string
	EmailFromName               string
	EmailFromAddress            string
	SMSGatewayURL               string
	SMSGatewayAPIKey            string
	SMSSenderID                 string
	MinIOEndpoint               string
	MinIOAccessKey              string
	MinIOSecretKey              string
	MinIOUseSSL                 bool
	MinIOMaxFileSize            int64
	MinioBucketEnquiryDocuments string
	MinioBucketExports          string
	PaymentWebhookSecret        string
	PaymentBaseURL              string
	HTTPClientTimeout           time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// FinanceConfig implementation
func (c *Config) GetFinanceBaseURL() string { return c.FinanceBaseURL }
func (c *Config) GetFinanceAPIKey() string  { return c.FinanceAPIKey }
func (c *Config) GetDeEnrollReasonID() int  { return c.DeEnrollReasonID }

// MDMConfig implementation
func (c *Config) GetMDMBaseURL() string { return c.MDMBaseURL }
func (c *Config) GetMDMAPIKey() string  { return c.MDMAPIKey }

// AdminPanelConfig implementation
func (c *Config) GetAdminPanelBaseURL() string { return c.AdminPanelBaseURL }
func (c *Config) GetAdminPanelAPIKey() string  { return c.AdminPanelAPIKey }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string    { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayAPIKey() string { return c.SMSGatewayAPIKey }
func (c *Config) GetSMSSenderID() string      { return c.SMSSenderID }
func (c *Config) IsSMSEnabled() bool          { return c.SMSGatewayURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketEnquiryDocuments() string {
	return c.MinioBucketEnquiryDocuments
}
func (c *Config) GetMinioBucketExports() string {
	return c.MinioBucketExports
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// PaymentWebhookConfig implementation
func (c *Config) GetPaymentWebhookSecret() string { return c.PaymentWebhookSecret }
func (c *Config) GetPaymentBaseURL() string       { return c.PaymentBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	smtpHost := getEnv("SMTP_HOST", "")

	cfg := &Config{
		Env:                         getEnv("APP_ENV", "development"),
		HTTPAddr:                    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                 getEnv("DATABASE_URL", ""),
		JWTAccessSecret:             getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                corsAllowAll,
		CORSOrigins:                 corsOrigins,
		CORSAllowCreds:              strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                  getEnv("APP_BASE_URL", "http://localhost:4200"),
		FinanceBaseURL:              getEnv("FINANCE_BASE_URL", ""),
		FinanceAPIKey:               getEnv("FINANCE_API_KEY", ""),
		DeEnrollReasonID:            mustInt(getEnv("FINANCE_DEENROLL_REASON_ID", "152")),
		MDMBaseURL:                  getEnv("MDM_BASE_URL", ""),
		MDMAPIKey:                   getEnv("MDM_API_KEY", ""),
		AdminPanelBaseURL:           getEnv("ADMIN_PANEL_BASE_URL", ""),
		AdminPanelAPIKey:            getEnv("ADMIN_PANEL_API_KEY", ""),
		RedisURL:                    getEnv("REDIS_URL", ""),
		RedisTLSInsecure:            strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:              getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:            mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailEnabled:                emailEnabled && smtpHost != "",
		SMTPHost:                    smtpHost,
		SMTPPort:                    mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:                getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                getEnv("SMTP_PASSWORD", ""),
		EmailFromName:               getEnv("EMAIL_FROM_NAME", "Admissions"),
		EmailFromAddress:            getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSGatewayURL:               getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayAPIKey:            getEnv("SMS_GATEWAY_API_KEY", ""),
		SMSSenderID:                 getEnv("SMS_SENDER_ID", "SCHOOL"),
		MinIOEndpoint:               getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:              getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:              getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                 strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:            mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "104857600")),
		MinioBucketEnquiryDocuments: getEnv("MINIO_BUCKET_ENQUIRY_DOCUMENTS", "enquiry-documents"),
		MinioBucketExports:          getEnv("MINIO_BUCKET_EXPORTS", "enquiry-exports"),
		PaymentWebhookSecret:        getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentBaseURL:              getEnv("PAYMENT_BASE_URL", ""),
		HTTPClientTimeout:           mustDuration(getEnv("HTTP_CLIENT_TIMEOUT", "10s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
