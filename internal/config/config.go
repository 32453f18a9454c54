package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Lockout
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// OTP per-purpose policy overrides
	OtpPolicies map[domain.OtpPurpose]auth.OtpPolicy

	// OTP purge
	OtpPurgeInterval time.Duration
	OtpPurgeAge      time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// MFA
	MFAEncryptionKey string

	// HTTP
	AppBaseURL         string
	CORSAllowedOrigins []string
	CookieSecure       bool

	// Rate limiting
	RateLimit RateLimitConfig
}

// RateLimitConfig holds per-endpoint-class rate limits.
type RateLimitConfig struct {
	Enabled         bool
	AuthRequests    int
	AuthWindow      time.Duration
	OtpRequests     int
	OtpWindow       time.Duration
	RefreshRequests int
	RefreshWindow   time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "urbanserve_identity"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "urbanserve-identity"),
		JWTAudience:     getEnv("JWT_AUDIENCE", "urbanserve"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		MaxFailedAttempts: getEnvInt("MAX_FAILED_LOGIN_ATTEMPTS", 5),
		LockoutDuration:   getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		OtpPolicies: loadOtpPolicies(),

		OtpPurgeInterval: getEnvDuration("OTP_PURGE_INTERVAL", time.Hour),
		OtpPurgeAge:      getEnvDuration("OTP_PURGE_AGE", 24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "UrbanServe"),

		MFAEncryptionKey: getEnv("MFA_ENCRYPTION_KEY", ""),

		AppBaseURL:         getEnv("APP_BASE_URL", "http://localhost:8080"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),

		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequests:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindow:      getEnvDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),
			OtpRequests:     getEnvInt("RATE_LIMIT_OTP_REQUESTS", 5),
			OtpWindow:       getEnvDuration("RATE_LIMIT_OTP_WINDOW", 5*time.Minute),
			RefreshRequests: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindow:   getEnvDuration("RATE_LIMIT_REFRESH_WINDOW", time.Minute),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

// HasSMTP returns true if SMTP delivery is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasMFA returns true if TOTP MFA is configured.
func (c *Config) HasMFA() bool {
	return len(c.MFAEncryptionKey) == 32
}

// loadOtpPolicies builds the per-purpose OTP policy map, starting from
// the defaults and applying env overrides per purpose.
func loadOtpPolicies() map[domain.OtpPurpose]auth.OtpPolicy {
	policies := auth.DefaultOtpPolicies()
	for purpose, prefix := range map[domain.OtpPurpose]string{
		domain.OtpPurposeLogin:             "OTP_LOGIN",
		domain.OtpPurposePasswordReset:     "OTP_PASSWORD_RESET",
		domain.OtpPurposeEmailVerification: "OTP_EMAIL_VERIFICATION",
		domain.OtpPurposeTwoFactorAuth:     "OTP_TWO_FACTOR",
	} {
		p := policies[purpose]
		p.Length = getEnvInt(prefix+"_LENGTH", p.Length)
		p.TTL = getEnvDuration(prefix+"_TTL", p.TTL)
		p.MaxAttempts = getEnvInt(prefix+"_MAX_ATTEMPTS", p.MaxAttempts)
		policies[purpose] = p
	}
	return policies
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
