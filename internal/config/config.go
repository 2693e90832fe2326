// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "campus-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "campus-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// AllowedEmailDomainsRaw is a comma-separated list of institution email suffixes accepted at signup.
	// Email domains of seeded colleges are accepted in addition to these.
	AllowedEmailDomainsRaw string `mapstructure:"ALLOWED_EMAIL_DOMAINS"`
	// SignupPolicyFile is an optional Rego file replacing the built-in campus.signup policy.
	SignupPolicyFile string `mapstructure:"SIGNUP_POLICY_FILE"`
	// OTPTTLRaw is how long an emailed signup code stays valid (e.g. "10m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is how many wrong codes invalidate a challenge.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPResendCooldownRaw is the minimum gap between two code dispatches for one email (e.g. "60s").
	OTPResendCooldownRaw string `mapstructure:"OTP_RESEND_COOLDOWN"`
	// OTPReturnToClient when true enables dev OTP mode: the code is kept in memory for GET /dev/otp.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// CORSAllowedOrigins is a comma-separated list of browser origins allowed to call the API.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// MailDriver selects the OTP mail transport: smtp, gmail or filesystem.
	MailDriver string `mapstructure:"MAIL_DRIVER"`
	// MailFrom is the sender address on outgoing mail.
	MailFrom     string `mapstructure:"MAIL_FROM"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// MailOutboxDir is where the filesystem driver writes messages.
	MailOutboxDir string `mapstructure:"MAIL_OUTBOX_DIR"`
	// GmailCredentialsFile is the OAuth client JSON downloaded from Google Cloud console.
	GmailCredentialsFile string `mapstructure:"GMAIL_CREDENTIALS_FILE"`
	// GmailTokenFile is where setup-gmail-auth persists the refresh token.
	GmailTokenFile string `mapstructure:"GMAIL_TOKEN_FILE"`

	// RedisAddr enables the shared Redis rate limiter when set (comma-separated for clusters).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RateLimitPerMinute caps /auth/* requests per client IP.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses for auth events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "campus-auth")
	v.SetDefault("JWT_AUDIENCE", "campus-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("ALLOWED_EMAIL_DOMAINS", "khwopa.edu.np")
	v.SetDefault("SIGNUP_POLICY_FILE", "")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RESEND_COOLDOWN", "60s")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAIL_DRIVER", "filesystem")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_OUTBOX_DIR", "./outbox")
	v.SetDefault("GMAIL_CREDENTIALS_FILE", "credentials.json")
	v.SetDefault("GMAIL_TOKEN_FILE", "token.json")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "campus-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "campus-auth-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.OTPMaxAttempts <= 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}

	switch cfg.MailDriver {
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, errors.New("config: SMTP_HOST must be set when MAIL_DRIVER=smtp")
		}
	case "gmail", "filesystem":
	default:
		return nil, errors.New("config: MAIL_DRIVER must be one of smtp, gmail, filesystem")
	}

	if len(cfg.AllowedEmailDomains()) == 0 {
		return nil, errors.New("config: ALLOWED_EMAIL_DOMAINS must list at least one domain")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// OTPTTL parses OTPTTLRaw. Returns 10m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseDuration(c.OTPTTLRaw, 10*time.Minute)
}

// ResendCooldown parses OTPResendCooldownRaw. Returns 60s if unset, invalid or non-positive.
func (c *Config) ResendCooldown() time.Duration {
	return parseDuration(c.OTPResendCooldownRaw, time.Minute)
}

// AllowedEmailDomains returns the lower-cased domain suffixes from ALLOWED_EMAIL_DOMAINS.
// A leading "@" or "." is stripped so "@khwopa.edu.np" and "khwopa.edu.np" are equivalent.
func (c *Config) AllowedEmailDomains() []string {
	var out []string
	for _, d := range splitList(c.AllowedEmailDomainsRaw) {
		d = strings.TrimLeft(strings.ToLower(d), "@.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// CORSOrigins returns the allowed browser origins.
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event streaming is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// RedisAddrs returns the Redis init addresses; nil when the Redis limiter is disabled.
func (c *Config) RedisAddrs() []string {
	return splitList(c.RedisAddr)
}

// DevOTPEnabled reports whether the dev OTP endpoint should be served.
func (c *Config) DevOTPEnabled() bool {
	return c.OTPReturnToClient && c.Env != "production"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
