package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	RedisURL       string        `mapstructure:"REDIS_URL"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	KafkaBrokers          []string `mapstructure:"KAFKA_BROKERS"`
	KafkaAuditTopic       string   `mapstructure:"KAFKA_AUDIT_TOPIC"`
	KafkaAppointmentTopic string   `mapstructure:"KAFKA_APPOINTMENT_TOPIC"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	ReminderSchedule string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderLeadTime time.Duration `mapstructure:"REMINDER_LEAD_TIME"`

	BookingNumberAttempts int     `mapstructure:"BOOKING_NUMBER_ATTEMPTS"`
	MetricsEnabled        bool    `mapstructure:"METRICS_ENABLED"`
	TraceSampleRatio      float64 `mapstructure:"TRACE_SAMPLE_RATIO"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DEFAULT_TENANT", "CORS_ORIGINS",
	"REQUEST_TIMEOUT", "BODY_LIMIT",
	"JWT_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REDIS_URL", "IDEMPOTENCY_TTL",
	"KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC", "KAFKA_APPOINTMENT_TOPIC",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM",
	"REMINDER_SCHEDULE", "REMINDER_LEAD_TIME",
	"BOOKING_NUMBER_ATTEMPTS", "METRICS_ENABLED", "TRACE_SAMPLE_RATIO",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "channeling.audit")
	v.SetDefault("KAFKA_APPOINTMENT_TOPIC", "channeling.appointments")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("REMINDER_SCHEDULE", "*/15 * * * *")
	v.SetDefault("REMINDER_LEAD_TIME", "2h")
	v.SetDefault("BOOKING_NUMBER_ATTEMPTS", 3)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("TRACE_SAMPLE_RATIO", 1.0)

	// Unmarshal only sees keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); unauthenticated requests get admin access.")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// KafkaEnabled reports whether events should be published to Kafka instead of the log.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// SMTPEnabled reports whether outbound mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing key is mandatory so bearer tokens are actually verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters, got %d", len(c.JWTSigningKey))
	}
	if c.SMTPEnabled() {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTPPort)
		}
		if c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
		}
	}
	if c.BookingNumberAttempts < 1 || c.BookingNumberAttempts > 10 {
		return fmt.Errorf("BOOKING_NUMBER_ATTEMPTS must be between 1 and 10, got %d", c.BookingNumberAttempts)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %g", c.TraceSampleRatio)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.ReminderLeadTime < 0 {
		return fmt.Errorf("REMINDER_LEAD_TIME must not be negative")
	}
	return nil
}
