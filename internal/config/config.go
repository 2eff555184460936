package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Session      SessionConfig
	Logger       LoggerConfig
	Tools        ToolsConfig
	Pricing      PricingConfig
	Payment      PaymentConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig bounds the per-session request lock.
type SessionConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// ToolsMode selects the data provider transport.
type ToolsMode string

const (
	ToolsModeLocal  ToolsMode = "local"
	ToolsModeRemote ToolsMode = "remote"
)

// ToolsConfig defines the tool-call transport and retry policy.
type ToolsConfig struct {
	Mode        ToolsMode
	RemoteURL   string
	CallTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	TokenSecret string
	TokenTTL    time.Duration
	StaleAfter  time.Duration
}

// PricingConfig holds calendar adjustment settings.
type PricingConfig struct {
	Currency            string
	WeekendMultiplierBP int64
	WeekendDays         string
	QuoteDays           int
	MinLeadDays         int
	BlackoutDates       []string
}

// PaymentConfig locates the payment collaborator.
type PaymentConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NotificationConfig locates the notification collaborator.
type NotificationConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	MaxAttempts  int
	QueueSize    int
	Workers      int
	SendTimeout  time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-upgrade-agent"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Session: SessionConfig{
			LockTTL:  getEnvAsDuration("SESSION_LOCK_TTL_SECONDS", 30, time.Second),
			LockWait: getEnvAsDuration("SESSION_LOCK_WAIT_MS", 2000, time.Millisecond),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tools: ToolsConfig{
			Mode:        ToolsMode(strings.ToLower(getEnv("TOOLS_MODE", string(ToolsModeLocal)))),
			RemoteURL:   os.Getenv("TOOLS_REMOTE_URL"),
			CallTimeout: getEnvAsDuration("TOOLS_CALL_TIMEOUT_MS", 3000, time.Millisecond),
			MaxAttempts: getEnvAsInt("TOOLS_MAX_ATTEMPTS", 3),
			BackoffBase: getEnvAsDuration("TOOLS_BACKOFF_BASE_MS", 100, time.Millisecond),
			BackoffMax:  getEnvAsDuration("TOOLS_BACKOFF_MAX_MS", 1000, time.Millisecond),
			TokenSecret: getEnv("TOOLS_TOKEN_SECRET", "dev-tool-secret"),
			TokenTTL:    getEnvAsDuration("TOOLS_TOKEN_TTL_SECONDS", 60, time.Second),
			StaleAfter:  getEnvAsDuration("INTEGRITY_STALE_AFTER_HOURS", 24, time.Hour),
		},
		Pricing: PricingConfig{
			Currency:            getEnv("PRICING_CURRENCY", "USD"),
			WeekendMultiplierBP: int64(getEnvAsInt("PRICING_WEEKEND_MULTIPLIER_BP", 12000)),
			WeekendDays:         getEnv("PRICING_WEEKEND_DAYS", "saturday,sunday"),
			QuoteDays:           getEnvAsInt("PRICING_QUOTE_DAYS", 7),
			MinLeadDays:         getEnvAsInt("PRICING_MIN_LEAD_DAYS", 2),
			BlackoutDates:       getEnvAsList("PRICING_BLACKOUT_DATES"),
		},
		Payment: PaymentConfig{
			BaseURL: os.Getenv("PAYMENT_BASE_URL"),
			Timeout: getEnvAsDuration("PAYMENT_TIMEOUT_MS", 5000, time.Millisecond),
		},
		Notification: NotificationConfig{
			KafkaBrokers: getEnvAsList("NOTIFY_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "upgrade-notifications"),
			MaxAttempts:  getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 2),
			SendTimeout:  getEnvAsDuration("NOTIFY_SEND_TIMEOUT_MS", 10000, time.Millisecond),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Tools.Mode {
	case ToolsModeLocal:
	case ToolsModeRemote:
		if c.Tools.RemoteURL == "" {
			return fmt.Errorf("TOOLS_REMOTE_URL is required when TOOLS_MODE=remote")
		}
	default:
		return fmt.Errorf("invalid TOOLS_MODE %q", c.Tools.Mode)
	}
	if c.Tools.MaxAttempts < 1 {
		return fmt.Errorf("TOOLS_MAX_ATTEMPTS must be at least 1")
	}
	if c.Pricing.WeekendMultiplierBP <= 0 {
		return fmt.Errorf("PRICING_WEEKEND_MULTIPLIER_BP must be positive")
	}
	if c.Pricing.MinLeadDays < 0 {
		return fmt.Errorf("PRICING_MIN_LEAD_DAYS must not be negative")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * unit
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
