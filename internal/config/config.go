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
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Helpdesk  HelpdeskConfig
	LLM       LLMConfig
	Scheduler SchedulerConfig
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

// PostgresConfig holds DB connection values.
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

// KafkaConfig holds the event sink settings. Empty Brokers disables the sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines reviewer token verification parameters.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// HelpdeskConfig points at the external ticket source.
type HelpdeskConfig struct {
	BaseURL  string
	APIToken string
	PageSize int
}

// LLMConfig configures the generative text capability.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// SchedulerConfig controls the background batch cadence.
type SchedulerConfig struct {
	Enabled            bool
	IntervalMinutes    int
	FixedTimes         []string
	InterCallDelayMS   int
	ClassifyAndDraft   bool
	RefreshBeforeBatch bool
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
			Name:                  getEnv("APP_NAME", "triage-service"),
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
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "triage-events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", "triage-service"),
		},
		Helpdesk: HelpdeskConfig{
			BaseURL:  getEnv("HELPDESK_BASE_URL", ""),
			APIToken: os.Getenv("HELPDESK_API_TOKEN"),
			PageSize: getEnvAsInt("HELPDESK_PAGE_SIZE", 100),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("LLM_API_KEY"),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 60),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getEnvAsBool("SCHEDULE_ENABLED", false),
			IntervalMinutes:    getEnvAsInt("SCHEDULE_INTERVAL_MINUTES", 0),
			FixedTimes:         getEnvAsList("SCHEDULE_FIXED_TIMES"),
			InterCallDelayMS:   getEnvAsInt("SCHEDULE_INTER_CALL_DELAY_MS", 1500),
			ClassifyAndDraft:   getEnvAsBool("SCHEDULE_CLASSIFY_AND_DRAFT", true),
			RefreshBeforeBatch: getEnvAsBool("SCHEDULE_REFRESH_BEFORE_BATCH", true),
		},
	}

	for _, fixed := range cfg.Scheduler.FixedTimes {
		if _, err := time.Parse("15:04", fixed); err != nil {
			return nil, fmt.Errorf("invalid SCHEDULE_FIXED_TIMES entry %q: %w", fixed, err)
		}
	}

	return cfg, nil
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

// InterCallDelay returns the pause inserted between external calls in a batch.
func (s SchedulerConfig) InterCallDelay() time.Duration {
	if s.InterCallDelayMS <= 0 {
		return 0
	}
	return time.Duration(s.InterCallDelayMS) * time.Millisecond
}

// Interval returns the periodic batch interval, zero when disabled.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Timeout returns the per-request LLM timeout.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
