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
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Assignment AssignmentConfig
	Kafka      KafkaConfig
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
	DSN             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
	Service     string
}

// RingStoreKind selects where round-robin positions live.
type RingStoreKind string

const (
	RingStoreHistory RingStoreKind = "history"
	RingStoreRedis   RingStoreKind = "redis"
	RingStoreMemory  RingStoreKind = "memory"
)

// AssignmentConfig tunes the rules engine.
type AssignmentConfig struct {
	EngineName            string
	DefaultCategory       string
	DefaultMaxLoad        int
	RingStore             RingStoreKind
	RulesFile             string
	WriteRetryMax         int
	BreakerMaxFailures    int
	BreakerTimeoutSeconds int
}

// KafkaConfig enables streaming assignment decisions when Brokers is set.
type KafkaConfig struct {
	Brokers              []string
	AssignmentTopic      string
	PublishTimeoutMillis int
}

// PublishTimeout bounds a single event write.
func (k KafkaConfig) PublishTimeout() time.Duration {
	return time.Duration(k.PublishTimeoutMillis) * time.Millisecond
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ringStore := RingStoreKind(strings.ToLower(getEnv("ASSIGNMENT_RING_STORE", string(RingStoreHistory))))
	switch ringStore {
	case RingStoreHistory, RingStoreRedis, RingStoreMemory:
	default:
		return nil, fmt.Errorf("invalid ASSIGNMENT_RING_STORE: %q", ringStore)
	}

	appName := getEnv("APP_NAME", "assignment-engine")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: appName,
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Timeout:  time.Duration(getEnvAsInt("REDIS_TIMEOUT_SECONDS", 2)) * time.Second,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: appEnv == "development",
			Service:     appName,
		},
		Assignment: AssignmentConfig{
			EngineName:            getEnv("ASSIGNMENT_ENGINE_NAME", "Assignment Rules Engine"),
			DefaultCategory:       getEnv("ASSIGNMENT_DEFAULT_CATEGORY", "uncategorized"),
			DefaultMaxLoad:        getEnvAsInt("ASSIGNMENT_DEFAULT_MAX_LOAD", 999),
			RingStore:             ringStore,
			RulesFile:             os.Getenv("ASSIGNMENT_RULES_FILE"),
			WriteRetryMax:         getEnvAsInt("ASSIGNMENT_WRITE_RETRY_MAX", 5),
			BreakerMaxFailures:    getEnvAsInt("ASSIGNMENT_BREAKER_MAX_FAILURES", 5),
			BreakerTimeoutSeconds: getEnvAsInt("ASSIGNMENT_BREAKER_TIMEOUT_SECONDS", 30),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsList("KAFKA_BROKERS"),
			AssignmentTopic:      getEnv("KAFKA_ASSIGNMENT_TOPIC", "ticket-assignments"),
			PublishTimeoutMillis: getEnvAsInt("KAFKA_PUBLISH_TIMEOUT_MS", 2000),
		},
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

// BreakerTimeout returns how long the agent directory breaker stays open.
func (a AssignmentConfig) BreakerTimeout() time.Duration {
	if a.BreakerTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.BreakerTimeoutSeconds) * time.Second
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
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
