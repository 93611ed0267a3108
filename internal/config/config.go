package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	SLA      SLAConfig
	Sweep    SweepConfig
	Workload WorkloadConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token validation parameters. Tokens are issued by the
// portal's identity service; this engine only verifies them.
type AuthConfig struct {
	JWTSecret string
}

// SLAConfig is the injectable SLA table. Durations in minutes; zero means
// "use the default for that priority".
type SLAConfig struct {
	UrgentMinutes int
	HighMinutes   int
	MediumMinutes int
	LowMinutes    int
	FlatPenalty   string
	// Per-priority penalty overrides; empty string leaves the flat amount
	// in effect for that priority.
	UrgentPenalty string
	HighPenalty   string
	MediumPenalty string
	LowPenalty    string
}

// SweepConfig controls the background SLA sweep.
type SweepConfig struct {
	IntervalSeconds int
	Enabled         bool
}

// WorkloadConfig controls the snapshot cache.
type WorkloadConfig struct {
	CacheTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		SLA: SLAConfig{
			UrgentMinutes: getEnvAsInt("SLA_URGENT_MINUTES", 0),
			HighMinutes:   getEnvAsInt("SLA_HIGH_MINUTES", 0),
			MediumMinutes: getEnvAsInt("SLA_MEDIUM_MINUTES", 0),
			LowMinutes:    getEnvAsInt("SLA_LOW_MINUTES", 0),
			FlatPenalty:   getEnv("SLA_FLAT_PENALTY", ""),
			UrgentPenalty: getEnv("SLA_URGENT_PENALTY", ""),
			HighPenalty:   getEnv("SLA_HIGH_PENALTY", ""),
			MediumPenalty: getEnv("SLA_MEDIUM_PENALTY", ""),
			LowPenalty:    getEnv("SLA_LOW_PENALTY", ""),
		},
		Sweep: SweepConfig{
			IntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 60),
			Enabled:         getEnvAsBool("SLA_SWEEP_ENABLED", true),
		},
		Workload: WorkloadConfig{
			CacheTTLSeconds: getEnvAsInt("WORKLOAD_CACHE_TTL_SECONDS", 30),
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

// Interval returns the sweep cadence.
func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// CacheTTL returns the workload snapshot cache lifetime.
func (w WorkloadConfig) CacheTTL() time.Duration {
	if w.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(w.CacheTTLSeconds) * time.Second
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
