package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	MetricsEnabled   bool
	OTLPEndpoint     string
	OTLPProtocol     string
	DefaultCompanyID int64

	SchedulerEnabled         bool
	SchedulerIntervalSeconds int

	RateLimit RateLimitConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// RateLimitConfig controls the redis-backed posting limiter. Disabled
// by default so single-node deployments need no redis.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostingRate           float64
	PostingBurst          int
	PostingLockTTLSeconds int
}

// Module provides Config and the tax policy holder.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Provide(NewTaxPolicyHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "kudibooks"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		MetricsEnabled:   getenvBool("METRICS_ENABLED", false),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:     strings.ToLower(getenv("OTLP_PROTOCOL", "grpc")),
		DefaultCompanyID: getenvInt64("DEFAULT_COMPANY", 0),

		SchedulerEnabled:         getenvBool("SCHEDULER_ENABLED", true),
		SchedulerIntervalSeconds: getenvInt("SCHEDULER_INTERVAL_SECONDS", 300),

		RateLimit: RateLimitConfig{
			Enabled:               getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:             getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword:         getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:               getenvInt("RATE_LIMIT_REDIS_DB", 0),
			PostingRate:           getenvFloat("RATE_LIMIT_POSTING_RATE", 20),
			PostingBurst:          getenvInt("RATE_LIMIT_POSTING_BURST", 40),
			PostingLockTTLSeconds: getenvInt("RATE_LIMIT_POSTING_LOCK_TTL_SECONDS", 30),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kudibooks"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
