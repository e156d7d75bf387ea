package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	ListenAddr    string
	AllowedOrigin string

	OTLPEndpoint string

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

	PaymentKeyID      string
	PaymentKeySecret  string
	PaymentBaseURL    string
	PaymentTimeout    time.Duration
	CompletionAPIKey  string
	CompletionBaseURL string
	CompletionModel   string
	CompletionTimeout time.Duration
	ImageGenAPIKey    string
	ImageGenBaseURL   string
	ImageGenTimeout   time.Duration

	RateLimit RateLimitConfig
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MessageRate   float64
	MessageBurst  int
}

// Load loads configuration from environment variables and .env file.
// Startup fails fast when a required value is absent.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "parley"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		ListenAddr:    ":" + getenv("PORT", "8080"),
		AllowedOrigin: strings.TrimSpace(getenv("ALLOWED_ORIGIN", "")),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "parley"),
		DBUser:            getenv("DATABASE_USER", "parley"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		PaymentKeyID:      strings.TrimSpace(getenv("PAYMENT_KEY_ID", "")),
		PaymentKeySecret:  strings.TrimSpace(getenv("PAYMENT_KEY_SECRET", "")),
		PaymentBaseURL:    getenv("PAYMENT_BASE_URL", "https://api.paygate.example"),
		PaymentTimeout:    getenvDuration("PAYMENT_TIMEOUT", 15*time.Second),
		CompletionAPIKey:  strings.TrimSpace(getenv("COMPLETION_API_KEY", "")),
		CompletionBaseURL: getenv("COMPLETION_BASE_URL", "https://api.completion.example"),
		CompletionModel:   getenv("COMPLETION_MODEL", "standard"),
		CompletionTimeout: getenvDuration("COMPLETION_TIMEOUT", 30*time.Second),
		ImageGenAPIKey:    strings.TrimSpace(getenv("IMAGEGEN_API_KEY", "")),
		ImageGenBaseURL:   getenv("IMAGEGEN_BASE_URL", "https://api.imagegen.example"),
		ImageGenTimeout:   getenvDuration("IMAGEGEN_TIMEOUT", 60*time.Second),

		RateLimit: RateLimitConfig{
			RedisAddr:     strings.TrimSpace(getenv("RATELIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATELIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATELIMIT_REDIS_DB", 0),
			MessageRate:   getenvFloat("RATELIMIT_MESSAGE_RATE", 2),
			MessageBurst:  getenvInt("RATELIMIT_MESSAGE_BURST", 10),
		},
	}
	cfg.RateLimit.Enabled = cfg.RateLimit.RedisAddr != ""

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"PAYMENT_KEY_ID", c.PaymentKeyID},
		{"PAYMENT_KEY_SECRET", c.PaymentKeySecret},
		{"COMPLETION_API_KEY", c.CompletionAPIKey},
		{"IMAGEGEN_API_KEY", c.ImageGenAPIKey},
		{"ALLOWED_ORIGIN", c.AllowedOrigin},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			return fmt.Errorf("config: %s is required", item.key)
		}
	}
	if c.DBType == "postgres" || c.DBType == "mysql" {
		if strings.TrimSpace(c.DBPassword) == "" {
			return fmt.Errorf("config: DATABASE_PASSWORD is required for %s", c.DBType)
		}
	}
	return nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanHolder),
)

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
