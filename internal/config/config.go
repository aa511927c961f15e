package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret               string
	JWTExpirationDur        time.Duration
	JWTRefreshExpirationDur time.Duration

	// Ledger
	LedgerEpsilon decimal.Decimal

	// Events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reminders
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	ReminderSchedule string

	// Internal endpoints
	InternalAPIKey string
}

const devJWTSecret = "fallback-secret-key-for-dev-only"

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "splitledger"),
		DBPassword: getEnv("DB_PASSWORD", "splitledger"),
		DBName:     getEnv("DB_NAME", "splitledger"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "splitledger.db"),

		JWTSecret:               getEnv("JWT_SECRET", devJWTSecret),
		JWTExpirationDur:        getEnvDuration("JWT_EXPIRES_IN", 15*time.Minute),
		JWTRefreshExpirationDur: getEnvDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "splitledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger-events"),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", "no-reply@splitledger.local"),
		ReminderSchedule: getEnv("REMINDER_SCHEDULE", ""),

		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
	}

	var errs []error

	epsStr := getEnv("LEDGER_EPSILON", "0.01")
	eps, err := decimal.NewFromString(epsStr)
	if err != nil {
		errs = append(errs, fmt.Errorf("LEDGER_EPSILON: invalid decimal %q", epsStr))
	}
	config.LedgerEpsilon = eps

	portStr := getEnv("SMTP_PORT", "587")
	smtpPort, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, fmt.Errorf("SMTP_PORT: invalid integer %q", portStr))
	}
	config.SMTPPort = smtpPort

	if err := errors.Join(append(errs, config.Validate())...); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", c.Port))
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER: must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH: required when DB_DRIVER=sqlite"))
	}
	if c.Env == "production" && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET: must be set in production"))
	}
	if c.JWTExpirationDur <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN: must be positive"))
	}
	if c.JWTRefreshExpirationDur <= c.JWTExpirationDur {
		errs = append(errs, errors.New("JWT_REFRESH_EXPIRES_IN: must be longer than JWT_EXPIRES_IN"))
	}
	if c.LedgerEpsilon.Sign() <= 0 {
		errs = append(errs, errors.New("LEDGER_EPSILON: must be positive"))
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		errs = append(errs, errors.New("SMTP_PORT: must be positive"))
	}

	return errors.Join(errs...)
}

// RemindersEnabled reports whether the periodic reminder job should run.
func (c *Config) RemindersEnabled() bool {
	return c.ReminderSchedule != ""
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, v, defaultValue)
		return defaultValue
	}
	return d
}
