package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  A .env file in the working directory is loaded
// first when present; real environment variables win over it.
type Config struct {
	Env          string        // application environment (e.g. "dev", "prod")
	ListenAddr   string        // TCP address of the booking protocol listener
	HTTPAddr     string        // HTTP gateway address; empty disables the gateway
	IdleTimeout  time.Duration // idle connection timeout; zero disables it
	BcryptCost   int           // bcrypt cost for credential digests
	DB           DBConfig
	JWTSecret    string // secret used to sign gateway session tokens
	AccessTTLMin int    // gateway token time-to-live in minutes
	AMQPURL      string // RabbitMQ URL; empty disables event publishing
	LogConsumer  bool   // run the booking.log consumer in-process
}

// DBConfig selects the storage dialect and how to reach it.  Path is used by
// the sqlite3 driver; the remaining fields by mysql.
type DBConfig struct {
	Driver string // sqlite3 | mysql
	Path   string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	_ = godotenv.Load() // optional; a missing .env file is not an error

	cfg := Config{
		Env:          getenv("APP_ENV", "dev"),
		ListenAddr:   getenv("LISTEN_ADDR", "127.0.0.1:65432"),
		HTTPAddr:     os.Getenv("HTTP_ADDR"),
		IdleTimeout:  envDur("IDLE_TIMEOUT", 0),
		BcryptCost:   envInt("BCRYPT_COST", 10),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AMQPURL:      amqpURL(),
		LogConsumer:  envBool("BOOKING_LOG_CONSUMER", false),
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite3")),
			Path:   getenv("DB_PATH", "booking.db"),
			User:   os.Getenv("DB_USER"),
			Pass:   os.Getenv("DB_PASS"),
			Host:   getenv("DB_HOST", "127.0.0.1"),
			Port:   getenv("DB_PORT", "3306"),
			Name:   os.Getenv("DB_NAME"),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "sqlite3":
		if c.DB.Path == "" {
			return fmt.Errorf("config: DB_PATH is required for sqlite3")
		}
	case "mysql":
		if c.DB.User == "" || c.DB.Name == "" {
			return fmt.Errorf("config: DB_USER and DB_NAME are required for mysql")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("config: BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	// The gateway signs tokens, so it refuses to run without a secret.
	if c.HTTPAddr != "" && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required when HTTP_ADDR is set")
	}
	if c.AccessTTLMin <= 0 {
		return fmt.Errorf("config: ACCESS_TOKEN_TTL_MIN must be positive")
	}
	return nil
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
