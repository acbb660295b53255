package config

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	// Common
	Env      string `env:"ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// API
	Port     string        `env:"PORT" envDefault:"8080"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"postgres"`
	DBPort      int    `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME" envDefault:"stock_data"`
	DBUser      string `env:"DB_USER" envDefault:"stock_user"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	// Provider
	Symbol         string        `env:"STOCK_SYMBOL" envDefault:"AAPL"`
	Provider       string        `env:"PROVIDER" envDefault:"alphavantage"`
	StockAPIBase   string        `env:"STOCK_API_BASE" envDefault:"https://www.alphavantage.co"`
	StockAPIKey    string        `env:"STOCK_API_KEY"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	// Worker
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"1h"`
	Retries          int           `env:"RETRIES" envDefault:"1"`
	RetryDelay       time.Duration `env:"RETRY_DELAY" envDefault:"5m"`
	// Redis (idempotency)
	IdempotencyBackend string        `env:"IDEMPOTENCY_BACKEND" envDefault:"redis"`
	RedisAddr          string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	// Kafka (quote events)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"stock-quotes"`
}

// Load reads environment variables and applies defaults.
func Load() (Config, error) {
	var cfg Config
	return cfg, env.Parse(&cfg)
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL assembled from the DB_* parts.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else if c.DBUser != "" {
		u.User = url.User(c.DBUser)
	}
	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
