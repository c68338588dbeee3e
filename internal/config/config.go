package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingSecret = errors.New("required secret is not set")

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	GRPCHealthAddr string        `yaml:"grpc_health_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	SecureCookies  bool          `yaml:"secure_cookies"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"db_name"`
	SSLMode        string `yaml:"ssl_mode"`
	MigrationsPath string `yaml:"migrations_path"`
}

type CatalogConfig struct {
	Path           string `yaml:"path"`
	MigrationsPath string `yaml:"migrations_path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	CartTTL  time.Duration `yaml:"cart_ttl"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	EventTick    time.Duration `yaml:"event_tick"`
	RecoveryTick time.Duration `yaml:"recovery_tick"`
}

type GatewayConfig struct {
	BaseURL   string        `yaml:"base_url"`
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	VerifyWindow  time.Duration `yaml:"verify_window"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type Config struct {
	LogLevel string         `yaml:"log_level"`
	Dev      bool           `yaml:"dev"`
	HoldTTL  time.Duration  `yaml:"hold_ttl"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		HoldTTL:  15 * time.Minute,
		HTTP: HTTPConfig{
			Addr:           ":8080",
			GRPCHealthAddr: ":50060",
			RequestTimeout: 10 * time.Second,
			ShutdownGrace:  10 * time.Second,
			RateLimit:      10,
			RateBurst:      20,
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			DBName:         "redclaw",
			SSLMode:        "disable",
			MigrationsPath: "./internal/repository/migrations",
		},
		Catalog: CatalogConfig{
			Path:           "./data/catalog.db",
			MigrationsPath: "./internal/catalog/migrations",
		},
		Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "redclaw"},
		Redis: RedisConfig{Addr: "localhost:6379", LockTTL: 30 * time.Second, CartTTL: 15 * time.Minute},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			Topic:        "order-events",
			EventTick:    time.Second,
			RecoveryTick: 30 * time.Second,
		},
		Gateway: GatewayConfig{BaseURL: "https://api.razorpay.com/v1", Timeout: 10 * time.Second},
		Auth: AuthConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SweepInterval: time.Hour,
			VerifyWindow:  24 * time.Hour,
		},
		SMTP: SMTPConfig{Host: "localhost", Port: 587, From: "orders@redclaw.store"},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE, an optional .env file and finally the process environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, key string) { *dst = getEnv(key, *dst) }
	num := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(&c.LogLevel, "LOG_LEVEL")
	flag(&c.Dev, "DEV")
	dur(&c.HoldTTL, "HOLD_TTL")

	str(&c.HTTP.Addr, "HTTP_ADDR")
	str(&c.HTTP.GRPCHealthAddr, "GRPC_HEALTH_ADDR")
	dur(&c.HTTP.RequestTimeout, "REQUEST_TIMEOUT")
	dur(&c.HTTP.ShutdownGrace, "SHUTDOWN_GRACE")
	num(&c.HTTP.RateBurst, "RATE_BURST")
	flag(&c.HTTP.SecureCookies, "SECURE_COOKIES")
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RATE_LIMIT: %w", err))
		} else {
			c.HTTP.RateLimit = f
		}
	}

	str(&c.Postgres.Host, "DB_HOST")
	num(&c.Postgres.Port, "DB_PORT")
	str(&c.Postgres.User, "DB_USER")
	str(&c.Postgres.Password, "DB_PASSWORD")
	str(&c.Postgres.DBName, "DB_NAME")
	str(&c.Postgres.SSLMode, "DB_SSLMODE")
	str(&c.Postgres.MigrationsPath, "MIGRATIONS_PATH")

	str(&c.Catalog.Path, "CATALOG_DB_PATH")
	str(&c.Catalog.MigrationsPath, "CATALOG_MIGRATIONS_PATH")

	str(&c.Mongo.URI, "MONGO_URI")
	str(&c.Mongo.Database, "MONGO_DB")

	str(&c.Redis.Addr, "REDIS_ADDR")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	num(&c.Redis.DB, "REDIS_DB")
	dur(&c.Redis.LockTTL, "VERIFY_LOCK_TTL")
	dur(&c.Redis.CartTTL, "CART_CACHE_TTL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str(&c.Kafka.Topic, "KAFKA_TOPIC")
	dur(&c.Kafka.EventTick, "OUTBOX_EVENT_TICK")
	dur(&c.Kafka.RecoveryTick, "OUTBOX_RECOVERY_TICK")

	str(&c.Gateway.BaseURL, "RAZORPAY_BASE_URL")
	str(&c.Gateway.KeyID, "RAZORPAY_KEY_ID")
	str(&c.Gateway.KeySecret, "RAZORPAY_KEY_SECRET")
	dur(&c.Gateway.Timeout, "RAZORPAY_TIMEOUT")

	str(&c.Auth.AccessSecret, "ACCESS_TOKEN_SECRET")
	str(&c.Auth.RefreshSecret, "REFRESH_TOKEN_SECRET")
	dur(&c.Auth.AccessTTL, "ACCESS_TOKEN_TTL")
	dur(&c.Auth.RefreshTTL, "REFRESH_TOKEN_TTL")
	dur(&c.Auth.SweepInterval, "SIGNUP_SWEEP_INTERVAL")
	dur(&c.Auth.VerifyWindow, "SIGNUP_VERIFY_WINDOW")

	str(&c.SMTP.Host, "SMTP_HOST")
	num(&c.SMTP.Port, "SMTP_PORT")
	str(&c.SMTP.Username, "SMTP_USERNAME")
	str(&c.SMTP.Password, "SMTP_PASSWORD")
	str(&c.SMTP.From, "SMTP_FROM")

	return errors.Join(errs...)
}

// Validate reports every missing secret at once.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"RAZORPAY_KEY_ID":      c.Gateway.KeyID,
		"RAZORPAY_KEY_SECRET":  c.Gateway.KeySecret,
		"ACCESS_TOKEN_SECRET":  c.Auth.AccessSecret,
		"REFRESH_TOKEN_SECRET": c.Auth.RefreshSecret,
	}
	for _, key := range []string{"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSecret, key))
		}
	}
	if c.Auth.AccessSecret != "" && c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("at least one kafka broker is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
