package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ServiceName    = "frozen-pos"
	ServiceVersion = "1.0.0"
)

type Config struct {
	Port string `envconfig:"PORT" default:"3000"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"frozen_pos"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`
	DBAutoMigrate  bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	DBSerializable bool   `envconfig:"DB_SERIALIZABLE" default:"false"`
	DBTxMaxRetries int    `envconfig:"DB_TX_MAX_RETRIES" default:"3"`

	JWTSecret          string        `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	JWTTTL             time.Duration `envconfig:"JWT_TTL" default:"24h"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"5m"`

	Timezone          string `envconfig:"APP_TIMEZONE" default:"Asia/Jakarta"`
	LowStockThreshold int    `envconfig:"LOW_STOCK_THRESHOLD" default:"10"`
	ExpiryWarningDays int    `envconfig:"EXPIRY_WARNING_DAYS" default:"7"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"pos.inventory.events"`

	OtelEndpoint   string `envconfig:"OTEL_ENDPOINT"`
	OtelAuthHeader string `envconfig:"OTEL_AUTH_HEADER"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DBTxMaxRetries < 0 {
		return nil, fmt.Errorf("DB_TX_MAX_RETRIES must not be negative")
	}
	return &cfg, nil
}

// DSN returns DATABASE_URL or builds one from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

// MigrationURL is the URL form golang-migrate expects.
func (c *Config) MigrationURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Location is the shop's local timezone used for day buckets in reports.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		// Fallback to UTC+7 if timezone data not available
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }
func (c *Config) TracingEnabled() bool { return c.OtelEndpoint != "" }
