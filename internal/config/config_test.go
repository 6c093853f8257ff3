package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 3, cfg.DBTxMaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.LowStockThreshold)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("DB_TX_MAX_RETRIES", "5")
	t.Setenv("JWT_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 5, cfg.DBTxMaxRetries)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	t.Setenv("DB_TX_MAX_RETRIES", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@db:5432/pos"}
	assert.Equal(t, "postgres://u:p@db:5432/pos", cfg.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/pos", cfg.MigrationURL())

	cfg = &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "pos", DBPort: "5433"}
	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "port=5433")
	assert.Equal(t, "postgres://u:p@db:5433/pos?sslmode=disable", cfg.MigrationURL())
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	loc := cfg.Location()

	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*60*60, offset)
}
