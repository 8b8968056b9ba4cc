package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", " MySQL ")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("INVENTORY_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 3, cfg.InventoryWorkers)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORE_DRIVER", "oracle")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("INVENTORY_WORKERS", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "INVENTORY_WORKERS")
}
