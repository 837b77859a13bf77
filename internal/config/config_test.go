package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Order.InsideDhakaCharge.Equal(decimal.NewFromInt(60)))
	assert.True(t, cfg.Order.OutsideDhakaCharge.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "BDT", cfg.Gateway.Currency)
	assert.Equal(t, 30*time.Minute, cfg.Reclaim.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Reclaim.Staleness)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ProductionRequiresStoreCredentials(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SSLCOMMERZ_STORE_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSLCOMMERZ_STORE_ID")
}

func TestLoad_OverridesAndBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DELIVERY_CHARGE_INSIDE_DHAKA", "70.50")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RECLAIM_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "70.5", cfg.Order.InsideDhakaCharge.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Reclaim.Interval)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "shop", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=shop sslmode=disable", c.DSN())

	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
