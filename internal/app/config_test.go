package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "MARKET",
		SkipFlags: true,
		SkipFiles: true,
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MARKET_DATABASE_URL", "postgres://localhost/market")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := testLoad()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "random", cfg.OfferPolicy)
	assert.Equal(t, 14*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "payments", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Payments.Workers)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.UTC, cfg.Location())

	rates, err := cfg.ShippingRates()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2000").Equal(rates.FreeThreshold))
	assert.True(t, decimal.RequireFromString("200").Equal(rates.Standard))
	assert.True(t, decimal.RequireFromString("500").Equal(rates.Express))
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("MARKET_DATABASE_URL", "postgres://localhost/market")
	t.Setenv("MARKET_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MARKET_SHIPPING_EXPRESS_FEE", "750.50")
	t.Setenv("MARKET_TIMEZONE", "Europe/Berlin")

	cfg, err := testLoad()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())

	rates, err := cfg.ShippingRates()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("750.50").Equal(rates.Express))
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("MARKET_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/1")
	t.Setenv("PORT", "9000")

	cfg, err := testLoad()
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/1", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("NoDatabase", func(t *testing.T) {
		t.Setenv("MARKET_DATABASE_URL", "")
		t.Setenv("DATABASE_URL", "")
		_, err := testLoad()
		require.ErrorContains(t, err, "database URL is required")
	})

	t.Run("BadFee", func(t *testing.T) {
		t.Setenv("MARKET_DATABASE_URL", "postgres://localhost/market")
		t.Setenv("MARKET_SHIPPING_STANDARD_FEE", "cheap")
		_, err := testLoad()
		require.ErrorContains(t, err, "standard fee")
	})

	t.Run("BadTimezone", func(t *testing.T) {
		t.Setenv("MARKET_DATABASE_URL", "postgres://localhost/market")
		t.Setenv("MARKET_TIMEZONE", "Mars/Olympus")
		_, err := testLoad()
		require.ErrorContains(t, err, "timezone")
	})
}
