package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Pricing.CacheTTL)
	assert.Equal(t, "INR", cfg.Pricing.BaseCurrency)
	assert.Equal(t, "half_up", cfg.Pricing.DefaultRounding)
	assert.Equal(t, "pricing-events", cfg.Kafka.TopicPricing)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, 2*time.Minute, cfg.Pricing.CacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadExchangeRatesDefault(t *testing.T) {
	rates, err := PricingConfig{}.LoadExchangeRates()
	require.NoError(t, err)
	assert.Equal(t, "INR", rates.Base())
	assert.True(t, rates.Supports("USD"))
}

func TestLoadExchangeRatesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := "base: USD\nrates:\n  USD: \"1\"\n  eur: \"0.92\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rates, err := PricingConfig{ExchangeRatesFile: path, BaseCurrency: "INR"}.LoadExchangeRates()
	require.NoError(t, err)
	assert.Equal(t, "USD", rates.Base())
	assert.Equal(t, []string{"EUR", "USD"}, rates.Currencies())

	got, err := rates.Convert(decimal.NewFromInt(100), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "92.00", got.StringFixed(2))
}

func TestParseExchangeRatesErrors(t *testing.T) {
	_, err := ParseExchangeRates([]byte("rates:\n  USD: \"abc\"\n"), "USD")
	assert.Error(t, err)

	_, err = ParseExchangeRates([]byte("rates:\n  EUR: \"0.9\"\n"), "USD")
	assert.Error(t, err, "base currency missing")

	_, err = ParseExchangeRates([]byte(":::"), "USD")
	assert.Error(t, err)
}
