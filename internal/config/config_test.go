package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CI", "false")
	t.Setenv("AI_CACHE_DISABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.True(t, cfg.AICacheEnabled)
	assert.Equal(t, 24*time.Hour, cfg.AICacheTTL)
	assert.Equal(t, 0.05, cfg.CommissionRate)
	assert.Equal(t, 0.02, cfg.JobGiverFeeRate)
	assert.Equal(t, 24*time.Hour, cfg.MonitorInterval)
	assert.Equal(t, "https://sandbox.cashfree.com", cfg.CashfreeBaseURL)
}

func TestLoad_CIDisablesAICache(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CI", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.AICacheEnabled)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ProductionRequiresOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CASHFREE_WEBHOOK_SECRET", "whsec")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CORS_ALLOWED_ORIGINS")
}

func TestLoad_SplitsOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
