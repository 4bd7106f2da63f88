package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "")
	t.Setenv("PAYMENT_SANDBOX", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.Sandbox)
	assert.False(t, cfg.DemoStats)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 100, cfg.ReconcileBatch)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestFromEnv_ProductionDisablesSandbox(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PAYMENT_SANDBOX", "")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.Sandbox)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PAYMENT_SANDBOX", "false")
	t.Setenv("DEMO_STATS", "true")
	t.Setenv("RECONCILE_INTERVAL", "15s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.False(t, cfg.Sandbox)
	assert.True(t, cfg.DemoStats)
	assert.Equal(t, 15*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnv_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RECONCILE_BATCH", "lots")
	_, err = FromEnv()
	assert.Error(t, err)
}
