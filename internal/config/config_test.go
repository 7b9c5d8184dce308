package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, 500.0, cfg.FreeShippingThreshold)
	assert.Equal(t, 50.0, cfg.ShippingFee)
	assert.Equal(t, 48*time.Hour, cfg.NegotiationTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FREE_SHIPPING_THRESHOLD", "1000")
	t.Setenv("NEGOTIATION_TTL_HOURS", "2")
	t.Setenv("ALLOW_CROSS_SITE_DEV", "TRUE")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.FreeShippingThreshold)
	assert.Equal(t, 2*time.Hour, cfg.NegotiationTTL)
	assert.True(t, cfg.AllowCrossSiteDev)
}
