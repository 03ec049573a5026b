package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HUDSON_ADDR", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DEDUP_WAIT_TIMEOUT", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, DefaultDedupWait, cfg.Dedup.WaitTimeout)
	assert.Equal(t, DefaultDedupMaxAge, cfg.Dedup.MaxAge)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HUDSON_ADDR", ":9090")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("DEDUP_WAIT_TIMEOUT", "5s")
	t.Setenv("DEDUP_RETRIES", "4")
	t.Setenv("RATE_LIMITS_FILE", "/etc/hudson/limits.yaml")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.TrustProxyHeaders)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	assert.Equal(t, 5*time.Second, cfg.Dedup.WaitTimeout)
	assert.Equal(t, uint(4), cfg.Dedup.Retries)
	assert.Equal(t, "/etc/hudson/limits.yaml", cfg.RateLimit.LimitsFile)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DEDUP_WAIT_TIMEOUT", "thirty"},
		{"DEDUP_MAX_AGE", "-1m"},
		{"MAX_BODY_BYTES", "-5"},
		{"TRUST_PROXY_HEADERS", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromEnvRequiresStrongAdminTokenInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ADMIN_API_TOKEN", "short")

	_, err := FromEnv()
	require.Error(t, err)
}
