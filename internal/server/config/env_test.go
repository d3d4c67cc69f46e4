package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "10.0.0.1")
	t.Setenv("PORT", "4443")
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("REQUIRE_ACTIVATION", "false")
	t.Setenv("ADMIN_SECRET", "env-secret")
	t.Setenv("RETENTION_PERIOD", "24h")
	t.Setenv("RATE_LIMIT_PER_IP", "7")
	t.Setenv("MAX_MESSAGE_BYTES", "2048")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("BLOB_STORAGE", "s3")
	t.Setenv("S3_BUCKET", "env-bucket")

	cfg := defaults()
	parseEnv(cfg)

	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 4443, cfg.Port)
	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.False(t, cfg.RequireActivation)
	assert.Equal(t, "env-secret", cfg.AdminSecret)
	assert.Equal(t, 24*time.Hour, cfg.RetentionPeriod)
	assert.Equal(t, 7, cfg.RateLimitPerIP)
	assert.Equal(t, int64(2048), cfg.MaxMessageBytes)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, "s3", cfg.BlobStorage)
	assert.Equal(t, "env-bucket", cfg.S3Bucket)
	assert.Equal(t, 10000, cfg.RateLimitPerVault, "unset variables keep earlier values")
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	require.Panics(t, func() { parseEnv(defaults()) })
}
