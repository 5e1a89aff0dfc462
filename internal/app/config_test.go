package app

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/internal/auth"
)

// unsetEnv clears keys for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "JWT_SECRET", "JWT_EXPIRES_IN", "USER_CACHE_TTL", "WORKER_METRICS_ADDR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.Equal(t, 60*time.Second, cfg.UserCacheTTL)
	assert.Equal(t, auth.DevelopmentSecret, cfg.JWTSecret)
	assert.NoError(t, cfg.SecretWarning())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", " Production ")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("JWT_EXPIRES_IN", "2w")
	t.Setenv("USER_CACHE_TTL", "5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 14*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.UserCacheTTL)
	assert.NoError(t, cfg.SecretWarning())
}

func TestDevelopmentSecretFlaggedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	unsetEnv(t, "JWT_SECRET", "JWT_EXPIRES_IN")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.SecretWarning(), auth.ErrMisconfiguredSecret)
}

func TestLoadConfigRejectsBadTTL(t *testing.T) {
	unsetEnv(t, "APP_ENV", "JWT_SECRET", "USER_CACHE_TTL")
	t.Setenv("JWT_EXPIRES_IN", "forever")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConnectionOptionsShareRedis(t *testing.T) {
	unsetEnv(t, "APP_ENV", "JWT_SECRET", "JWT_EXPIRES_IN", "PG_MAX_CONNS")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	cacheOpts := cfg.Redis()
	queueOpts := cfg.Queue()
	assert.Equal(t, "redis.internal:6380", cacheOpts.Addr)
	assert.Equal(t, cacheOpts.Addr, queueOpts.Addr)
	assert.Equal(t, "pw", queueOpts.Password)
	assert.Equal(t, 2, queueOpts.DB)
	assert.EqualValues(t, 10, cfg.Database().MaxConns)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"})
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"zapflow"`)

	buf.Reset()
	newLogger(&buf, &Config{AppEnv: "development"}).Debug("claims differ")
	assert.Contains(t, buf.String(), "claims differ")
}
