package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONITE_ENTITY_ID", "9d2b4c8a-4f7e-4c1b-9a53-0c5d2e7f1a10")
	t.Setenv("MONITE_ENTITY_USER_ID", "u1")
	t.Setenv("MONITE_CLIENT_ID", "client")
	t.Setenv("MONITE_CLIENT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "https://api.sandbox.monite.com/v1", cfg.Monite.APIURL)
	assert.Equal(t, time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 0, cfg.Query.Retry)
	assert.Equal(t, "en", cfg.Locale.Default)
	assert.Equal(t, []string{"en", "de", "fr", "es", "it", "nl"}, cfg.Locale.Supported)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Nil(t, cfg.Monite.Headers)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("QUERY_STALE_TIME", "5m")
	t.Setenv("QUERY_RETRY", "2")
	t.Setenv("RATELIMIT_RPS", "2.5")
	t.Setenv("RATELIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("MONITE_HEADERS", "X-Partner: acme; x-trace-tag : blue ;broken")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 2, cfg.Query.Retry)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.RateLimit.TrustedProxies)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, map[string]string{"x-partner": "acme", "x-trace-tag": "blue"}, cfg.Monite.Headers)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("MONITE_ENTITY_ID", "not-a-uuid")
	t.Setenv("MONITE_ENTITY_USER_ID", "")
	t.Setenv("MONITE_CLIENT_ID", "")
	t.Setenv("MONITE_CLIENT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONITE_ENTITY_ID must be a UUID")
	assert.Contains(t, err.Error(), "MONITE_CLIENT_ID and MONITE_CLIENT_SECRET are required")
	assert.Contains(t, err.Error(), "MONITE_ENTITY_USER_ID is required")
}
