package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2*time.Hour, cfg.Conversion.StagingTTL)
	assert.Equal(t, "ADM", cfg.Admissions.NumberPrefix)
	assert.True(t, cfg.Setup.CacheEnabled)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IMS_API_BASE_URL", "http://ims.local/api/")
	t.Setenv("CONVERSION_STAGING_TTL", "45m")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://ims.local/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 45*time.Minute, cfg.Conversion.StagingTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, time.Second, parseDuration("1s", time.Minute))
}
