package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 120*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "enrollment_records", cfg.Store.Table)
	assert.Equal(t, 500, cfg.Import.BatchSize)
	assert.Empty(t, cfg.Import.SpoolDir)
	assert.Equal(t, 24*time.Hour, cfg.Import.SpoolTTL)
	assert.Equal(t, 1000, cfg.Comparison.PageSize)
	assert.Equal(t, 15, cfg.Comparison.WindowDays)
	assert.Equal(t, 4, cfg.Comparison.Terms)
	assert.Equal(t, "pt", cfg.Comparison.WeekdayLocale)
	assert.False(t, cfg.JWT.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STORE_DRIVER", "REST")
	t.Setenv("STORE_REST_URL", "https://store.example.com/")
	t.Setenv("STORE_TIMEOUT", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("IMPORT_SPOOL_DIR", " /var/spool/imports ")
	t.Setenv("IMPORT_SPOOL_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverREST, cfg.Store.Driver)
	assert.Equal(t, "https://store.example.com", cfg.Store.RESTURL)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "/var/spool/imports", cfg.Import.SpoolDir)
	assert.Equal(t, 2*time.Hour, cfg.Import.SpoolTTL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
