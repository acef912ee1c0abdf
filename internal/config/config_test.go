package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromDir(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFromDir(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "fleetaudit.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.RatePerMinute)
	assert.Equal(t, "https://mobile.fmcsa.dot.gov/qc/services", cfg.FMCSA.BaseURL)
	assert.Equal(t, "hunter_cache.json", cfg.Hunter.CachePath)
	assert.Equal(t, 2, cfg.Fulfillment.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Fulfillment.StepTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/fleetaudit
server:
  port: 9090
  admin_token: sekrit
fmcsa:
  web_key: abc123
fulfillment:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := loadFromDir(t, dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/fleetaudit", cfg.Store.DatabaseURL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.AdminToken)
	assert.Equal(t, "abc123", cfg.FMCSA.WebKey)
	assert.Equal(t, 4, cfg.Fulfillment.Workers)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FLEETAUDIT_HUNTER_API_KEY", "env-key")
	t.Setenv("FLEETAUDIT_FMCSA_WEB_KEY", "env-web-key")
	t.Setenv("FLEETAUDIT_RESEND_API_KEY", "env-resend")
	t.Setenv("FLEETAUDIT_SERVER_ADMIN_TOKEN", "env-token")
	t.Setenv("FLEETAUDIT_SMTP_HOST", "smtp.example.com")
	t.Setenv("FLEETAUDIT_LOG_LEVEL", "debug")

	cfg, err := loadFromDir(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Hunter.APIKey)
	assert.Equal(t, "env-web-key", cfg.FMCSA.WebKey)
	assert.Equal(t, "env-resend", cfg.Resend.APIKey)
	assert.Equal(t, "env-token", cfg.Server.AdminToken)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
