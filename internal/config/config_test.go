package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := fs.NewDir(t, "catalogd-config")
	path := filepath.Join(dir.Path(), "nested", "config.yaml")

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, DefaultConfig())

	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Equal(t, info.Mode().Perm(), os.FileMode(0o600))

	again, err := Load(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, again, cfg)
}

func TestDefaultRegistrationTimeout(t *testing.T) {
	assert.Equal(t, DefaultConfig().RegistrationTimeout, time.Second)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	dir := fs.NewDir(t, "catalogd-config", fs.WithFile("config.yaml", `
listen: ":9000"
timezone: Asia/Kolkata
registration_timeout: 500ms
api:
  base_url: https://api.example.org/v1
  catalog_paths:
    hackathon: /v1/hacks
log_level: loud
`))

	cfg, err := Load(dir.Join("config.yaml"))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Listen, ":9000")
	assert.Equal(t, cfg.Timezone, "Asia/Kolkata")
	assert.Equal(t, cfg.RegistrationTimeout, 500*time.Millisecond)
	assert.Equal(t, cfg.API.BaseURL, "https://api.example.org/v1")
	assert.Equal(t, cfg.API.CatalogPaths["hackathon"], "/v1/hacks")
	assert.Equal(t, cfg.API.CatalogPaths["event"], "/events")
	assert.Equal(t, cfg.API.Timeout, 15*time.Second)
	assert.Equal(t, cfg.RefreshCron, "*/5 * * * *")
	assert.Equal(t, cfg.LogLevel, "info")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := fs.NewDir(t, "catalogd-config", fs.WithFile("config.yaml", "listen: [unterminated"))
	_, err := Load(dir.Join("config.yaml"))
	assert.Assert(t, err != nil)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "config path is empty")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CATALOGD_LISTEN", "0.0.0.0:8081")
	t.Setenv("CATALOGD_API_BASE_URL", "http://upstream.internal/api")
	t.Setenv("CATALOGD_TIMEZONE", "Europe/Berlin")
	t.Setenv("CATALOGD_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, cfg.Listen, "0.0.0.0:8081")
	assert.Equal(t, cfg.API.BaseURL, "http://upstream.internal/api")
	assert.Equal(t, cfg.Timezone, "Europe/Berlin")
	assert.Equal(t, cfg.LogLevel, "debug")
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	loc, err := cfg.Location()
	assert.Assert(t, err != nil)
	assert.Equal(t, loc, time.UTC)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := fs.NewDir(t, "catalogd-config")
	path := dir.Join("config.yaml")

	cfg := DefaultConfig()
	cfg.CORS.AllowedOrigins = []string{"https://app.example.org"}
	cfg.RegistrationTimeout = 2 * time.Second
	assert.NilError(t, cfg.Save(path))

	got, err := Load(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, cfg)
}
