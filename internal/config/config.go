package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig describes the remote catalog / registration API.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.org/v1".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// CatalogPaths maps a catalog kind ("event", "hackathon") to its list
	// endpoint path.
	CatalogPaths map[string]string `yaml:"catalog_paths" json:"catalog_paths"`

	// RegistrationPaths maps a catalog kind to the current user's
	// registration list endpoint.
	RegistrationPaths map[string]string `yaml:"registration_paths" json:"registration_paths"`

	// Timeout bounds a single upstream request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for upstream timestamps that carry
	// no offset (e.g. "Asia/Kolkata").
	Timezone string `yaml:"timezone" json:"timezone"`

	API APIConfig `yaml:"api" json:"api"`

	// RegistrationTimeout is how long a catalog request waits for the
	// registration list before answering without it.
	RegistrationTimeout time.Duration `yaml:"registration_timeout" json:"registration_timeout"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used to refresh the public ICS feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	CORS CORSConfig `yaml:"cors" json:"cors"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://127.0.0.1:5000/api"
	}
	if c.API.CatalogPaths == nil {
		c.API.CatalogPaths = map[string]string{}
	}
	if c.API.CatalogPaths["event"] == "" {
		c.API.CatalogPaths["event"] = "/events"
	}
	if c.API.CatalogPaths["hackathon"] == "" {
		c.API.CatalogPaths["hackathon"] = "/hackathons"
	}
	if c.API.RegistrationPaths == nil {
		c.API.RegistrationPaths = map[string]string{}
	}
	if c.API.RegistrationPaths["event"] == "" {
		c.API.RegistrationPaths["event"] = "/events/registered"
	}
	if c.API.RegistrationPaths["hackathon"] == "" {
		c.API.RegistrationPaths["hackathon"] = "/hackathons/registered"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.RegistrationTimeout <= 0 {
		c.RegistrationTimeout = time.Second
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.CORS.AllowedOrigins == nil {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
	switch c.LogLevel {
	case "debug", "info", "error":
		// ok
	default:
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides file values from CATALOGD_* environment variables.
// Call it after loading .env so those values are visible here.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("CATALOGD_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("CATALOGD_API_BASE_URL"); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := os.LookupEnv("CATALOGD_TIMEZONE"); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := os.LookupEnv("CATALOGD_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}

// Location resolves Timezone, falling back to UTC when it is invalid.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".catalogd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
