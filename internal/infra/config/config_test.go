package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9090"
  allowedOrigins: ["https://planner.example.com"]
planner:
  provider: backend
  baseUrl: http://recipes:8000
session:
  secret: from-file
  ttl: 30m
export:
  imageTimeout: 3s
`), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SESSION_SECRET", "from-env")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("VALKEY_ENABLED", "true")
	t.Setenv("VALKEY_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, "http://recipes:8000", cfg.Planner.BaseURL)
	require.Equal(t, "from-env", cfg.Session.Secret)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, 3*time.Second, cfg.Export.ImageTimeout)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.AllowedOrigins)
	require.True(t, cfg.Cache.Valkey.Enabled)
	require.Equal(t, "weekly-meal-plan.pdf", cfg.Export.Filename)
	require.False(t, cfg.Storage.R2.Enabled())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Session.Secret = "s3cret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"missing secret":      func(c *Config) { c.Session.Secret = "" },
		"unknown provider":    func(c *Config) { c.Planner.Provider = "magic" },
		"llm without key":     func(c *Config) { c.Planner.Provider = "llm" },
		"valkey without addr": func(c *Config) { c.Cache.Valkey.Enabled = true },
		"zero image timeout":  func(c *Config) { c.Export.ImageTimeout = 0 },
		"bad rate limit":      func(c *Config) { c.HTTP.RateLimit.Burst = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
