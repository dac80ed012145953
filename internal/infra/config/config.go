package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Planner  PlannerConfig  `yaml:"planner"`
	LLM      LLMConfig      `yaml:"llm"`
	Session  SessionConfig  `yaml:"session"`
	Export   ExportConfig   `yaml:"export"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	MaxUploadBytes int64           `yaml:"maxUploadBytes"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// PlannerConfig selects where weekly plans come from.
type PlannerConfig struct {
	Provider       string        `yaml:"provider"`
	BaseURL        string        `yaml:"baseUrl"`
	Timeout        time.Duration `yaml:"timeout"`
	ImageKeyPrefix string        `yaml:"imageKeyPrefix"`
}

// LLMConfig contains ChatGPT/OpenAI settings for the llm provider.
type LLMConfig struct {
	APIKey      string            `yaml:"apiKey"`
	BaseURL     string            `yaml:"baseUrl"`
	Model       string            `yaml:"model"`
	Temperature float32           `yaml:"temperature"`
	MaxTokens   int               `yaml:"maxTokens"`
	ImageSearch ImageSearchConfig `yaml:"imageSearch"`
}

// ImageSearchConfig holds stock photo API keys used to illustrate generated
// recipes. Providers without a key are skipped.
type ImageSearchConfig struct {
	PixabayKey  string        `yaml:"pixabayKey"`
	PexelsKey   string        `yaml:"pexelsKey"`
	UnsplashKey string        `yaml:"unsplashKey"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// SessionConfig controls planner session lifetime.
type SessionConfig struct {
	Secret        string        `yaml:"secret"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// ExportConfig bounds PDF rendering.
type ExportConfig struct {
	Filename         string        `yaml:"filename"`
	ImageTimeout     time.Duration `yaml:"imageTimeout"`
	MaxImageBytes    int64         `yaml:"maxImageBytes"`
	ImageConcurrency int           `yaml:"imageConcurrency"`
	KeyPrefix        string        `yaml:"keyPrefix"`
	HistoryLimit     int           `yaml:"historyLimit"`

	// AllowPrivateImageHosts permits fetching recipe images from internal
	// addresses. Only meant for local development.
	AllowPrivateImageHosts bool `yaml:"allowPrivateImageHosts"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	R2 R2Config `yaml:"r2"`
}

// R2Config contains Cloudflare R2 (S3 compatible) credentials.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// Enabled reports whether enough settings exist to reach a bucket.
func (c R2Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// CacheConfig controls the export image cache.
type CacheConfig struct {
	ImageTTL       time.Duration `yaml:"imageTtl"`
	MemoryMaxBytes int64         `yaml:"memoryMaxBytes"`
	Valkey         ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")

	setString(&cfg.Planner.Provider, "PLANNER_PROVIDER")
	setString(&cfg.Planner.BaseURL, "PLANNER_BASE_URL")
	setDuration(&cfg.Planner.Timeout, "PLANNER_TIMEOUT")

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.ImageSearch.PixabayKey, "PIXABAY_API_KEY")
	setString(&cfg.LLM.ImageSearch.PexelsKey, "PEXELS_API_KEY")
	setString(&cfg.LLM.ImageSearch.UnsplashKey, "UNSPLASH_ACCESS_KEY")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}

	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setDuration(&cfg.Session.TTL, "SESSION_TTL")

	setDuration(&cfg.Export.ImageTimeout, "EXPORT_IMAGE_TIMEOUT")
	setBool(&cfg.Export.AllowPrivateImageHosts, "EXPORT_ALLOW_PRIVATE_IMAGE_HOSTS")

	setString(&cfg.Storage.R2.Endpoint, "R2_ENDPOINT")
	setString(&cfg.Storage.R2.AccessKey, "R2_ACCESS_KEY")
	setString(&cfg.Storage.R2.SecretKey, "R2_SECRET_KEY")
	setString(&cfg.Storage.R2.Bucket, "R2_BUCKET")
	setString(&cfg.Storage.R2.Region, "R2_REGION")

	setDuration(&cfg.Cache.ImageTTL, "CACHE_IMAGE_TTL")
	setBool(&cfg.Cache.Valkey.Enabled, "VALKEY_ENABLED")
	setString(&cfg.Cache.Valkey.Addr, "VALKEY_ADDR")

	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 8 << 20,
			AllowedOrigins: []string{"http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Planner: PlannerConfig{
			Provider:       "backend",
			BaseURL:        "http://localhost:8000",
			Timeout:        90 * time.Second,
			ImageKeyPrefix: "meal-images",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
			MaxTokens:   8192,
			ImageSearch: ImageSearchConfig{
				Timeout:     5 * time.Second,
				Concurrency: 4,
			},
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: time.Minute,
		},
		Export: ExportConfig{
			Filename:         "weekly-meal-plan.pdf",
			ImageTimeout:     10 * time.Second,
			MaxImageBytes:    5 << 20,
			ImageConcurrency: 4,
			KeyPrefix:        "exports",
			HistoryLimit:     20,
		},
		Cache: CacheConfig{
			ImageTTL:       24 * time.Hour,
			MemoryMaxBytes: 64 << 20,
			Valkey: ValkeyConfig{
				Prefix: "mealplanner:img",
			},
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.maxUploadBytes must be positive")
	}
	switch c.Planner.Provider {
	case "backend":
		if strings.TrimSpace(c.Planner.BaseURL) == "" {
			return errors.New("planner.baseUrl cannot be empty for the backend provider")
		}
	case "llm":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.apiKey cannot be empty for the llm provider")
		}
	default:
		return fmt.Errorf("planner.provider must be backend or llm, got %q", c.Planner.Provider)
	}
	if c.Planner.Timeout <= 0 {
		return errors.New("planner.timeout must be positive")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("session.secret cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Export.ImageTimeout <= 0 {
		return errors.New("export.imageTimeout must be positive")
	}
	if c.Export.MaxImageBytes <= 0 {
		return errors.New("export.maxImageBytes must be positive")
	}
	if c.Cache.ImageTTL < 0 {
		return errors.New("cache.imageTtl cannot be negative")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when valkey cache is enabled")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	return nil
}
