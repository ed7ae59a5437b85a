package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
)

// DefaultPath is the YAML file Load reads when present.
const DefaultPath = "config.yaml"

// Config holds all configuration for agrovision-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// API keys must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	LLM    LLMConfig    `yaml:"llm"`
	Chat   ChatConfig   `yaml:"chat"`
	Stores StoresConfig `yaml:"stores"`
}

// LLMConfig selects the AI provider and tunes how requests reach it.
type LLMConfig struct {
	Provider      string `yaml:"provider" env:"LLM_PROVIDER" env-default:"gemini"`
	FastModel     string `yaml:"fast_model" env:"LLM_FAST_MODEL" env-default:"gemini-2.5-flash"`
	ImageModel    string `yaml:"image_model" env:"LLM_IMAGE_MODEL" env-default:"gemini-2.5-flash-image"`
	ChatModel     string `yaml:"chat_model" env:"LLM_CHAT_MODEL" env-default:"gemini-2.5-flash"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`

	// Secrets - not in YAML
	GeminiAPIKey    string `yaml:"-" env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`

	RequestTimeout    time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"45s"`
	MaxRetries        int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay" env:"LLM_INITIAL_RETRY_DELAY" env-default:"1s"`

	// Client-side pacing and circuit breaking.
	RequestsPerSecond  float64       `yaml:"requests_per_second" env:"LLM_REQUESTS_PER_SECOND" env-default:"2"`
	Burst              int           `yaml:"burst" env:"LLM_BURST" env-default:"4"`
	MaxConcurrent      int           `yaml:"max_concurrent" env:"LLM_MAX_CONCURRENT" env-default:"8"`
	BreakerFailures    uint32        `yaml:"breaker_failures" env:"LLM_BREAKER_FAILURES" env-default:"5"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout" env:"LLM_BREAKER_OPEN_TIMEOUT" env-default:"30s"`
}

// APIKey returns the credential for the selected provider.
func (c *LLMConfig) APIKey() string {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

// ChatConfig holds conversational session settings.
type ChatConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl" env:"CHAT_SESSION_TTL" env-default:"30m"`
}

// StoresConfig configures the fertilizer store directory.
type StoresConfig struct {
	RadiusKm float64 `yaml:"radius_km" env:"STORES_RADIUS_KM" env-default:"10"`
	// DirectoryFile replaces the built-in store list when set.
	DirectoryFile string `yaml:"directory_file" env:"STORES_DIRECTORY_FILE" env-default:""`
}

// Load reads configuration from config.yaml (when present) with environment variable
// overrides. A .env file in the working directory is loaded first for local development.
// The version parameter is injected at build time and set on the returned Config.
// Load fails with apperrors.ErrMissingAPIKey when the selected provider has no key.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultPath, version)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateLLM(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validateLLM() error {
	switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm.provider %q (want gemini, openai or anthropic)", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.APIKey()) == "" {
		return fmt.Errorf("no API key for provider %s: %w", c.LLM.Provider, apperrors.ErrMissingAPIKey)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if c.Stores.RadiusKm <= 0 {
		return fmt.Errorf("stores.radius_km must be positive")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// IsLocal reports whether the server runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}
