package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
)

// inTempDir runs the test from an empty directory so no stray config.yaml or .env is read.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_PROVIDER", "PORT", "BASE_URL", "ENVIRONMENT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("GEMINI_API_KEY", "AIza-test")

	cfg, err := Load("test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "3443", cfg.Port)
	assert.Equal(t, "http://localhost:3443", cfg.BaseURL)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "AIza-test", cfg.LLM.APIKey())
	assert.Equal(t, 45*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.InitialRetryDelay)
	assert.Equal(t, uint32(5), cfg.LLM.BreakerFailures)
	assert.Equal(t, 30*time.Minute, cfg.Chat.SessionTTL)
	assert.Equal(t, 10.0, cfg.Stores.RadiusKm)
	assert.Empty(t, cfg.Stores.DirectoryFile)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := inTempDir(t)
	yamlContent := `
port: "8080"
env: "test"
llm:
  provider: "openai"
  fast_model: "gpt-4o-mini"
  request_timeout: "20s"
  max_retries: 3
chat:
  session_ttl: "10m"
stores:
  radius_km: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("PORT", "4443")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("v1")
	require.NoError(t, err)

	assert.Equal(t, "4443", cfg.Port, "env overrides yaml")
	assert.Equal(t, "http://localhost:4443", cfg.BaseURL)
	assert.Equal(t, "test", cfg.Env)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.FastModel)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey())
	assert.Equal(t, 20*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.Chat.SessionTTL)
	assert.Equal(t, 25.0, cfg.Stores.RadiusKm)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=from-dotenv\nLLM_PROVIDER=anthropic\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("ANTHROPIC_API_KEY")
		os.Unsetenv("LLM_PROVIDER")
	})

	cfg, err := Load("dev")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	inTempDir(t)

	_, err := Load("dev")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingAPIKey)
}

func TestLoad_UnknownProvider(t *testing.T) {
	inTempDir(t)
	t.Setenv("LLM_PROVIDER", "mistral")
	t.Setenv("GEMINI_API_KEY", "key")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown llm.provider "mistral"`)
}

func TestLoad_TLSRequiresBothFiles(t *testing.T) {
	inTempDir(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("TLS_CERT_PATH", "/nonexistent/cert.pem")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both tls_cert_path and tls_key_path must be provided together")
}

func TestLLMConfig_APIKey(t *testing.T) {
	c := LLMConfig{GeminiAPIKey: "g", OpenAIAPIKey: "o", AnthropicAPIKey: "a"}

	tests := []struct {
		provider string
		want     string
	}{
		{"gemini", "g"},
		{"", "g"},
		{"OpenAI", "o"},
		{" anthropic ", "a"},
	}
	for _, tt := range tests {
		c.Provider = tt.provider
		assert.Equal(t, tt.want, c.APIKey(), tt.provider)
	}
}
