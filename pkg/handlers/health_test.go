package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/config"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

func testConfig() *config.Config {
	return &config.Config{
		Version: "test-version",
		Env:     "test",
		LLM:     config.LLMConfig{Provider: "gemini"},
	}
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "agrovision-engine", response.Service)
	assert.Equal(t, "test", response.Environment)
	assert.Equal(t, "gemini", response.Provider)
}

func TestHealthHandler_AIHealth(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		prober := llm.NewProber(llm.NewMockProvider("ok"), time.Second)
		handler := NewHealthHandler(testConfig(), prober, zap.NewNop())

		rec := httptest.NewRecorder()
		handler.AIHealth(rec, httptest.NewRequest(http.MethodGet, "/health/ai", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var result llm.ProbeResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.True(t, result.Success)
		assert.Equal(t, "mock", result.Provider)
	})

	t.Run("bad credential", func(t *testing.T) {
		mock := &llm.MockProvider{GenerateFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			return nil, errors.New("Error 400: API key not valid")
		}}
		handler := NewHealthHandler(testConfig(), llm.NewProber(mock, time.Second), zap.NewNop())

		rec := httptest.NewRecorder()
		handler.AIHealth(rec, httptest.NewRequest(http.MethodGet, "/health/ai", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var result llm.ProbeResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.False(t, result.Success)
		assert.Equal(t, llm.ErrorTypeInvalidCredential, result.ErrorType)
	})

	t.Run("not configured", func(t *testing.T) {
		handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

		rec := httptest.NewRecorder()
		handler.AIHealth(rec, httptest.NewRequest(http.MethodGet, "/health/ai", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
