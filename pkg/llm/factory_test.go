package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
)

func TestNewProvider_MissingKey(t *testing.T) {
	for _, name := range []string{ProviderGemini, ProviderAnthropic} {
		t.Run(name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), ProviderConfig{Provider: name}, zap.NewNop())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMissingAPIKey))
			assert.Equal(t, ErrorTypeConfig, ClassifyError(err).Type)
		})
	}
}

func TestNewProvider_OpenAICompatibleWithoutKey(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{
		Provider: "OpenAI",
		BaseURL:  "http://localhost:11434/v1/",
	}, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
}

func TestNewProvider_Anthropic(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{Provider: "anthropic", APIKey: "test-key"}, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Provider: "llama"}, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama")
}

func TestModelSet_Resolve(t *testing.T) {
	m := ModelSet{Fast: "fast-model", Image: "image-model"}

	assert.Equal(t, "fast-model", m.Resolve(TierFast, ""))
	assert.Equal(t, "image-model", m.Resolve(TierImage, ""))
	assert.Equal(t, "fast-model", m.Resolve(TierChat, ""), "chat falls back to the fast model")
	assert.Equal(t, "override", m.Resolve(TierImage, "override"))
}

func TestOpenAIProvider_RejectsImageOutput(t *testing.T) {
	p, err := NewOpenAIProvider("sk-test", "", ModelSet{}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), &Request{Modality: ModalityImage})

	assert.Equal(t, ErrorTypeUnsupported, GetErrorType(err))
}
