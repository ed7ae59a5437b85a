package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider string
	APIKey   string
	// BaseURL applies to OpenAI-compatible endpoints only.
	BaseURL string
	Models  ModelSet
}

// NewProvider creates the configured backend. A missing credential yields an
// error wrapping apperrors.ErrMissingAPIKey.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = ProviderGemini
	}

	var (
		p   Provider
		err error
	)
	switch name {
	case ProviderGemini:
		p, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Models, logger)
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Models, logger)
	case ProviderAnthropic:
		p, err = NewAnthropicProvider(cfg.APIKey, cfg.Models, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", name, err)
	}

	logger.Named("llm").Info("AI provider configured",
		zap.String("provider", name),
		zap.String("fast_model", cfg.Models.Fast),
		zap.String("image_model", cfg.Models.Image),
		zap.String("chat_model", cfg.Models.Chat))

	return p, nil
}
