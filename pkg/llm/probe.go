package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
)

// ProbeResult reports whether the configured provider answers.
type ProbeResult struct {
	Success        bool      `json:"success"`
	Provider       string    `json:"provider"`
	Message        string    `json:"message"`
	ErrorType      ErrorType `json:"error_type,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
}

// Prober checks provider connectivity.
type Prober interface {
	Probe(ctx context.Context) *ProbeResult
}

type providerProber struct {
	provider Provider
	timeout  time.Duration
	retry    *retry.Config
}

// NewProber creates a Prober that sends a minimal request through provider.
func NewProber(provider Provider, timeout time.Duration) Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &providerProber{
		provider: provider,
		timeout:  timeout,
		retry: &retry.Config{
			MaxRetries:       2,
			InitialDelay:     500 * time.Millisecond,
			MaxDelay:         2 * time.Second,
			Multiplier:       2.0,
			JitterFactor:     0.1,
			MaxSameErrorType: 2,
		},
	}
}

// Probe implements Prober.
func (p *providerProber) Probe(ctx context.Context) *ProbeResult {
	ctx, cancel := context.WithTimeout(WithCapability(ctx, CapabilityProbe), p.timeout)
	defer cancel()

	result := &ProbeResult{Provider: p.provider.Name()}
	start := time.Now()

	var text string
	err := retry.DoIfRetryable(ctx, p.retry, func() error {
		resp, err := p.provider.Generate(ctx, &Request{
			Capability: CapabilityProbe,
			Tier:       TierFast,
			Prompt:     "Say 'ok' and nothing else.",
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	result.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		classified := ClassifyError(err)
		result.ErrorType = classified.Type
		result.Message = classified.Message
		return result
	}
	if text == "" {
		result.ErrorType = ErrorTypeEmptyResponse
		result.Message = MsgEmptyResponse
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("AI provider reachable (%s, %dms)", p.provider.Name(), result.ResponseTimeMs)
	return result
}
