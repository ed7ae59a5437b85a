package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	anthropicMaxTokens    = 4096
)

// AnthropicProvider talks to the Anthropic Messages API. It has no server-side
// structured output, so schemas always travel in the prompt.
type AnthropicProvider struct {
	client *anthropic.Client
	models ModelSet
	logger *zap.Logger
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(apiKey string, modelSet ModelSet, logger *zap.Logger) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, apperrors.ErrMissingAPIKey
	}
	if modelSet.Fast == "" {
		modelSet.Fast = DefaultAnthropicModel
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		models: modelSet,
		logger: logger.Named("llm").With(zap.String("provider", "anthropic")),
	}, nil
}

// Name implements Provider.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate implements Provider.
func (a *AnthropicProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req.WantsImage() {
		return nil, NewError(ErrorTypeUnsupported, MsgUnsupported, false,
			fmt.Errorf("image output is not supported by %s", a.Name()))
	}

	model := a.models.Resolve(req.Tier, req.Model)

	prompt := req.Prompt
	if req.Schema != nil && !req.SchemaInPrompt {
		prompt += "\n\n" + SchemaInstruction(req.Schema)
	}
	if req.Grounding != nil {
		prompt += fmt.Sprintf("\n\nThe user's location is latitude %.4f, longitude %.4f.",
			req.Grounding.Latitude, req.Grounding.Longitude)
	}

	content := make([]anthropic.MessageContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropic.MessageContent{
			Type: "image",
			Source: &anthropic.MessageContentSource{
				Type:      "base64",
				MediaType: img.MIMEType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	content = append(content, anthropic.MessageContent{Type: "text", Text: &prompt})

	msgReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System:    req.System,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
		Temperature: req.Temperature,
	}

	a.logger.Debug("Anthropic request",
		zap.String("capability", string(req.Capability)),
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := a.client.CreateMessages(ctx, msgReq)
	if err != nil {
		a.logger.Error("Anthropic request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		classified := ClassifyError(err)
		classified.Model = model
		return nil, classified
	}

	out := &Response{
		Text:         anthropicText(resp),
		FinishReason: strings.ToUpper(string(resp.StopReason)),
		Model:        model,
	}

	a.logger.Info("Anthropic request completed",
		zap.String("capability", string(req.Capability)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

// StreamChat implements Provider. The reply is produced in one request and
// delivered as a single chunk.
func (a *AnthropicProvider) StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
	model := a.models.Resolve(TierChat, req.Model)

	messages := make([]anthropic.Message, 0, len(req.History)+1)
	for _, msg := range req.History {
		if msg.Pending || msg.Error || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := anthropic.RoleUser
		if msg.Sender == models.SenderBot {
			role = anthropic.RoleAssistant
		}
		// The API requires the conversation to open with a user turn.
		if len(messages) == 0 && role != anthropic.RoleUser {
			continue
		}
		messages = appendTurn(messages, role, msg.Text)
	}
	messages = appendTurn(messages, anthropic.RoleUser, req.Message)

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System:    req.System,
		Messages:  messages,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = model
		return "", classified
	}

	text := anthropicText(resp)
	if text != "" && onChunk != nil {
		onChunk(text)
	}
	return text, nil
}

// appendTurn adds text as a new turn, folding it into the previous turn when the
// roles match since the API rejects consecutive turns from the same role.
func appendTurn(messages []anthropic.Message, role anthropic.ChatRole, text string) []anthropic.Message {
	block := anthropic.MessageContent{Type: "text", Text: &text}
	if n := len(messages); n > 0 && messages[n-1].Role == role {
		messages[n-1].Content = append(messages[n-1].Content, block)
		return messages
	}
	return append(messages, anthropic.Message{Role: role, Content: []anthropic.MessageContent{block}})
}

func anthropicText(resp anthropic.MessagesResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String()
}

var _ Provider = (*AnthropicProvider)(nil)
