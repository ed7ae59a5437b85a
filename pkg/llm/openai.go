package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider talks to OpenAI-compatible chat completion endpoints.
type OpenAIProvider struct {
	client   *openai.Client
	endpoint string
	models   ModelSet
	logger   *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider. baseURL may be empty
// for the public API.
func NewOpenAIProvider(apiKey, baseURL string, modelSet ModelSet, logger *zap.Logger) (*OpenAIProvider, error) {
	if apiKey == "" && baseURL == "" {
		return nil, apperrors.ErrMissingAPIKey
	}
	if modelSet.Fast == "" {
		modelSet.Fast = DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: clientConfig.BaseURL,
		models:   modelSet,
		logger:   logger.Named("llm").With(zap.String("provider", "openai")),
	}, nil
}

// Name implements Provider.
func (c *OpenAIProvider) Name() string {
	return "openai"
}

// Generate implements Provider. Image output is not available on chat completions.
func (c *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req.WantsImage() {
		return nil, NewError(ErrorTypeUnsupported, MsgUnsupported, false,
			fmt.Errorf("image output is not supported by %s", c.Name()))
	}

	model := c.models.Resolve(req.Tier, req.Model)

	prompt := req.Prompt
	if req.Grounding != nil {
		prompt += fmt.Sprintf("\n\nThe user's location is latitude %.4f, longitude %.4f.",
			req.Grounding.Latitude, req.Grounding.Longitude)
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		user.Content = prompt
	} else {
		for _, img := range req.Images {
			user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: prompt,
		})
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, user)

	completion := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != nil {
		completion.Temperature = *req.Temperature
	}
	if req.Schema != nil && !req.SchemaInPrompt {
		name := req.SchemaName
		if name == "" {
			name = string(req.Capability)
		}
		completion.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: false,
			},
		}
	}

	c.logger.Debug("LLM request",
		zap.String("capability", string(req.Capability)),
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("images", len(req.Images)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, c.parseError(err, model)
	}

	out := &Response{Model: model}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		out.FinishReason = strings.ToUpper(string(choice.FinishReason))
		if choice.Message.Refusal != "" && out.Text == "" {
			out.FinishReason = "REFUSAL"
		}
	}

	c.logger.Info("LLM request completed",
		zap.String("capability", string(req.Capability)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

// StreamChat implements Provider.
func (c *OpenAIProvider) StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
	model := c.models.Resolve(TierChat, req.Model)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, msg := range req.History {
		if msg.Pending || msg.Error || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if msg.Sender == models.SenderBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", c.parseError(err, model)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), c.parseError(err, model)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}

	return full.String(), nil
}

// parseError classifies OpenAI API errors, using the structured status code when present.
func (c *OpenAIProvider) parseError(err error, model string) error {
	classified := ClassifyError(err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		classified.StatusCode = apiErr.HTTPStatusCode
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			classified.Type = ErrorTypeInvalidCredential
			classified.Message = MsgInvalidCredential
			classified.Retryable = false
		case apiErr.HTTPStatusCode == 429:
			classified.Type = ErrorTypeRateLimit
			classified.Message = MsgRateLimit
			classified.Retryable = true
		case apiErr.HTTPStatusCode >= 500:
			classified.Type = ErrorTypeUnavailable
			classified.Message = MsgUnavailable
			classified.Retryable = false
		}
	}

	classified.Model = model
	return classified
}

func dataURL(img InlineImage) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

var _ Provider = (*OpenAIProvider)(nil)
