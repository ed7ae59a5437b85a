package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

// Default Gemini models per tier.
const (
	DefaultGeminiFastModel  = "gemini-2.5-flash"
	DefaultGeminiImageModel = "gemini-2.5-flash-image"
	DefaultGeminiChatModel  = "gemini-2.5-flash"
)

// GeminiProvider talks to the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	models ModelSet
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey string, modelSet ModelSet, logger *zap.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, apperrors.ErrMissingAPIKey
	}
	if modelSet.Fast == "" {
		modelSet.Fast = DefaultGeminiFastModel
	}
	if modelSet.Image == "" {
		modelSet.Image = DefaultGeminiImageModel
	}
	if modelSet.Chat == "" {
		modelSet.Chat = DefaultGeminiChatModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		models: modelSet,
		logger: logger.Named("llm").With(zap.String("provider", "gemini")),
	}, nil
}

// Name implements Provider.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := g.models.Resolve(req.Tier, req.Model)
	contents, cfg := g.buildRequest(req)

	g.logger.Debug("Gemini request",
		zap.String("capability", string(req.Capability)),
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("images", len(req.Images)),
		zap.Bool("grounded", req.Grounding != nil))

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		g.logger.Error("Gemini request failed",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		classified := ClassifyError(err)
		classified.Model = model
		return nil, classified
	}

	out := convertGeminiResponse(resp)
	out.Model = model

	g.logger.Info("Gemini request completed",
		zap.String("capability", string(req.Capability)),
		zap.String("finish_reason", out.FinishReason),
		zap.Int("sources", len(out.Sources)),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

func (g *GeminiProvider) buildRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}

	if req.WantsImage() {
		cfg.ResponseModalities = []string{string(genai.ModalityImage), string(genai.ModalityText)}
		return contents, cfg
	}

	if req.Grounding != nil {
		// Tools cannot be combined with a response schema; the prompt carries it instead.
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(req.Grounding.Latitude),
					Longitude: genai.Ptr(req.Grounding.Longitude),
				},
			},
		}
		return contents, cfg
	}

	if req.Schema != nil && !req.SchemaInPrompt {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}
	return contents, cfg
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		out.BlockReason = string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)

	for _, r := range cand.SafetyRatings {
		if r != nil && r.Blocked {
			out.BlockedCategories = append(out.BlockedCategories, string(r.Category))
		}
	}

	if cand.Content != nil {
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Images = append(out.Images, InlineImage{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				})
			}
		}
		out.Text = text.String()
	}

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if c, ok := convertGroundingChunk(chunk); ok {
				out.Sources = append(out.Sources, c)
			}
		}
	}

	return out
}

func convertGroundingChunk(chunk *genai.GroundingChunk) (models.GroundingChunk, bool) {
	var c models.GroundingChunk
	if chunk == nil {
		return c, false
	}
	if chunk.Web != nil && chunk.Web.URI != "" {
		c.Web = &models.SourceLink{URI: chunk.Web.URI, Title: chunk.Web.Title}
	}
	if chunk.Maps != nil && chunk.Maps.URI != "" {
		c.Maps = &models.SourceLink{URI: chunk.Maps.URI, Title: chunk.Maps.Title}
	}
	return c, c.Valid()
}

// StreamChat implements Provider.
func (g *GeminiProvider) StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
	model := g.models.Resolve(TierChat, req.Model)

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		if msg.Pending || msg.Error || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if msg.Sender == models.SenderBot {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			g.logger.Error("Gemini stream failed",
				zap.String("model", model),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("error", logging.SanitizeError(err)))
			classified := ClassifyError(err)
			classified.Model = model
			return full.String(), classified
		}

		chunk := convertGeminiResponse(resp)
		if chunk.Text == "" {
			continue
		}
		full.WriteString(chunk.Text)
		if onChunk != nil {
			onChunk(chunk.Text)
		}
	}

	g.logger.Debug("Gemini stream completed",
		zap.String("model", model),
		zap.Int("reply_len", full.Len()),
		zap.Duration("elapsed", time.Since(start)))

	return full.String(), nil
}

var _ Provider = (*GeminiProvider)(nil)
