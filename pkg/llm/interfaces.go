// Package llm provides the provider-neutral AI request layer: request and response
// types, provider implementations, error classification and response extraction.
package llm

import (
	"context"

	"github.com/invopop/jsonschema"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

// Provider is a hosted model backend. Implementations are stateless and safe for
// concurrent use; conversation history is owned by the caller.
type Provider interface {
	// Generate performs a single request and returns the raw response with its metadata.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// StreamChat sends one conversational turn. onChunk receives text fragments in
	// arrival order; the full reply is returned when the stream ends.
	StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error)

	// Name identifies the backend for logs and metrics.
	Name() string
}

// Capability labels a request for logging and metrics.
type Capability string

const (
	CapabilityLeafAnalysis     Capability = "leaf_analysis"
	CapabilityHeatmap          Capability = "heatmap"
	CapabilityFertilizer       Capability = "fertilizer_recommendation"
	CapabilityWeatherAdvisory  Capability = "weather_advisory"
	CapabilityYieldPrediction  Capability = "yield_prediction"
	CapabilityFinancialData    Capability = "financial_data"
	CapabilityPestPredictions  Capability = "pest_predictions"
	CapabilityPestInfo         Capability = "pest_info"
	CapabilityCommunityCaption Capability = "community_caption"
	CapabilityChat             Capability = "chat"
	CapabilityProbe            Capability = "probe"
)

// Tier selects which configured model serves a request.
type Tier string

const (
	TierFast  Tier = "fast"
	TierImage Tier = "image"
	TierChat  Tier = "chat"
)

// Modality is the requested output kind.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// InlineImage is raw image data travelling with a request or response.
type InlineImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// Request is a single structured generation request.
type Request struct {
	Capability Capability
	Tier       Tier
	// Model overrides the tier's configured model when set.
	Model  string
	Prompt string
	System string
	Images []InlineImage

	// Schema is the declared output shape. Providers that support server-side
	// structured output use it unless SchemaInPrompt is set.
	Schema         *jsonschema.Schema
	SchemaName     string
	SchemaInPrompt bool

	// Grounding attaches map-based search grounding around a location.
	Grounding *models.Location

	Modality    Modality
	Temperature *float32
}

// WantsImage reports whether the request asks for image output.
func (r *Request) WantsImage() bool {
	return r.Modality == ModalityImage
}

// Response is a provider reply with the metadata needed to explain an empty answer.
type Response struct {
	Text              string
	Images            []InlineImage
	FinishReason      string
	BlockReason       string
	BlockedCategories []string
	Sources           []models.GroundingChunk
	Model             string
}

// ChatRequest is one conversational turn with the prior history.
type ChatRequest struct {
	Tier    Tier
	Model   string
	System  string
	History []models.ChatMessage
	Message string
}

// ModelSet maps tiers to concrete model names for a provider.
type ModelSet struct {
	Fast  string
	Image string
	Chat  string
}

// Resolve returns the model for a tier, preferring an explicit override.
func (m ModelSet) Resolve(tier Tier, override string) string {
	if override != "" {
		return override
	}
	switch tier {
	case TierImage:
		if m.Image != "" {
			return m.Image
		}
	case TierChat:
		if m.Chat != "" {
			return m.Chat
		}
	}
	return m.Fast
}

// Float32 returns a pointer to v, for optional request settings.
func Float32(v float32) *float32 {
	return &v
}
