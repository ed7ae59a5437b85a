package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
	"github.com/agrovision-ai/agrovision-engine/pkg/stores"
)

func newAdvisoryServer(t *testing.T, generate func(ctx context.Context, req *llm.Request) (*llm.Response, error)) (*server.MCPServer, *llm.MockProvider) {
	t.Helper()
	mock := &llm.MockProvider{GenerateFunc: generate}
	cfg := retry.LLMConfig()
	cfg.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	dir, err := stores.Load("", stores.DefaultRadiusKm, zap.NewNop())
	require.NoError(t, err)

	svc := services.NewAdvisoryService(mock, dir, services.AdvisoryConfig{Retry: cfg}, nil, zap.NewNop())
	s := newTestMCPServer()
	RegisterAdvisoryTools(s, &AdvisoryToolDeps{Service: svc, Logger: zap.NewNop()})
	return s, mock
}

func toolError(t *testing.T, resp toolCallResponse) ErrorResponse {
	t.Helper()
	require.Nil(t, resp.Error)
	require.True(t, resp.Result.IsError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &errResp))
	return errResp
}

func TestRegisterAdvisoryTools(t *testing.T) {
	s, _ := newAdvisoryServer(t, nil)

	assert.ElementsMatch(t, []string{
		"get_market_data",
		"get_pest_information",
		"predict_pests",
		"get_weather_advisory",
		"find_nearby_stores",
	}, listTools(t, s))
}

func TestMarketDataTool(t *testing.T) {
	s, mock := newAdvisoryServer(t, func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: `{"cropName":"Rice","currentPrice":{"price":2300,"unit":"INR/quintal","source":"Agmarknet"},
			"priceTrend":"Stable","marketInsights":"- Steady arrivals","historicalData":[],
			"revenueContribution":[{"crop":"Rice","percentage":100}]}`}, nil
	})

	resp := callTool(t, s, "get_market_data", map[string]any{"crop": " rice "})
	var data models.FinancialData
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &data))
	assert.Equal(t, "Rice", data.CropName)
	assert.Equal(t, models.PriceStable, data.PriceTrend)
	assert.Equal(t, 1, mock.GenerateCalls())

	errResp := toolError(t, callTool(t, s, "get_market_data", map[string]any{"crop": "  "}))
	assert.Equal(t, "invalid_parameters", errResp.Code)
	assert.Equal(t, 1, mock.GenerateCalls())
}

func TestPestInformationTool_ProviderFailure(t *testing.T) {
	s, mock := newAdvisoryServer(t, func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return nil, errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	})

	errResp := toolError(t, callTool(t, s, "get_pest_information", map[string]any{"name": "Locust"}))
	assert.Equal(t, string(llm.ErrorTypeRateLimit), errResp.Code)
	assert.Equal(t, llm.MsgRateLimit, errResp.Message)
	assert.True(t, errResp.Retryable)
	assert.Equal(t, 3, mock.GenerateCalls())
}

func TestPredictPestsTool(t *testing.T) {
	s, mock := newAdvisoryServer(t, func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Text: `[{"name":"Stem borer","risk":"High"}]`,
		}, nil
	})

	resp := callTool(t, s, "predict_pests", map[string]any{"latitude": 12.2958, "longitude": 76.6394, "crop": "Rice"})
	var got models.Grounded[[]models.PestOnMap]
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &got))
	require.Len(t, got.Data, 1)
	assert.Equal(t, "Stem borer", got.Data[0].Name)
	assert.Equal(t, models.RiskHigh, got.Data[0].Risk)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Grounding)
	assert.Equal(t, 12.2958, reqs[0].Grounding.Latitude)

	errResp := toolError(t, callTool(t, s, "predict_pests", map[string]any{"latitude": 12.29, "crop": "Rice"}))
	assert.Equal(t, "invalid_parameters", errResp.Code)
	assert.Contains(t, errResp.Message, "longitude")
}

func TestWeatherAdvisoryTool_UnknownCrop(t *testing.T) {
	s, mock := newAdvisoryServer(t, nil)

	errResp := toolError(t, callTool(t, s, "get_weather_advisory", map[string]any{
		"latitude": 12.2958, "longitude": 76.6394, "crop": "Quinoa",
	}))
	assert.Equal(t, string(llm.ErrorTypePrecondition), errResp.Code)
	assert.Equal(t, services.MsgCropRequired, errResp.Message)
	assert.Zero(t, mock.GenerateCalls())
}

func TestNearbyStoresTool(t *testing.T) {
	s, mock := newAdvisoryServer(t, nil)

	resp := callTool(t, s, "find_nearby_stores", map[string]any{"latitude": 12.2958, "longitude": 76.6394, "n": 120.0, "k": 40.0})
	var got []models.NearbyStore
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &got))
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
	assert.Zero(t, mock.GenerateCalls())

	errResp := toolError(t, callTool(t, s, "find_nearby_stores", map[string]any{"latitude": 12.2958, "longitude": 76.6394, "n": -1.0}))
	assert.Contains(t, errResp.Message, "'n' cannot be negative")
}
