package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
)

// AdvisoryToolDeps contains dependencies for the advisory tools.
type AdvisoryToolDeps struct {
	Service services.AdvisoryService
	Logger  *zap.Logger
}

// RegisterAdvisoryTools registers the text-only advisory capabilities.
// Image-based capabilities stay on the HTTP API.
func RegisterAdvisoryTools(s *server.MCPServer, deps *AdvisoryToolDeps) {
	registerMarketDataTool(s, deps)
	registerPestInformationTool(s, deps)
	registerPestPredictionsTool(s, deps)
	registerWeatherAdvisoryTool(s, deps)
	registerNearbyStoresTool(s, deps)
}

var locationParams = []mcp.ToolOption{
	mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Farm latitude in decimal degrees")),
	mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Farm longitude in decimal degrees")),
}

func readOnlyTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)
	opts = append(opts,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
	return mcp.NewTool(name, opts...)
}

// toolResult marshals data, or converts err into a structured error result.
func toolResult(deps *AdvisoryToolDeps, tool string, data any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if IsInputError(err) {
			deps.Logger.Debug("Advisory tool rejected input", zap.String("tool", tool), zap.Error(err))
		} else {
			deps.Logger.Error("Advisory tool failed", zap.String("tool", tool), zap.Error(err))
		}
		return NewServiceErrorResult(err), nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", tool, err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func registerMarketDataTool(s *server.MCPServer, deps *AdvisoryToolDeps) {
	tool := readOnlyTool(
		"get_market_data",
		"Returns the current market price, price trend, 6-month price history and insights for a crop in India.",
		mcp.WithString("crop", mcp.Required(), mcp.Description("Crop name, e.g. Wheat, Rice, Maize")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		crop, errResult := requireNonEmptyString(req, "crop")
		if errResult != nil {
			return errResult, nil
		}
		data, err := deps.Service.GetFinancialMarketData(ctx, crop)
		return toolResult(deps, "get_market_data", data, err)
	})
}

func registerPestInformationTool(s *server.MCPServer, deps *AdvisoryToolDeps) {
	tool := readOnlyTool(
		"get_pest_information",
		"Describes a crop pest: identification, affected crops, lifecycle and integrated control measures.",
		mcp.WithString("name", mcp.Required(), mcp.Description("Common name of the pest, e.g. Fall Armyworm")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requireNonEmptyString(req, "name")
		if errResult != nil {
			return errResult, nil
		}
		info, err := deps.Service.GetPestInformation(ctx, name)
		return toolResult(deps, "get_pest_information", info, err)
	})
}

func registerPestPredictionsTool(s *server.MCPServer, deps *AdvisoryToolDeps) {
	opts := append([]mcp.ToolOption{}, locationParams...)
	opts = append(opts, mcp.WithString("crop", mcp.Required(), mcp.Description("Crop grown at the location")))
	tool := readOnlyTool(
		"predict_pests",
		"Predicts pest outbreaks near a farm for the coming weeks, with risk levels and web sources.",
		opts...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, errResult := requireLocation(req)
		if errResult != nil {
			return errResult, nil
		}
		crop, errResult := requireNonEmptyString(req, "crop")
		if errResult != nil {
			return errResult, nil
		}
		predictions, err := deps.Service.GetPestPredictions(ctx, loc, crop)
		return toolResult(deps, "predict_pests", predictions, err)
	})
}

func registerWeatherAdvisoryTool(s *server.MCPServer, deps *AdvisoryToolDeps) {
	opts := append([]mcp.ToolOption{}, locationParams...)
	opts = append(opts, mcp.WithString("crop", mcp.Description("Optional crop for crop-specific advice")))
	tool := readOnlyTool(
		"get_weather_advisory",
		"Returns a 3-day farm weather forecast with alerts and advice, grounded in web sources.",
		opts...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, errResult := requireLocation(req)
		if errResult != nil {
			return errResult, nil
		}
		advisory, err := deps.Service.GetWeatherAdvisory(ctx, loc, getOptionalString(req, "crop"))
		return toolResult(deps, "get_weather_advisory", advisory, err)
	})
}

var nutrientParams = []struct {
	key  string
	desc string
}{
	{"n", "Nitrogen needed in kg/ha"},
	{"p", "Phosphorus needed in kg/ha"},
	{"k", "Potassium needed in kg/ha"},
	{"s", "Sulphur needed in kg/ha"},
	{"zn", "Zinc needed in kg/ha"},
	{"fe", "Iron needed in kg/ha"},
}

func registerNearbyStoresTool(s *server.MCPServer, deps *AdvisoryToolDeps) {
	opts := append([]mcp.ToolOption{}, locationParams...)
	for _, p := range nutrientParams {
		opts = append(opts, mcp.WithNumber(p.key, mcp.Description(p.desc)))
	}
	tool := readOnlyTool(
		"find_nearby_stores",
		"Lists agro-input stores near a farm that stock the fertilizers for the given nutrient needs, nearest first.",
		opts...,
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, errResult := requireLocation(req)
		if errResult != nil {
			return errResult, nil
		}

		var amounts models.NutrientAmounts
		targets := map[string]*float64{
			"n": &amounts.N, "p": &amounts.P, "k": &amounts.K,
			"s": &amounts.S, "zn": &amounts.Zn, "fe": &amounts.Fe,
		}
		for key, dst := range targets {
			if v, ok := getOptionalFloat(req, key); ok {
				if v < 0 {
					return NewErrorResult("invalid_parameters", fmt.Sprintf("parameter '%s' cannot be negative", key)), nil
				}
				*dst = v
			}
		}

		stores, err := deps.Service.FindNearbyStores(ctx, loc, &models.FertilizerRecommendation{NutrientAmounts: amounts})
		return toolResult(deps, "find_nearby_stores", stores, err)
	})
}
