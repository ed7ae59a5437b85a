package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return trimString(val)
}

// getOptionalFloat extracts an optional float argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// requireLocation reads the latitude and longitude arguments. A non-nil
// result is an error to hand back to the caller.
func requireLocation(req mcp.CallToolRequest) (*models.Location, *mcp.CallToolResult) {
	lat, ok := getOptionalFloat(req, "latitude")
	if !ok {
		return nil, NewErrorResult("invalid_parameters", "parameter 'latitude' is required and must be a number")
	}
	lon, ok := getOptionalFloat(req, "longitude")
	if !ok {
		return nil, NewErrorResult("invalid_parameters", "parameter 'longitude' is required and must be a number")
	}
	loc := &models.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		return nil, NewErrorResult("invalid_parameters", fmt.Sprintf("invalid location: %v", err))
	}
	return loc, nil
}

// requireNonEmptyString reads a required string argument and rejects blanks.
func requireNonEmptyString(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	val, err := req.RequireString(key)
	if err != nil {
		return "", NewErrorResult("invalid_parameters", err.Error())
	}
	val = trimString(val)
	if val == "" {
		return "", NewErrorResult("invalid_parameters", fmt.Sprintf("parameter '%s' cannot be empty", key))
	}
	return val, nil
}
