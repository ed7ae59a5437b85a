package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestTrimString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no whitespace", "Wheat", "Wheat"},
		{"surrounding spaces", "  Rice  ", "Rice"},
		{"tabs and newlines", "\t\nMaize\n", "Maize"},
		{"only whitespace", "   ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimString(tt.input))
		})
	}
}

func TestGetOptionalArguments(t *testing.T) {
	req := callRequest(map[string]any{"crop": " Wheat ", "n": 120.0, "label": 7})

	assert.Equal(t, "Wheat", getOptionalString(req, "crop"))
	assert.Empty(t, getOptionalString(req, "label"))
	assert.Empty(t, getOptionalString(req, "missing"))

	n, ok := getOptionalFloat(req, "n")
	assert.True(t, ok)
	assert.Equal(t, 120.0, n)
	_, ok = getOptionalFloat(req, "crop")
	assert.False(t, ok)

	var bare mcp.CallToolRequest
	assert.Empty(t, getOptionalString(bare, "crop"))
}

func TestRequireLocation(t *testing.T) {
	loc, errResult := requireLocation(callRequest(map[string]any{"latitude": 12.29, "longitude": 76.63}))
	require.Nil(t, errResult)
	assert.Equal(t, 12.29, loc.Latitude)

	_, errResult = requireLocation(callRequest(map[string]any{"longitude": 76.63}))
	assert.Contains(t, getTextContent(errResult), "latitude")

	_, errResult = requireLocation(callRequest(map[string]any{"latitude": 95.0, "longitude": 76.63}))
	assert.Contains(t, getTextContent(errResult), "invalid location")
}

func TestRequireNonEmptyString(t *testing.T) {
	val, errResult := requireNonEmptyString(callRequest(map[string]any{"name": " Locust "}), "name")
	require.Nil(t, errResult)
	assert.Equal(t, "Locust", val)

	_, errResult = requireNonEmptyString(callRequest(map[string]any{"name": "  "}), "name")
	assert.Contains(t, getTextContent(errResult), "cannot be empty")

	_, errResult = requireNonEmptyString(callRequest(map[string]any{}), "name")
	assert.NotNil(t, errResult)
}
