package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func parseErrorResult(t *testing.T, result *mcp.CallToolResult) ErrorResponse {
	t.Helper()
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	return errResp
}

func TestNewErrorResult(t *testing.T) {
	errResp := parseErrorResult(t, NewErrorResult("invalid_parameters", "parameter 'crop' cannot be empty"))

	assert.True(t, errResp.Error)
	assert.Equal(t, "invalid_parameters", errResp.Code)
	assert.Equal(t, "parameter 'crop' cannot be empty", errResp.Message)
	assert.False(t, errResp.Retryable)
	assert.Nil(t, errResp.Details)
}

func TestNewErrorResultWithDetails(t *testing.T) {
	details := map[string]any{"supported_crops": []string{"Wheat", "Rice"}, "count": 2}
	errResp := parseErrorResult(t, NewErrorResultWithDetails("invalid_parameters", "unknown crop", details))

	detailsMap, ok := errResp.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, detailsMap, "supported_crops")
	assert.Equal(t, float64(2), detailsMap["count"])
}

func TestErrorResponse_JSONStructure(t *testing.T) {
	text := getTextContent(NewErrorResult("not_found", "pest not found"))
	assert.JSONEq(t, `{"error":true,"code":"not_found","message":"pest not found"}`, text)
}

func TestNewServiceErrorResult(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantMessage   string
		wantRetryable bool
	}{
		{
			name:        "precondition keeps its message",
			err:         llm.NewPreconditionError("Location is unavailable.", nil),
			wantCode:    "precondition",
			wantMessage: "Location is unavailable.",
		},
		{
			name:          "raw provider rate limit is classified",
			err:           errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"),
			wantCode:      "rate_limit",
			wantMessage:   llm.MsgRateLimit,
			wantRetryable: true,
		},
		{
			name:        "invalid credential",
			err:         errors.New("Error 400: API key not valid. Please pass a valid API key."),
			wantCode:    "invalid_credential",
			wantMessage: llm.MsgInvalidCredential,
		},
		{
			name:     "not found",
			err:      fmt.Errorf("pest: %w", apperrors.ErrNotFound),
			wantCode: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := parseErrorResult(t, NewServiceErrorResult(tt.err))
			assert.Equal(t, tt.wantCode, errResp.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, errResp.Message)
			}
			assert.Equal(t, tt.wantRetryable, errResp.Retryable)
		})
	}
}

func TestIsInputError(t *testing.T) {
	assert.False(t, IsInputError(nil))
	assert.True(t, IsInputError(llm.NewPreconditionError("Please select an image file first.", nil)))
	assert.True(t, IsInputError(fmt.Errorf("lookup: %w", apperrors.ErrNotFound)))
	assert.False(t, IsInputError(llm.NewError(llm.ErrorTypeRateLimit, llm.MsgRateLimit, true, nil)))
	assert.False(t, IsInputError(errors.New("connection reset")))
}
