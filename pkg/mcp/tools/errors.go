package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

// ErrorResponse represents a structured error in tool results.
// Errors are returned as successful tool results so the calling assistant
// sees the farmer-facing message instead of a bare protocol failure.
type ErrorResponse struct {
	Error     bool   `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
//
// Example:
//
//	if crop == "" {
//	    return NewErrorResult("invalid_parameters", "parameter 'crop' cannot be empty"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return newErrorResult(ErrorResponse{Error: true, Code: code, Message: message})
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	return newErrorResult(ErrorResponse{Error: true, Code: code, Message: message, Details: details})
}

func newErrorResult(resp ErrorResponse) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewServiceErrorResult converts an advisory service failure into a tool
// result carrying the classified error type and user-facing message.
func NewServiceErrorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperrors.ErrNotFound) {
		return NewErrorResult("not_found", err.Error())
	}
	classified := llm.ClassifyError(err)
	return newErrorResult(ErrorResponse{
		Error:     true,
		Code:      string(classified.Type),
		Message:   classified.Message,
		Retryable: classified.Retryable,
	})
}

// IsInputError reports whether err was caused by the caller's arguments
// rather than by the AI service. Input errors are logged at DEBUG.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrNotFound) {
		return true
	}
	var llmErr *llm.Error
	return errors.As(err, &llmErr) && llmErr.Type == llm.ErrorTypePrecondition
}
