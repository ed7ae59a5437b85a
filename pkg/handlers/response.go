package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

// ApiResponse is the envelope for successful JSON responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusForError maps a failure to its HTTP status code.
func StatusForError(err error) int {
	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, apperrors.ErrConflict) {
		return http.StatusConflict
	}
	switch llm.ClassifyError(err).Type {
	case llm.ErrorTypePrecondition:
		return http.StatusBadRequest
	case llm.ErrorTypeInvalidCredential, llm.ErrorTypeMalformedResponse, llm.ErrorTypeEmptyResponse:
		return http.StatusBadGateway
	case llm.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case llm.ErrorTypeBlocked:
		return http.StatusUnprocessableEntity
	case llm.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case llm.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case llm.ErrorTypeUnsupported:
		return http.StatusNotImplemented
	case llm.ErrorTypeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error. The body carries the error type as its
// code and the user-facing message.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusForError(err)
	code, message := "not_found", err.Error()
	if status != http.StatusNotFound {
		classified := llm.ClassifyError(err)
		code, message = string(classified.Type), classified.Message
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeOK writes data in the success envelope.
func writeOK(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
