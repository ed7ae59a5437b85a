package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
)

// ErrorType is the stable category a failure is reduced to before it reaches a caller.
type ErrorType string

const (
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeInvalidCredential ErrorType = "invalid_credential"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeMalformedResponse ErrorType = "malformed_response"
	ErrorTypeBlocked           ErrorType = "blocked"
	ErrorTypeEmptyResponse     ErrorType = "empty_response"
	ErrorTypePrecondition      ErrorType = "precondition"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeUnavailable       ErrorType = "unavailable"
	ErrorTypeUnsupported       ErrorType = "unsupported"
	ErrorTypeCanceled          ErrorType = "canceled"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// User-facing messages. These are the only texts callers render.
const (
	MsgConfig            = "The AI service is not configured. Please set an API key."
	MsgInvalidCredential = "Your API Key appears to be invalid. Please check the provided key."
	MsgRateLimit         = "Too many requests. Please wait a moment and try again."
	MsgMalformed         = "The AI response could not be understood. Please try again."
	MsgEmptyResponse     = "The AI returned an empty or invalid response."
	MsgTimeout           = "The AI service took too long to respond. Please try again."
	MsgUnavailable       = "The AI service is temporarily unavailable. Please try again shortly."
	MsgUnsupported       = "This feature is not supported by the configured AI provider."
	MsgCanceled          = "The request was canceled."
	MsgUnknown           = "Sorry, I encountered an error. Please try again."
)

// Error is a classified failure. Message is safe to show to end users;
// Detail and Cause are for logs.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
	Detail     string

	// Conversational is set when the model answered in prose where JSON was expected.
	// Message then carries the model's own words.
	Conversational bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)
	if e.Detail != "" {
		parts = append(parts, "("+e.Detail+")")
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", strings.Join(parts, " "), logging.SanitizeError(e.Cause))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a classified error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// NewPreconditionError reports invalid input caught before any provider call.
func NewPreconditionError(message string, cause error) *Error {
	if cause == nil {
		cause = apperrors.ErrInvalidInput
	}
	return NewError(ErrorTypePrecondition, message, false, cause)
}

// ClassifyError reduces any failure to a classified *Error. It is pure: the same
// input always yields the same category and message, and it never panics.
// Already-classified errors are returned unchanged.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, apperrors.ErrMissingAPIKey) {
		return NewError(ErrorTypeConfig, MsgConfig, false, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeCanceled, MsgCanceled, false, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, MsgTimeout, false, err)
	}
	// Panic values are internal and never shown to users.
	if errors.Is(err, ErrWorkPanicked) {
		return NewError(ErrorTypeUnknown, MsgUnknown, false, err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)
	statusCode := extractStatusCode(errStr)

	classified := func(t ErrorType, msg string) *Error {
		e := NewError(t, msg, t == ErrorTypeRateLimit, err)
		e.StatusCode = statusCode
		return e
	}

	switch {
	case containsAny(lower, credentialPhrases):
		return classified(ErrorTypeInvalidCredential, MsgInvalidCredential)
	case isRateLimitText(lower):
		return classified(ErrorTypeRateLimit, MsgRateLimit)
	case containsAny(lower, []string{"deadline exceeded", "timeout", "timed out"}):
		return classified(ErrorTypeTimeout, MsgTimeout)
	case containsAny(lower, []string{"context canceled"}):
		return classified(ErrorTypeCanceled, MsgCanceled)
	case statusCode >= 500 || containsAny(lower, []string{"unavailable", "overloaded", "connection refused", "no such host"}):
		return classified(ErrorTypeUnavailable, MsgUnavailable)
	}

	msg := strings.TrimSpace(logging.SanitizeText(errStr))
	if msg == "" {
		msg = MsgUnknown
	}
	return classified(ErrorTypeUnknown, msg)
}

var credentialPhrases = []string{
	"entity was not found",
	"api key not valid",
	"api_key_invalid",
	"invalid api key",
	"incorrect api key",
	"invalid x-api-key",
	"authentication_error",
	"unauthenticated",
	"unauthorized",
}

var rateLimitPhrases = []string{
	"quota",
	"resource_exhausted",
	"resource has been exhausted",
	"rate limit",
	"rate_limit",
	"too many requests",
}

func isRateLimitText(lower string) bool {
	return containsAny(lower, rateLimitPhrases) || extractStatusCode(lower) == 429
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// statusCodePattern only accepts a code that leads the message or follows an
// error/status/code/http marker, so numbers inside prose ("max of 1500
// characters") are never read as HTTP statuses.
var statusCodePattern = regexp.MustCompile(`(?i)(?:^|\b(?:error|status|code|http))[\s:,]*([45]\d{2})\b`)

func extractStatusCode(errStr string) int {
	m := statusCodePattern.FindStringSubmatch(errStr)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

// IsRateLimit reports whether err is a rate-limit or quota failure. This is the only
// condition the request retry loop acts on.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return isRateLimitText(strings.ToLower(err.Error()))
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// UserMessage returns the displayable message for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ClassifyError(err).Message
}
