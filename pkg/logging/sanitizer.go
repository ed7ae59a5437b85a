package logging

import (
	"regexp"
)

const (
	// MaxPromptLogLength is the maximum length of a prompt or model reply to log
	MaxPromptLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Query-string style credentials: key=xxx, api_key=xxx, apikey=xxx
	apiKeyParamPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Bare provider keys that show up in SDK error strings
	googleKeyPattern    = regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)
	openAIKeyPattern    = regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`)

	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]+`)
)

// SanitizeError returns the error text with API credentials removed.
// Use this before logging or displaying any error from a provider SDK.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText removes API credentials from arbitrary text.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	sanitized := apiKeyParamPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = googleKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = anthropicKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = openAIKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	return sanitized
}

// SanitizePrompt truncates and sanitizes prompt or response text for debug logs.
func SanitizePrompt(text string) string {
	return TruncateString(SanitizeText(text), MaxPromptLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
