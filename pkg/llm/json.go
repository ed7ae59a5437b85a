package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON means the text contains nothing that looks like JSON.
	ErrNoJSON = errors.New("no JSON found in response")
	// ErrMalformedJSON means a JSON-looking candidate was found but did not parse.
	ErrMalformedJSON = errors.New("malformed JSON from model")
	// ErrEmptyJSON means the located JSON block carries no content.
	ErrEmptyJSON = errors.New("empty JSON block")
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of model replies.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencePattern matches a markdown code fence, optionally tagged json.
var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)```")

// ExtractJSON locates the JSON payload in a model reply. Candidates are tried in
// order: fenced block, first parseable balanced object or array, whole text. The first
// candidate that parses wins.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	var candidates []string
	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			return "", ErrEmptyJSON
		}
		candidates = append(candidates, inner)
	}

	// An array is preferred only when it encloses the first object. A stray "[1]"
	// citation ahead of the object must not hide it.
	obj, objStart, hasObj := firstValidJSON(cleaned, '{', '}')
	arr, arrStart, hasArr := firstValidJSON(cleaned, '[', ']')
	arrayFirst := hasArr && (!hasObj || (arrStart < objStart && arrStart+len(arr) > objStart))
	if hasObj && !arrayFirst {
		candidates = append(candidates, obj)
		if hasArr {
			candidates = append(candidates, arr)
		}
	} else if hasArr {
		candidates = append(candidates, arr)
		if hasObj {
			candidates = append(candidates, obj)
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if looksLikeJSON(trimmed) {
		candidates = append(candidates, trimmed)
	}

	for _, c := range candidates {
		if !json.Valid([]byte(c)) {
			continue
		}
		if isEmptyJSON(c) {
			return "", ErrEmptyJSON
		}
		return c, nil
	}

	// Brackets inside prose ("[unclear photo]") are not a broken payload. Only a
	// fence, a reply that opens like JSON, or a keyed fragment counts as malformed.
	if len(candidates) > 0 || hasKeyedFragment(cleaned) {
		return "", ErrMalformedJSON
	}
	return "", ErrNoJSON
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func isEmptyJSON(s string) bool {
	compact := strings.Join(strings.Fields(s), "")
	return compact == "{}" || compact == "[]" || compact == "null"
}

func hasKeyedFragment(s string) bool {
	start := strings.IndexByte(s, '{')
	return start >= 0 && strings.Contains(s[start:], `":`)
}

// firstValidJSON tries every openChar position in order and returns the first
// balanced span that parses, together with its offset.
func firstValidJSON(s string, openChar, closeChar byte) (string, int, bool) {
	for offset := 0; offset < len(s); {
		i := strings.IndexByte(s[offset:], openChar)
		if i == -1 {
			break
		}
		start := offset + i
		if c, ok := extractBalancedJSON(s, start, openChar, closeChar); ok && json.Valid([]byte(c)) {
			return c, start, true
		}
		offset = start + 1
	}
	return "", -1, false
}

// extractBalancedJSON returns the balanced structure opening at s[start].
// It handles nested structures by counting bracket depth.
func extractBalancedJSON(s string, start int, openChar, closeChar byte) (string, bool) {

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a reply and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, errors.Join(ErrMalformedJSON, err)
	}
	return result, nil
}
