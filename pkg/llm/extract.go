package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

// Finish reasons that mean the provider withheld content.
var blockingFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
	"IMAGE_SAFETY":       true,
	"CONTENT_FILTER":     true,
	"REFUSAL":            true,
}

// normalFinishReasons are the reasons an empty reply carries no explanation for.
var normalFinishReasons = map[string]bool{
	"":                          true,
	"STOP":                      true,
	"END_TURN":                  true,
	"FINISH_REASON_UNSPECIFIED": true,
}

// ExtractStructured returns the JSON payload of a structured reply, or a classified
// error explaining why there is none.
func ExtractStructured(resp *Response) (json.RawMessage, error) {
	if resp == nil {
		return nil, NewError(ErrorTypeEmptyResponse, MsgEmptyResponse, false, nil)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, emptyReplyError(resp)
	}

	payload, err := ExtractJSON(text)
	switch {
	case err == nil:
		return json.RawMessage(payload), nil
	case errors.Is(err, ErrNoJSON):
		// The model answered in prose. Surface its words instead of a parse error.
		e := NewError(ErrorTypeMalformedResponse, text, false, err)
		e.Conversational = true
		e.Model = resp.Model
		return nil, e
	default:
		e := NewError(ErrorTypeMalformedResponse, MsgMalformed, false, err)
		e.Detail = err.Error()
		e.Model = resp.Model
		return nil, e
	}
}

func emptyReplyError(resp *Response) *Error {
	reason := strings.ToUpper(resp.FinishReason)
	blocked := resp.BlockReason != "" || len(resp.BlockedCategories) > 0 || blockingFinishReasons[reason]

	if blocked {
		r := resp.BlockReason
		if r == "" {
			r = reason
		}
		if r == "" {
			r = "UNKNOWN"
		}
		msg := fmt.Sprintf("The response was blocked by the AI service (reason: %s", r)
		if len(resp.BlockedCategories) > 0 {
			msg += "; categories: " + strings.Join(resp.BlockedCategories, ", ")
		}
		msg += ")."
		e := NewError(ErrorTypeBlocked, msg, false, nil)
		e.Model = resp.Model
		return e
	}

	e := NewError(ErrorTypeEmptyResponse, MsgEmptyResponse, false, nil)
	e.Model = resp.Model
	if !normalFinishReasons[reason] {
		e.Detail = "finish reason: " + reason
		e.Message = fmt.Sprintf("The AI returned an empty response (finish reason: %s).", reason)
	}
	return e
}

// Decode extracts the JSON payload of resp, unmarshals it into T and validates it
// when T implements models.Validator.
func Decode[T any](resp *Response) (T, error) {
	var out T

	raw, err := ExtractStructured(resp)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		e := NewError(ErrorTypeMalformedResponse, MsgMalformed, false, errors.Join(ErrMalformedJSON, err))
		e.Detail = err.Error()
		e.Model = resp.Model
		return out, e
	}

	if v, ok := any(&out).(models.Validator); ok {
		if err := v.Validate(); err != nil {
			e := NewError(ErrorTypeMalformedResponse, MsgMalformed, false, err)
			e.Detail = err.Error()
			e.Model = resp.Model
			return out, e
		}
	}

	return out, nil
}

// ExtractImage returns the first image in resp.
func ExtractImage(resp *Response) (*InlineImage, error) {
	if resp != nil {
		for i := range resp.Images {
			if len(resp.Images[i].Data) > 0 {
				img := resp.Images[i]
				return &img, nil
			}
		}
	}

	e := NewError(ErrorTypeEmptyResponse, MsgEmptyResponse, false, nil)
	e.Detail = "no image returned"
	if resp != nil {
		e.Model = resp.Model
		if blocked := emptyReplyError(resp); blocked.Type == ErrorTypeBlocked {
			return nil, blocked
		}
	}
	return nil, e
}

// ExtractText returns the trimmed plain-text reply, or a classified error when there is none.
func ExtractText(resp *Response) (string, error) {
	if resp == nil {
		return "", NewError(ErrorTypeEmptyResponse, MsgEmptyResponse, false, nil)
	}
	text := strings.TrimSpace(thinkTagPattern.ReplaceAllString(resp.Text, ""))
	if text == "" {
		return "", emptyReplyError(resp)
	}
	return text, nil
}
