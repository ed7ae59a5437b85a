package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

// maxBodyBytes bounds request bodies; leaf photos arrive base64 encoded.
const maxBodyBytes = 16 << 20

// ParseSessionID extracts and validates the chat session ID from the request path.
// Returns the ID and true on success, or "" and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseSessionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id, ok := parseUUID(w, r, "id", "invalid_session_id", "Invalid chat session ID format", logger)
	if !ok {
		return "", false
	}
	return id.String(), true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads a JSON request body into dst. On failure it writes a 400
// response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		message := "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "Request body is too large"
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// ImagePayload is an image carried in JSON as base64. Data may be a bare base64
// string or a data URL ("data:image/png;base64,...").
type ImagePayload struct {
	Data     string `json:"image"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Decode returns the raw image. An empty payload decodes to an empty image so the
// service can report its own precondition message.
func (p ImagePayload) Decode() (llm.InlineImage, error) {
	data, mimeType := strings.TrimSpace(p.Data), p.MIMEType
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return llm.InlineImage{}, errors.New("malformed data URL")
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(header, ";")
		}
		data = payload
	}
	if data == "" {
		return llm.InlineImage{MIMEType: mimeType}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return llm.InlineImage{}, err
	}
	return llm.InlineImage{Data: raw, MIMEType: mimeType}, nil
}

// NewImagePayload encodes img for a JSON response.
func NewImagePayload(img *llm.InlineImage) *ImagePayload {
	if img == nil {
		return nil
	}
	return &ImagePayload{Data: base64.StdEncoding.EncodeToString(img.Data), MIMEType: img.MIMEType}
}

// decodeImage decodes p, writing a 400 response on failure.
func decodeImage(w http.ResponseWriter, p ImagePayload, logger *zap.Logger) (llm.InlineImage, bool) {
	img, err := p.Decode()
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_image", "Image must be base64 encoded"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return llm.InlineImage{}, false
	}
	return img, true
}
