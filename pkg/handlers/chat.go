package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// SendMessageRequest for POST /api/chat/sessions/{id}/messages
type SendMessageRequest struct {
	Message string `json:"message"`
}

// ChatSessionResponse describes a session and its conversation.
type ChatSessionResponse struct {
	ID        string                `json:"id"`
	State     services.SessionState `json:"state"`
	Language  models.Language       `json:"language"`
	View      models.View           `json:"activeView"`
	History   []models.ChatMessage  `json:"history"`
	Restarted bool                  `json:"restarted,omitempty"`
}

func toChatSessionResponse(s *services.ChatSession) ChatSessionResponse {
	return ChatSessionResponse{
		ID:       s.ID(),
		State:    s.State(),
		Language: s.Language(),
		View:     s.Context().ActiveView,
		History:  s.History(),
	}
}

// sseEventName is the SSE event field for each chat event type.
var sseEventName = map[models.ChatEventType]string{
	models.ChatEventText:   "chunk",
	models.ChatEventStatus: "status",
	models.ChatEventDone:   "done",
	models.ChatEventError:  "error",
	models.ChatEventReset:  "reset",
}

// ============================================================================
// Handler
// ============================================================================

// ChatHandler handles chat session HTTP requests with SSE support.
type ChatHandler struct {
	sessions *services.SessionManager
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(sessions *services.SessionManager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/chat/sessions"
	mux.HandleFunc("POST "+base, h.CreateSession)
	mux.HandleFunc("GET "+base+"/{id}", h.GetSession)
	mux.HandleFunc("PUT "+base+"/{id}/context", h.UpdateContext)
	mux.HandleFunc("POST "+base+"/{id}/messages", h.SendMessage)
	mux.HandleFunc("DELETE "+base+"/{id}", h.DeleteSession)
}

func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) (*services.ChatSession, bool) {
	id, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		WriteError(w, h.logger, err)
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /api/chat/sessions
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var sc models.SessionContext
	if !decodeBody(w, r, &sc, h.logger) {
		return
	}
	s := h.sessions.Create(sc)
	writeOK(w, h.logger, http.StatusCreated, toChatSessionResponse(s))
}

// GetSession handles GET /api/chat/sessions/{id}
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeOK(w, h.logger, http.StatusOK, toChatSessionResponse(s))
}

// UpdateContext handles PUT /api/chat/sessions/{id}/context
func (h *ChatHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var sc models.SessionContext
	if !decodeBody(w, r, &sc, h.logger) {
		return
	}
	restarted := s.UpdateContext(sc)
	resp := toChatSessionResponse(s)
	resp.Restarted = restarted
	writeOK(w, h.logger, http.StatusOK, resp)
}

// DeleteSession handles DELETE /api/chat/sessions/{id}
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /api/chat/sessions/{id}/messages
// This endpoint uses Server-Sent Events (SSE) to stream the response.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, h.logger, llm.NewPreconditionError(services.MsgEmptyMessage, nil))
		return
	}
	if s.InFlight() {
		if err := ErrorResponse(w, http.StatusConflict, "session_busy", services.ErrSessionBusy.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventChan := make(chan models.ChatEvent, 100)

	// Start streaming in background
	go func() {
		defer close(eventChan)
		terminal := false
		_, err := s.Send(r.Context(), req.Message, func(ev models.ChatEvent) {
			if ev.Type == models.ChatEventDone || ev.Type == models.ChatEventError {
				terminal = true
			}
			eventChan <- ev
		})
		if err != nil {
			h.logger.Debug("Chat turn ended with error",
				zap.String("session_id", s.ID()),
				zap.String("error_type", string(llm.GetErrorType(err))))
			if !terminal {
				eventChan <- models.NewErrorEvent(chatFailureMessage(err))
			}
		}
	}()

	// Stream events to client
	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEventName[event.Type], data)
		flusher.Flush()
	}
}

// chatFailureMessage is the error event text for a turn that failed before
// producing its own error event.
func chatFailureMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrSessionBusy),
		errors.Is(err, services.ErrSessionNotReady),
		errors.Is(err, services.ErrStaleTurn):
		return err.Error()
	default:
		return llm.UserMessage(err)
	}
}
