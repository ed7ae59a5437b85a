package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
	"github.com/agrovision-ai/agrovision-engine/pkg/metrics"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/prompts"
	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
)

// SessionState is the lifecycle state of a chat session.
type SessionState string

const (
	StateUninitialized    SessionState = "uninitialized"
	StateReady            SessionState = "ready"
	StateAwaitingResponse SessionState = "awaiting_response"
	StateRetrying         SessionState = "retrying"
	StateTerminalError    SessionState = "terminal_error"
)

var (
	// ErrSessionBusy is returned when a turn is sent while another is in flight.
	ErrSessionBusy = errors.New("a reply is still in progress")

	// ErrSessionNotReady is returned when a turn is sent before the context is set.
	ErrSessionNotReady = errors.New("chat session has no context yet")

	// ErrStaleTurn is returned for a turn whose session context changed while it was in flight.
	// The turn's reply is discarded.
	ErrStaleTurn = errors.New("chat context changed while the reply was in flight")
)

// MsgEmptyMessage is the precondition message for a blank chat turn.
const MsgEmptyMessage = "Please enter a message."

// ChatConfig tunes chat sessions. Zero values select the defaults.
type ChatConfig struct {
	// Retry is the rate-limit policy; nil uses retry.LLMConfig().
	Retry       *retry.Config
	TurnTimeout time.Duration
}

// ChatSession is one conversation with the assistant. The session context decides
// the system instruction; changing it starts a fresh conversation. At most one turn
// is in flight at a time. Safe for concurrent use.
type ChatSession struct {
	id       string
	provider llm.Provider
	retryCfg retry.Config
	timeout  time.Duration
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       SessionState
	generation  uint64
	fingerprint string
	scx         models.SessionContext
	system      string
	language    models.Language
	history     []models.ChatMessage
	cancelTurn  context.CancelFunc
	lastActive  time.Time
}

// NewChatSession creates an uninitialized session. Call UpdateContext before Send.
func NewChatSession(id string, provider llm.Provider, cfg ChatConfig, recorder *metrics.Recorder, logger *zap.Logger) *ChatSession {
	retryCfg := retry.LLMConfig()
	if cfg.Retry != nil {
		retryCfg = cfg.Retry
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultRequestTimeout
	}
	s := &ChatSession{
		id:       id,
		provider: provider,
		retryCfg: *retryCfg,
		timeout:  cfg.TurnTimeout,
		metrics:  recorder,
		logger:   logger.Named("chat").With(zap.String("session_id", id)),
		now:      time.Now,
		state:    StateUninitialized,
	}
	s.lastActive = s.now()
	return s
}

// ID returns the session identifier.
func (s *ChatSession) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *ChatSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation, welcome message first.
func (s *ChatSession) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// SystemInstruction returns the instruction derived from the current context.
func (s *ChatSession) SystemInstruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system
}

// Context returns the current session context.
func (s *ChatSession) Context() models.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scx
}

// Language returns the normalized conversation language.
func (s *ChatSession) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// LastActive is when the session was last created, updated or used.
func (s *ChatSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// InFlight reports whether a turn is awaiting its reply.
func (s *ChatSession) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy()
}

func (s *ChatSession) busy() bool {
	return s.state == StateAwaitingResponse || s.state == StateRetrying
}

// UpdateContext applies a new session context. When it differs from the current
// one the conversation restarts: any in-flight turn is canceled and discarded and
// the history becomes a single welcome message in the selected language.
// It reports whether a restart happened.
func (s *ChatSession) UpdateContext(sc models.SessionContext) bool {
	sc.Language = prompts.NormalizeLanguage(sc.Language)
	fp := sc.Fingerprint()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.now()
	if s.state != StateUninitialized && fp == s.fingerprint {
		return false
	}

	s.generation++
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}

	s.state = StateUninitialized
	s.scx = sc
	s.fingerprint = fp
	s.language = sc.Language
	s.system = prompts.DeriveSystemInstruction(sc)
	s.history = []models.ChatMessage{{Sender: models.SenderBot, Text: prompts.WelcomeMessage(sc.Language)}}
	s.state = StateReady

	s.logger.Info("Chat session context set",
		zap.Uint64("generation", s.generation),
		zap.String("language", string(sc.Language)),
		zap.String("view", string(sc.ActiveView)),
		zap.Bool("has_report", sc.HasReport()))
	return true
}

// Close cancels any in-flight turn. Its reply will be discarded.
func (s *ChatSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
}

// turn is the bookkeeping of one in-flight Send.
type turn struct {
	generation uint64
	index      int
	system     string
	language   models.Language
	history    []models.ChatMessage
}

// Send submits a user message and streams the reply. onEvent, when not nil, receives
// text chunks, retry notices and the final done or error event. The returned error
// is a classified *llm.Error, ErrSessionBusy, ErrSessionNotReady or ErrStaleTurn.
func (s *ChatSession) Send(ctx context.Context, text string, onEvent func(models.ChatEvent)) (string, error) {
	emit := func(ev models.ChatEvent) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.NewPreconditionError(MsgEmptyMessage, nil)
	}

	t, turnCtx, cancel, err := s.begin(ctx, text)
	if err != nil {
		return "", err
	}
	defer func() {
		cancel()
		s.mu.Lock()
		if s.generation == t.generation {
			s.cancelTurn = nil
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	reply, err := s.stream(turnCtx, t, text, emit)

	s.mu.Lock()
	if s.generation != t.generation {
		s.mu.Unlock()
		s.logger.Debug("Discarding reply for a superseded chat context",
			zap.Uint64("generation", t.generation))
		s.metrics.ObserveChatTurn("stale")
		return "", ErrStaleTurn
	}

	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.NewError(llm.ErrorTypeEmptyResponse, llm.MsgEmptyResponse, false, nil)
	}

	if err != nil {
		classified := llm.ClassifyError(err)
		msg := chatErrorMessage(classified)
		s.history[t.index] = models.ChatMessage{Sender: models.SenderBot, Text: msg, Error: true}
		s.state = StateTerminalError
		s.lastActive = s.now()
		s.mu.Unlock()

		s.logger.Error("Chat turn failed",
			zap.String("error_type", string(classified.Type)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(classified)))
		s.metrics.ObserveChatTurn(string(classified.Type))
		emit(models.NewErrorEvent(msg))
		return "", classified
	}

	s.history[t.index] = models.ChatMessage{Sender: models.SenderBot, Text: reply}
	s.state = StateReady
	s.lastActive = s.now()
	s.mu.Unlock()

	s.metrics.ObserveChatTurn(metrics.OutcomeOK)
	emit(models.NewDoneEvent(reply))
	return reply, nil
}

// begin validates the state and appends the user turn and a pending bot turn.
func (s *ChatSession) begin(ctx context.Context, text string) (*turn, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateUninitialized:
		return nil, nil, nil, ErrSessionNotReady
	case s.busy():
		return nil, nil, nil, ErrSessionBusy
	}

	t := &turn{
		generation: s.generation,
		system:     s.system,
		language:   s.language,
		history:    conversationHistory(s.history),
	}

	s.history = append(s.history,
		models.ChatMessage{Sender: models.SenderUser, Text: text},
		models.ChatMessage{Sender: models.SenderBot, Pending: true})
	t.index = len(s.history) - 1

	turnCtx, cancel := context.WithCancel(llm.WithCapability(ctx, llm.CapabilityChat))
	s.cancelTurn = cancel
	s.state = StateAwaitingResponse
	s.lastActive = s.now()
	return t, turnCtx, cancel, nil
}

// stream runs the provider call inside the rate-limit retry loop, mirroring the
// partial reply into the pending turn.
func (s *ChatSession) stream(ctx context.Context, t *turn, text string, emit func(models.ChatEvent)) (string, error) {
	// partial is set once the current attempt has streamed text to the client.
	var partial bool

	cfg := s.retryCfg
	cfg.ShouldRetry = llm.IsRateLimit
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		notice := prompts.RetryNotice(t.language, int(math.Ceil(delay.Seconds())), attempt, cfg.MaxRetries)
		if !s.updatePending(t, func(m *models.ChatMessage) { m.Text = notice }, StateRetrying) {
			return
		}
		s.metrics.IncRetry(string(llm.CapabilityChat))
		s.logger.Warn("Chat rate limited, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Bool("discarded_partial", partial))
		if partial {
			emit(models.NewResetEvent())
			partial = false
		}
		emit(models.NewStatusEvent(notice))
	}

	req := &llm.ChatRequest{
		Tier:    llm.TierChat,
		System:  t.system,
		History: t.history,
		Message: text,
	}

	return retry.DoWithResult(ctx, &cfg, func() (string, error) {
		s.updatePending(t, func(m *models.ChatMessage) { m.Text = "" }, "")

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		reply, err := s.provider.StreamChat(callCtx, req, func(chunk string) {
			if chunk == "" {
				return
			}
			if s.updatePending(t, func(m *models.ChatMessage) { m.Text += chunk }, "") {
				partial = true
				emit(models.NewTextEvent(chunk))
			}
		})
		if err != nil {
			return "", llm.ClassifyError(err)
		}
		return reply, nil
	})
}

// updatePending edits the pending bot turn if t is still current, optionally moving
// to state. It reports whether t is current.
func (s *ChatSession) updatePending(t *turn, edit func(*models.ChatMessage), state SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != t.generation {
		return false
	}
	edit(&s.history[t.index])
	if state != "" {
		s.state = state
	}
	return true
}

// conversationHistory returns the turns worth sending to the provider: the welcome
// message, pending turns, failed replies and the user messages that produced them
// are dropped.
func conversationHistory(msgs []models.ChatMessage) []models.ChatMessage {
	var out []models.ChatMessage
	for i := 1; i < len(msgs); i++ {
		m := msgs[i]
		if m.Pending || m.Error || strings.TrimSpace(m.Text) == "" {
			continue
		}
		if m.Sender == models.SenderUser && i+1 < len(msgs) && msgs[i+1].Error {
			continue
		}
		out = append(out, m)
	}
	return out
}

// chatErrorMessage is the text a failed turn shows in place of the reply.
func chatErrorMessage(err *llm.Error) string {
	switch err.Type {
	case llm.ErrorTypeRateLimit:
		return prompts.ChatRateLimitMessage
	case llm.ErrorTypeUnknown:
		return llm.MsgUnknown
	default:
		return err.Message
	}
}
