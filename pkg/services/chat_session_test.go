package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/prompts"
	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
)

type eventLog struct {
	mu     sync.Mutex
	events []models.ChatEvent
}

func (l *eventLog) record(ev models.ChatEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t models.ChatEventType) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev.Content)
		}
	}
	return out
}

func newTestChat(t *testing.T, mock *llm.MockProvider, delays *[]time.Duration) *ChatSession {
	t.Helper()
	cfg := retry.LLMConfig()
	var mu sync.Mutex
	var sink []time.Duration
	if delays == nil {
		delays = &sink
	}
	cfg.Sleep = recordingSleep(&mu, delays)
	return NewChatSession("test-session", mock, ChatConfig{Retry: cfg}, nil, zap.NewNop())
}

func dashboard(lang models.Language) models.SessionContext {
	return models.SessionContext{ActiveView: models.ViewDashboard, Language: lang}
}

func TestChatSession_NotReadyBeforeContext(t *testing.T) {
	mock := &llm.MockProvider{}
	s := newTestChat(t, mock, nil)

	assert.Equal(t, StateUninitialized, s.State())
	_, err := s.Send(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrSessionNotReady)
	assert.Zero(t, mock.StreamChatCalls())
}

func TestChatSession_UpdateContext(t *testing.T) {
	s := newTestChat(t, &llm.MockProvider{}, nil)

	assert.True(t, s.UpdateContext(dashboard(models.LanguageHindi)))
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, models.LanguageHindi, s.Language())
	assert.Contains(t, s.SystemInstruction(), "Hindi")

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.SenderBot, history[0].Sender)
	assert.Equal(t, prompts.WelcomeMessage(models.LanguageHindi), history[0].Text)

	assert.False(t, s.UpdateContext(dashboard(models.LanguageHindi)), "same context must not restart")

	weather := dashboard(models.LanguageHindi)
	weather.ActiveView = models.ViewWeather
	assert.True(t, s.UpdateContext(weather))
	assert.Equal(t, models.ViewWeather, s.Context().ActiveView)
}

func TestChatSession_LanguageSwitchAfterTurns(t *testing.T) {
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			return "Noted.", nil
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	for _, msg := range []string{"first", "second"} {
		_, err := s.Send(context.Background(), msg, nil)
		require.NoError(t, err)
	}
	require.Len(t, s.History(), 5)

	assert.True(t, s.UpdateContext(dashboard(models.LanguageHindi)))
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, []models.ChatMessage{
		{Sender: models.SenderBot, Text: prompts.WelcomeMessage(models.LanguageHindi)},
	}, s.History())

	_, err := s.Send(context.Background(), "third", nil)
	require.NoError(t, err)
	reqs := mock.ChatRequests()
	assert.Empty(t, reqs[len(reqs)-1].History, "turns from before the switch are not sent")
}

func TestChatSession_UnsupportedLanguageFallsBackToEnglish(t *testing.T) {
	s := newTestChat(t, &llm.MockProvider{}, nil)

	s.UpdateContext(dashboard("fr-FR"))
	assert.Equal(t, models.LanguageEnglish, s.Language())
	assert.Equal(t, prompts.WelcomeMessage(models.LanguageEnglish), s.History()[0].Text)
	assert.False(t, s.UpdateContext(dashboard(models.LanguageEnglish)), "normalized contexts are equal")
}

func TestChatSession_SendStreamsReply(t *testing.T) {
	var s *ChatSession
	var midStream models.ChatMessage
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			onChunk("Apply ")
			midStream = s.History()[2]
			onChunk("urea.")
			return "Apply urea.", nil
		},
	}
	s = newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	reply, err := s.Send(context.Background(), "  What should I apply?  ", events.record)
	require.NoError(t, err)
	assert.Equal(t, "Apply urea.", reply)

	assert.True(t, midStream.Pending)
	assert.Equal(t, "Apply ", midStream.Text)

	assert.Equal(t, []string{"Apply ", "urea."}, events.ofType(models.ChatEventText))
	assert.Equal(t, []string{"Apply urea."}, events.ofType(models.ChatEventDone))

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, models.ChatMessage{Sender: models.SenderUser, Text: "What should I apply?"}, history[1])
	assert.Equal(t, models.ChatMessage{Sender: models.SenderBot, Text: "Apply urea."}, history[2])
	assert.Equal(t, StateReady, s.State())

	reqs := mock.ChatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.TierChat, reqs[0].Tier)
	assert.Equal(t, s.SystemInstruction(), reqs[0].System)
	assert.Empty(t, reqs[0].History, "welcome message is not sent as history")
	assert.Equal(t, "What should I apply?", reqs[0].Message)
}

func TestChatSession_HistoryCarriesPriorTurns(t *testing.T) {
	mock := &llm.MockProvider{}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	_, err := s.Send(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "second", nil)
	require.NoError(t, err)

	reqs := mock.ChatRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []models.ChatMessage{
		{Sender: models.SenderUser, Text: "first"},
		{Sender: models.SenderBot, Text: "ok"},
	}, reqs[1].History)
}

func TestChatSession_EmptyMessage(t *testing.T) {
	mock := &llm.MockProvider{}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	_, err := s.Send(context.Background(), "   ", nil)
	e := requireErrorType(t, err, llm.ErrorTypePrecondition)
	assert.Equal(t, MsgEmptyMessage, e.Message)
	assert.Len(t, s.History(), 1)
	assert.Zero(t, mock.StreamChatCalls())
}

func TestChatSession_RetryNotice(t *testing.T) {
	calls := 0
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("Error 429: Resource has been exhausted")
			}
			onChunk("Done.")
			return "Done.", nil
		},
	}
	var delays []time.Duration
	s := newTestChat(t, mock, &delays)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	reply, err := s.Send(context.Background(), "hi", events.record)
	require.NoError(t, err)
	assert.Equal(t, "Done.", reply)
	assert.Equal(t, []time.Duration{time.Second}, delays)
	assert.Equal(t, []string{"Connection is busy. Retrying in 1s... (Attempt 1/2)"}, events.ofType(models.ChatEventStatus))
	assert.Equal(t, "Done.", s.History()[2].Text)
	assert.Equal(t, StateReady, s.State())
}

func TestChatSession_RetryAfterPartialReplyResetsStream(t *testing.T) {
	calls := 0
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			calls++
			if calls == 1 {
				onChunk("Apply ur")
				return "", errors.New("429 Too Many Requests")
			}
			onChunk("Apply urea.")
			return "Apply urea.", nil
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	reply, err := s.Send(context.Background(), "hi", events.record)
	require.NoError(t, err)
	assert.Equal(t, "Apply urea.", reply)

	var types []models.ChatEventType
	for _, ev := range events.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []models.ChatEventType{
		models.ChatEventText,
		models.ChatEventReset,
		models.ChatEventStatus,
		models.ChatEventText,
		models.ChatEventDone,
	}, types)
	assert.Equal(t, "Apply urea.", s.History()[2].Text)
}

func TestChatSession_RetryWithoutPartialReplySkipsReset(t *testing.T) {
	calls := 0
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("429 Too Many Requests")
			}
			return "Fine.", nil
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	_, err := s.Send(context.Background(), "hi", events.record)
	require.NoError(t, err)
	assert.Empty(t, events.ofType(models.ChatEventReset))
}

func TestChatSession_RetryNoticeIsLocalized(t *testing.T) {
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			return "", errors.New("429 Too Many Requests")
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageKannada))

	var events eventLog
	_, err := s.Send(context.Background(), "ನಮಸ್ಕಾರ", events.record)
	requireErrorType(t, err, llm.ErrorTypeRateLimit)

	assert.Equal(t, []string{
		prompts.RetryNotice(models.LanguageKannada, 1, 1, 2),
		prompts.RetryNotice(models.LanguageKannada, 2, 2, 2),
	}, events.ofType(models.ChatEventStatus))
	assert.Equal(t, 3, mock.StreamChatCalls())
}

func TestChatSession_TerminalErrorThenRecovers(t *testing.T) {
	fail := true
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			if fail {
				return "", errors.New("429 quota exceeded")
			}
			return "Recovered.", nil
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	_, err := s.Send(context.Background(), "first try", events.record)
	requireErrorType(t, err, llm.ErrorTypeRateLimit)
	assert.Equal(t, StateTerminalError, s.State())
	assert.Equal(t, []string{prompts.ChatRateLimitMessage}, events.ofType(models.ChatEventError))

	history := s.History()
	require.Len(t, history, 3)
	assert.True(t, history[2].Error)
	assert.False(t, history[2].Pending)
	assert.Equal(t, prompts.ChatRateLimitMessage, history[2].Text)

	fail = false
	reply, err := s.Send(context.Background(), "second try", nil)
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", reply)
	assert.Equal(t, StateReady, s.State())

	reqs := mock.ChatRequests()
	last := reqs[len(reqs)-1]
	assert.Empty(t, last.History, "failed exchange is not sent as history")
	assert.Len(t, s.History(), 5)
}

func TestChatSession_EmptyReplyFails(t *testing.T) {
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			return "  ", nil
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	_, err := s.Send(context.Background(), "hi", nil)
	e := requireErrorType(t, err, llm.ErrorTypeEmptyResponse)
	assert.Equal(t, e.Message, s.History()[2].Text)
}

func TestChatSession_UnknownErrorShowsGenericMessage(t *testing.T) {
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			return "", errors.New("something odd")
		},
	}
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	_, err := s.Send(context.Background(), "hi", nil)
	requireErrorType(t, err, llm.ErrorTypeUnknown)
	assert.Equal(t, llm.MsgUnknown, s.History()[2].Text)
}

// blockingProvider holds every chat turn until released or canceled.
func blockingProvider() (*llm.MockProvider, chan struct{}, chan struct{}) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	mock := &llm.MockProvider{
		StreamChatFunc: func(ctx context.Context, req *llm.ChatRequest, onChunk func(string)) (string, error) {
			started <- struct{}{}
			select {
			case <-release:
				return "late reply", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	return mock, started, release
}

func TestChatSession_RejectsConcurrentTurn(t *testing.T) {
	mock, started, release := blockingProvider()
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first", nil)
		done <- err
	}()
	<-started

	assert.True(t, s.InFlight())
	_, err := s.Send(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, mock.StreamChatCalls())
	assert.False(t, s.InFlight())
}

func TestChatSession_ContextChangeDiscardsInFlightTurn(t *testing.T) {
	mock, started, _ := blockingProvider()
	s := newTestChat(t, mock, nil)
	s.UpdateContext(dashboard(models.LanguageEnglish))

	var events eventLog
	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "about my soil", events.record)
		done <- err
	}()
	<-started

	require.True(t, s.UpdateContext(dashboard(models.LanguageHindi)))
	assert.ErrorIs(t, <-done, ErrStaleTurn)

	history := s.History()
	require.Len(t, history, 1, "stale reply must not land in the new conversation")
	assert.Equal(t, prompts.WelcomeMessage(models.LanguageHindi), history[0].Text)
	assert.Empty(t, events.ofType(models.ChatEventError))
	assert.Empty(t, events.ofType(models.ChatEventDone))
	assert.Equal(t, StateReady, s.State())
}

func TestConversationHistory(t *testing.T) {
	msgs := []models.ChatMessage{
		{Sender: models.SenderBot, Text: "welcome"},
		{Sender: models.SenderUser, Text: "q1"},
		{Sender: models.SenderBot, Text: "a1"},
		{Sender: models.SenderUser, Text: "q2"},
		{Sender: models.SenderBot, Text: "busy", Error: true},
		{Sender: models.SenderUser, Text: "q3"},
		{Sender: models.SenderBot, Pending: true},
	}

	assert.Equal(t, []models.ChatMessage{
		{Sender: models.SenderUser, Text: "q1"},
		{Sender: models.SenderBot, Text: "a1"},
		{Sender: models.SenderUser, Text: "q3"},
	}, conversationHistory(msgs))
	assert.Empty(t, conversationHistory(msgs[:1]))
}
