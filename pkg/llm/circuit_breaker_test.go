package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func outageProvider() *MockProvider {
	return &MockProvider{
		GenerateFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return nil, NewError(ErrorTypeUnavailable, MsgUnavailable, false, errors.New("503"))
		},
	}
}

func TestGuardedProvider_PassesThrough(t *testing.T) {
	mock := NewMockProvider(`{"ok": true}`)
	g := NewGuardedProvider(mock, GuardConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, zap.NewNop(), nil)

	resp, err := g.Generate(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"ok": true}` {
		t.Errorf("unexpected response text %q", resp.Text)
	}
	if g.Name() != "mock" {
		t.Errorf("expected name to pass through, got %q", g.Name())
	}
}

func TestGuardedProvider_TripsOnOutages(t *testing.T) {
	mock := outageProvider()
	var mu sync.Mutex
	var transitions []gobreaker.State
	g := NewGuardedProvider(mock, GuardConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, zap.NewNop(),
		func(_ string, _, to gobreaker.State) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		})

	for i := 0; i < 3; i++ {
		_, _ = g.Generate(context.Background(), &Request{})
	}

	if g.State() != gobreaker.StateOpen {
		t.Fatalf("expected open circuit after 3 outages, got %v", g.State())
	}

	_, err := g.Generate(context.Background(), &Request{})
	if GetErrorType(err) != ErrorTypeUnavailable {
		t.Errorf("expected unavailable error from open circuit, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected error to wrap ErrOpenState, got %v", err)
	}
	if mock.GenerateCalls() != 3 {
		t.Errorf("open circuit should not reach the provider, got %d calls", mock.GenerateCalls())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected one transition to open, got %v", transitions)
	}
}

func TestGuardedProvider_RateLimitsDoNotTrip(t *testing.T) {
	mock := &MockProvider{
		GenerateFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return nil, ClassifyError(errors.New("429 RESOURCE_EXHAUSTED"))
		},
	}
	g := NewGuardedProvider(mock, GuardConfig{FailureThreshold: 2, OpenTimeout: time.Minute}, zap.NewNop(), nil)

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), &Request{})
		if !IsRateLimit(err) {
			t.Fatalf("expected rate limit error to pass through, got %v", err)
		}
	}

	if g.State() != gobreaker.StateClosed {
		t.Errorf("rate limits must not open the circuit, got %v", g.State())
	}
	if mock.GenerateCalls() != 5 {
		t.Errorf("expected 5 provider calls, got %d", mock.GenerateCalls())
	}
}

func TestGuardedProvider_SuccessResetsFailures(t *testing.T) {
	fail := true
	mock := &MockProvider{
		GenerateFunc: func(ctx context.Context, req *Request) (*Response, error) {
			if fail {
				return nil, NewError(ErrorTypeTimeout, MsgTimeout, false, context.DeadlineExceeded)
			}
			return &Response{Text: "ok"}, nil
		},
	}
	g := NewGuardedProvider(mock, GuardConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, zap.NewNop(), nil)

	_, _ = g.Generate(context.Background(), &Request{})
	_, _ = g.Generate(context.Background(), &Request{})
	fail = false
	_, _ = g.Generate(context.Background(), &Request{})
	fail = true
	_, _ = g.Generate(context.Background(), &Request{})
	_, _ = g.Generate(context.Background(), &Request{})

	if g.State() != gobreaker.StateClosed {
		t.Errorf("a success should reset the consecutive failure count, got %v", g.State())
	}
}

func TestGuardedProvider_CanceledWhileWaitingForLimiter(t *testing.T) {
	mock := NewMockProvider("ok")
	g := NewGuardedProvider(mock, GuardConfig{RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop(), nil)

	// First call consumes the only token.
	if _, err := g.Generate(context.Background(), &Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, &Request{})
	if GetErrorType(err) != ErrorTypeTimeout {
		t.Errorf("expected timeout while waiting for limiter, got %v", err)
	}
	if mock.GenerateCalls() != 1 {
		t.Errorf("paced call should not reach the provider, got %d calls", mock.GenerateCalls())
	}
}

func TestGuardedProvider_StreamChat(t *testing.T) {
	mock := &MockProvider{
		StreamChatFunc: func(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
			onChunk("Hello ")
			onChunk("farmer")
			return "Hello farmer", nil
		},
	}
	g := NewGuardedProvider(mock, GuardConfig{}, zap.NewNop(), nil)

	var chunks []string
	text, err := g.StreamChat(context.Background(), &ChatRequest{Message: "hi"}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hello farmer" || len(chunks) != 2 {
		t.Errorf("unexpected stream result %q %v", text, chunks)
	}
}
