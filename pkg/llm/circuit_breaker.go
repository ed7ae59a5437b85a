package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig configures pacing and circuit breaking around a provider.
type GuardConfig struct {
	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// MaxConcurrent bounds in-flight calls. Zero means unbounded.
	MaxConcurrent int
	// FailureThreshold is the number of consecutive outage failures before the circuit opens.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration
}

// DefaultGuardConfig returns sensible defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond: 2,
		Burst:             4,
		MaxConcurrent:     8,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// StateObserver is notified when the circuit changes state.
type StateObserver func(provider string, from, to gobreaker.State)

// GuardedProvider wraps a Provider with a rate limiter, a concurrency bound and a
// circuit breaker. Only outages (unavailable, timeout) count toward tripping the
// circuit; rate limits and content errors pass through untouched.
type GuardedProvider struct {
	inner   Provider
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	sem     chan struct{}
	logger  *zap.Logger
}

// NewGuardedProvider wraps inner. observer may be nil.
func NewGuardedProvider(inner Provider, cfg GuardConfig, logger *zap.Logger, observer StateObserver) *GuardedProvider {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultGuardConfig().FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultGuardConfig().OpenTimeout
	}

	g := &GuardedProvider{
		inner:  inner,
		logger: logger.Named("llm").With(zap.String("provider", inner.Name())),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.MaxConcurrent > 0 {
		g.sem = make(chan struct{}, cfg.MaxConcurrent)
	}

	threshold := cfg.FailureThreshold
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			t := GetErrorType(err)
			return t != ErrorTypeUnavailable && t != ErrorTypeTimeout
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if observer != nil {
				observer(name, from, to)
			}
		},
	})

	return g
}

// Name implements Provider.
func (g *GuardedProvider) Name() string {
	return g.inner.Name()
}

// State returns the current circuit state.
func (g *GuardedProvider) State() gobreaker.State {
	return g.cb.State()
}

// Generate implements Provider.
func (g *GuardedProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	release, err := g.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Generate(ctx, req)
	})
	if err != nil {
		return nil, g.breakerError(err)
	}
	resp, _ := result.(*Response)
	return resp, nil
}

// StreamChat implements Provider.
func (g *GuardedProvider) StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
	release, err := g.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	var partial string
	result, err := g.cb.Execute(func() (interface{}, error) {
		text, err := g.inner.StreamChat(ctx, req, onChunk)
		partial = text
		return text, err
	})
	if err != nil {
		return partial, g.breakerError(err)
	}
	text, _ := result.(string)
	return text, nil
}

func (g *GuardedProvider) acquire(ctx context.Context) (func(), error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ClassifyError(ctx.Err())
			}
			// The limiter refuses waits that would outlast the deadline.
			return nil, NewError(ErrorTypeTimeout, MsgTimeout, false, err)
		}
	}

	if g.sem == nil {
		return func() {}, nil
	}
	select {
	case g.sem <- struct{}{}:
		return func() { <-g.sem }, nil
	case <-ctx.Done():
		return nil, ClassifyError(ctx.Err())
	}
}

func (g *GuardedProvider) breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Warn("Request rejected by open circuit")
		return NewError(ErrorTypeUnavailable, MsgUnavailable, false, err)
	}
	return err
}

var _ Provider = (*GuardedProvider)(nil)
