// Package llm wraps the chat models used for text-to-SQL and answer
// generation behind a single Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var ErrEmptyResponse = errors.New("model returned no text")

// NewLimiter allows 90% of rpm requests per minute with a burst of 2.
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0*0.9), 2)
}

// WithBackoff retries fn with exponential backoff and 30% jitter.
func WithBackoff[T any](ctx context.Context, maxRetries int, initial time.Duration, fn func() (T, error)) (T, error) {
	for retries := 0; ; retries++ {
		result, err := fn()
		if err == nil || retries >= maxRetries || errors.Is(err, gobreaker.ErrOpenState) {
			return result, err
		}

		sleep := time.Duration(float64(initial) * math.Pow(2, float64(retries)))
		sleep += time.Duration(float64(sleep) * 0.3 * rand.Float64())

		slog.Warn("completion failed", "nr_attempts", retries+1, "max_retries", maxRetries, "sleep_seconds", sleep.Seconds(), "error", err)

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Guarded adds rate limiting, a circuit breaker and retries to a Completer.
type Guarded struct {
	next       Completer
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	MaxRetries int
	Backoff    time.Duration
}

func NewGuarded(name string, next Completer, rpm int) *Guarded {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guarded{
		next:       next,
		limiter:    NewLimiter(rpm),
		breaker:    breaker,
		MaxRetries: 3,
		Backoff:    2 * time.Second,
	}
}

func (g *Guarded) Complete(ctx context.Context, req Request) (string, error) {
	return guard(ctx, g, func() (string, error) {
		return g.next.Complete(ctx, req)
	})
}

// CompleteTools fails with ErrToolsUnsupported when the wrapped client has
// no tool calling.
func (g *Guarded) CompleteTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	tc, ok := g.next.(ToolCaller)
	if !ok {
		return ToolResponse{}, fmt.Errorf("%w: %T", ErrToolsUnsupported, g.next)
	}
	return guard(ctx, g, func() (ToolResponse, error) {
		return tc.CompleteTools(ctx, req)
	})
}

func guard[T any](ctx context.Context, g *Guarded, call func() (T, error)) (T, error) {
	return WithBackoff(ctx, g.MaxRetries, g.Backoff, func() (T, error) {
		var zero T
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limiter error: %w", err)
		}
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return call()
		})
		if err != nil {
			return zero, err
		}
		return out.(T), nil
	})
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNvidia    = "nvidia"
	ProviderLocal     = "local"
)

// Config selects a provider. An empty BaseURL uses the provider default.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	RPM      int
}

// New builds a guarded Completer for the configured provider.
func New(cfg Config) (Completer, error) {
	var c Completer
	switch cfg.Provider {
	case ProviderAnthropic, "":
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic provider needs an API key")
		}
		c = NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderOpenAI, ProviderNvidia, ProviderLocal:
		base := cfg.BaseURL
		if base == "" {
			base = defaultBaseURLs[cfg.Provider]
		}
		if cfg.APIKey == "" && cfg.Provider != ProviderLocal {
			return nil, fmt.Errorf("%s provider needs an API key", cfg.Provider)
		}
		c = NewChatCompletions(base, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	slog.Info("created llm client", "provider", cfg.Provider, "model", cfg.Model, "rpm", cfg.RPM)
	return NewGuarded(cfg.Provider, c, cfg.RPM), nil
}
