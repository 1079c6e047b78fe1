package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jimdaga/localbrief/internal/metrics"
)

// DefaultTimeout bounds a provider attempt when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Guard holds the per-provider resilience settings.
type Guard struct {
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries int
	// RatePerMinute caps call volume; 0 disables the limiter.
	RatePerMinute int
	// BreakerFailures opens the circuit after this many consecutive failures; 0 uses 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open; 0 uses one minute.
	BreakerCooldown time.Duration
}

// GuardedProvider wraps a Provider with a rate limiter, circuit breaker,
// bounded retry, and a per-attempt timeout.
type GuardedProvider struct {
	inner   Provider
	guard   Guard
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewGuardedProvider wraps p. logger may be nil.
func NewGuardedProvider(p Provider, g Guard, logger *slog.Logger) *GuardedProvider {
	if g.Timeout <= 0 {
		g.Timeout = DefaultTimeout
	}
	if g.Retries < 0 {
		g.Retries = 0
	}
	if g.BreakerFailures == 0 {
		g.BreakerFailures = 5
	}
	if g.BreakerCooldown <= 0 {
		g.BreakerCooldown = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", p.Name(), "category", string(p.Category()))

	gp := &GuardedProvider{
		inner:  p,
		guard:  g,
		logger: logger,
	}

	if g.RatePerMinute > 0 {
		gp.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.RatePerMinute)), g.RatePerMinute)
	}

	name := p.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	gp.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     g.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Provider circuit breaker state transition", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return gp
}

func (g *GuardedProvider) Name() string       { return g.inner.Name() }
func (g *GuardedProvider) Category() Category { return g.inner.Category() }
func (g *GuardedProvider) Priority() int      { return g.inner.Priority() }

// Timeout is the worst-case time Fetch may take across all attempts.
func (g *GuardedProvider) Timeout() time.Duration {
	return time.Duration(g.guard.Retries+1)*g.guard.Timeout + time.Duration(g.guard.Retries)*2*time.Second
}

// Fetch runs the wrapped provider. Rate limiting and an open circuit fail fast
// so the chain can move on; other failures retry with exponential backoff.
func (g *GuardedProvider) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, &ProviderError{Provider: g.Name(), Kind: KindRateLimited, Err: ErrRateLimited}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.guard.Retries)), ctx)

	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		out, err := g.breaker.Execute(func() ([]byte, error) {
			return callWithTimeout(ctx, g.guard.Timeout, func(callCtx context.Context) ([]byte, error) {
				return g.inner.Fetch(callCtx, req)
			})
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(&ProviderError{Provider: g.Name(), Kind: KindCircuitOpen, Err: err})
			}
			if errors.Is(err, ErrRateLimited) {
				return backoff.Permanent(&ProviderError{Provider: g.Name(), Kind: KindRateLimited, Err: err})
			}
			g.logger.Debug("Provider attempt failed", "attempt", attempt, "error", err.Error())
			return err
		}
		body = out
		return nil
	}, retrier)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ProviderError{Provider: g.Name(), Kind: KindOf(err), Err: fmt.Errorf("after %d attempt(s): %w", attempt, err)}
	}
	return body, nil
}

// StatusError is returned by HTTP-backed providers for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets a 429 match ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
