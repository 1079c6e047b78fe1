package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/jimdaga/localbrief/internal/metrics"
)

// Attempt records one provider invocation inside a chain call.
type Attempt struct {
	Provider string        `json:"provider"`
	Kind     ErrorKind     `json:"kind,omitempty"` // empty on success
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

// Outcome is the result of a chain call: the first success, or ok=false after
// every provider failed.
type Outcome struct {
	OK       bool
	Category Category
	// Output is the repaired, re-encoded payload of the winning provider.
	Output json.RawMessage
	// Value is Output decoded into generic JSON values.
	Value    any
	Provider string
	Err      error
	Attempts []Attempt
}

// ErrNoProviders is returned when a category has nothing configured.
var ErrNoProviders = errors.New("no providers configured")

// ErrExhausted wraps the last provider error once the list is used up.
var ErrExhausted = errors.New("all providers failed")

// Chain calls providers in priority order until one returns a usable payload.
type Chain struct {
	schemas *Schemas
	timeout time.Duration
	logger  *slog.Logger
}

// NewChain creates a chain. timeout caps any provider that does not declare
// its own worst-case duration; schemas may be nil to skip shape checks.
func NewChain(schemas *Schemas, timeout time.Duration, logger *slog.Logger) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		schemas: schemas,
		timeout: timeout,
		logger:  logger.With("component", "provider_chain"),
	}
}

type timeoutDeclarer interface {
	Timeout() time.Duration
}

// Call runs the fallback chain for category over providers (already in
// priority order). A hung provider costs at most its own timeout.
func (c *Chain) Call(ctx context.Context, category Category, providers []Provider, req Request) Outcome {
	out := Outcome{Category: category}
	req.Category = category

	if len(providers) == 0 {
		out.Err = fmt.Errorf("%s: %w", category, ErrNoProviders)
		metrics.ChainExhausted.WithLabelValues(string(category)).Inc()
		return out
	}

	var lastErr error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		start := time.Now()
		value, raw, err := c.invoke(ctx, p, req)
		latency := time.Since(start)
		metrics.ProviderLatency.WithLabelValues(string(category), p.Name()).Observe(latency.Seconds())

		if err != nil {
			kind := KindOf(err)
			out.Attempts = append(out.Attempts, Attempt{Provider: p.Name(), Kind: kind, Latency: latency, Error: err.Error()})
			metrics.ProviderCalls.WithLabelValues(string(category), p.Name(), string(kind)).Inc()
			c.logger.Warn("Provider failed, trying next",
				"category", string(category),
				"provider", p.Name(),
				"kind", string(kind),
				"latency_ms", latency.Milliseconds(),
				"error", err.Error(),
			)
			lastErr = err
			continue
		}

		out.Attempts = append(out.Attempts, Attempt{Provider: p.Name(), Latency: latency})
		metrics.ProviderCalls.WithLabelValues(string(category), p.Name(), "success").Inc()
		c.logger.Debug("Provider succeeded",
			"category", string(category),
			"provider", p.Name(),
			"latency_ms", latency.Milliseconds(),
		)

		out.OK = true
		out.Output = raw
		out.Value = value
		out.Provider = p.Name()
		return out
	}

	metrics.ChainExhausted.WithLabelValues(string(category)).Inc()
	out.Err = fmt.Errorf("%s: %w: %w", category, ErrExhausted, lastErr)
	return out
}

// invoke time-boxes one provider and turns its raw body into a usable value.
func (c *Chain) invoke(ctx context.Context, p Provider, req Request) (any, json.RawMessage, error) {
	timeout := c.timeout
	if td, ok := p.(timeoutDeclarer); ok && td.Timeout() > 0 {
		timeout = td.Timeout()
	}

	body, err := callWithTimeout(ctx, timeout, func(callCtx context.Context) ([]byte, error) {
		return p.Fetch(callCtx, req)
	})
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, nil, err
		}
		return nil, nil, &ProviderError{Provider: p.Name(), Kind: KindOf(err), Err: err}
	}

	value, err := ParseTolerant(body)
	if err != nil {
		return nil, nil, &ProviderError{Provider: p.Name(), Kind: KindMalformed, Err: err}
	}
	if IsEmpty(value) {
		return nil, nil, &ProviderError{Provider: p.Name(), Kind: KindEmpty}
	}
	if err := c.schemas.Validate(req.Category, value); err != nil {
		return nil, nil, &ProviderError{Provider: p.Name(), Kind: KindMalformed, Err: err}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, nil, &ProviderError{Provider: p.Name(), Kind: KindMalformed, Err: err}
	}
	return value, raw, nil
}
