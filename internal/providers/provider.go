// Package providers runs category fetches through ordered, interchangeable data
// sources.
//
// A provider is anything that can turn a location request into a raw payload.
// The Chain tries providers in priority order, time-boxes each one, parses the
// payload tolerantly, and moves on after any failure. It knows nothing about
// what a provider talks to.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category is one kind of briefing data.
type Category string

const (
	CategoryTraffic         Category = "traffic"
	CategoryWeatherCurrent  Category = "weather_current"
	CategoryWeatherForecast Category = "weather_forecast"
	CategoryEvents          Category = "events"
	CategoryNews            Category = "news"
	CategorySchoolClosures  Category = "school_closures"
	CategoryAirport         Category = "airport"
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryTraffic,
	CategoryWeatherCurrent,
	CategoryWeatherForecast,
	CategoryEvents,
	CategoryNews,
	CategorySchoolClosures,
	CategoryAirport,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Request is the location context every provider receives.
type Request struct {
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Category   Category  `json:"category"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timezone   string    `json:"timezone"`
	LocalDate  string    `json:"local_date"`
	Now        time.Time `json:"now"`
}

// Provider is a single data source for one category.
type Provider interface {
	Name() string
	Category() Category
	// Priority orders providers within a category; lower runs first.
	Priority() int
	// Fetch returns the raw payload. Implementations should honor ctx, but the
	// chain does not rely on it.
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindEmpty       ErrorKind = "empty"
	KindMalformed   ErrorKind = "malformed"
	KindFailed      ErrorKind = "failed"
)

// ErrRateLimited may be returned (or wrapped) by providers that were throttled upstream.
var ErrRateLimited = errors.New("rate limited")

// ProviderError is a failure of one provider. The chain recovers from it by
// moving to the next provider; it never escapes a category.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind of err, defaulting to KindFailed.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}
	if errors.Is(err, ErrUnparseable) {
		return KindMalformed
	}
	return KindFailed
}

// callWithTimeout runs fn and gives up after timeout. A late result is
// discarded; fn is not interrupted beyond the cancellation of its context.
func callWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn(callCtx)
		done <- result{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("no response within %s: %w", timeout, context.DeadlineExceeded)
		}
		return nil, callCtx.Err()
	}
}
