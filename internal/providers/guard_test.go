package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jimdaga/localbrief/internal/logging"
)

// flakyProvider fails the first n calls, then succeeds.
type flakyProvider struct {
	fakeProvider
	failures int32
}

func (f *flakyProvider) Fetch(_ context.Context, _ Request) ([]byte, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("transient")
	}
	return []byte(`{"ok":true}`), nil
}

func TestGuardRetriesTransientFailures(t *testing.T) {
	inner := &flakyProvider{fakeProvider: fakeProvider{name: "flaky-retry", category: CategoryTraffic}, failures: 2}
	gp := NewGuardedProvider(inner, Guard{Timeout: time.Second, Retries: 2}, logging.Discard())

	body, err := gp.Fetch(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %s", body)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestGuardNoRetriesByDefault(t *testing.T) {
	inner := &flakyProvider{fakeProvider: fakeProvider{name: "flaky-once", category: CategoryTraffic}, failures: 1}
	gp := NewGuardedProvider(inner, Guard{Timeout: time.Second}, logging.Discard())

	_, err := gp.Fetch(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected failure without retries")
	}
	if KindOf(err) != KindFailed {
		t.Errorf("kind = %q, want failed", KindOf(err))
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestGuardCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "breaker-trip", category: CategoryAirport, err: errors.New("down")}
	gp := NewGuardedProvider(inner, Guard{Timeout: time.Second, BreakerFailures: 2, BreakerCooldown: time.Hour}, logging.Discard())

	for i := 0; i < 2; i++ {
		if _, err := gp.Fetch(context.Background(), Request{}); KindOf(err) != KindFailed {
			t.Fatalf("call %d: kind = %q, want failed", i, KindOf(err))
		}
	}

	_, err := gp.Fetch(context.Background(), Request{})
	if KindOf(err) != KindCircuitOpen {
		t.Errorf("kind = %q, want circuit_open", KindOf(err))
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("open circuit must not reach the provider, calls = %d", got)
	}
}

func TestGuardRateLimitFailsFast(t *testing.T) {
	inner := &fakeProvider{name: "limited", category: CategoryNews, body: []byte(`[1]`)}
	gp := NewGuardedProvider(inner, Guard{Timeout: time.Second, RatePerMinute: 1}, logging.Discard())

	if _, err := gp.Fetch(context.Background(), Request{}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	_, err := gp.Fetch(context.Background(), Request{})
	if KindOf(err) != KindRateLimited {
		t.Errorf("kind = %q, want rate_limited", KindOf(err))
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestGuardUpstreamThrottleNotRetried(t *testing.T) {
	inner := &fakeProvider{name: "upstream-429", category: CategoryNews, err: &StatusError{StatusCode: 429}}
	gp := NewGuardedProvider(inner, Guard{Timeout: time.Second, Retries: 3}, logging.Discard())

	_, err := gp.Fetch(context.Background(), Request{})
	if KindOf(err) != KindRateLimited {
		t.Errorf("kind = %q, want rate_limited", KindOf(err))
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("throttled provider retried, calls = %d", got)
	}
}

func TestGuardAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inner := &fakeProvider{name: "slow-guarded", category: CategoryTraffic, block: release}
	gp := NewGuardedProvider(inner, Guard{Timeout: 30 * time.Millisecond}, logging.Discard())

	start := time.Now()
	_, err := gp.Fetch(context.Background(), Request{})
	if KindOf(err) != KindTimeout {
		t.Errorf("kind = %q, want timeout", KindOf(err))
	}
	if time.Since(start) > time.Second {
		t.Error("attempt timeout not enforced")
	}
}

func TestGuardTimeoutCoversRetries(t *testing.T) {
	gp := NewGuardedProvider(&fakeProvider{name: "budget"}, Guard{Timeout: time.Second, Retries: 1}, nil)
	if gp.Timeout() < 2*time.Second {
		t.Errorf("Timeout() = %s, must cover both attempts", gp.Timeout())
	}
}
