package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProvider returns a fixed body or error and counts calls.
type fakeProvider struct {
	name     string
	category Category
	priority int
	body     []byte
	err      error
	block    chan struct{} // when set, Fetch ignores ctx and waits on it
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string       { return f.name }
func (f *fakeProvider) Category() Category { return f.category }
func (f *fakeProvider) Priority() int      { return f.priority }

func (f *fakeProvider) Fetch(_ context.Context, _ Request) ([]byte, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.body, f.err
}

func TestChainReturnsFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "primary", category: CategoryTraffic, body: []byte(`{"congestion":"low"}`)}
	second := &fakeProvider{name: "secondary", category: CategoryTraffic, body: []byte(`{"congestion":"high"}`)}

	chain := NewChain(nil, time.Second, nil)
	out := chain.Call(context.Background(), CategoryTraffic, []Provider{first, second}, Request{City: "Dallas"})

	if !out.OK || out.Provider != "primary" {
		t.Fatalf("expected primary success, got ok=%v provider=%s err=%v", out.OK, out.Provider, out.Err)
	}
	if second.calls.Load() != 0 {
		t.Error("secondary must not be called after a success")
	}
	if string(out.Output) != `{"congestion":"low"}` {
		t.Errorf("unexpected output %s", out.Output)
	}
}

func TestChainFallsBackOnEveryFailureKind(t *testing.T) {
	failing := []*fakeProvider{
		{name: "errors", category: CategoryNews, err: errors.New("connection refused")},
		{name: "throttled", category: CategoryNews, err: &StatusError{StatusCode: 429, Body: "slow down"}},
		{name: "empty", category: CategoryNews, body: []byte(`[]`)},
		{name: "garbage", category: CategoryNews, body: []byte(`<html>oops</html>`)},
	}
	good := &fakeProvider{name: "good", category: CategoryNews, body: []byte(`[{"title":"x"}]`)}

	list := []Provider{}
	for _, f := range failing {
		list = append(list, f)
	}
	list = append(list, good)

	out := NewChain(nil, time.Second, nil).Call(context.Background(), CategoryNews, list, Request{})
	if !out.OK || out.Provider != "good" {
		t.Fatalf("expected fallback to good, got ok=%v provider=%s err=%v", out.OK, out.Provider, out.Err)
	}

	wantKinds := []ErrorKind{KindFailed, KindRateLimited, KindEmpty, KindMalformed, ""}
	if len(out.Attempts) != len(wantKinds) {
		t.Fatalf("expected %d attempts, got %d", len(wantKinds), len(out.Attempts))
	}
	for i, k := range wantKinds {
		if out.Attempts[i].Kind != k {
			t.Errorf("attempt %d kind = %q, want %q", i, out.Attempts[i].Kind, k)
		}
	}
}

func TestChainHungProviderBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	hung := &fakeProvider{name: "hung", category: CategoryAirport, block: release}
	backup := &fakeProvider{name: "backup", category: CategoryAirport, body: []byte(`{"status":"ok"}`)}

	start := time.Now()
	out := NewChain(nil, 50*time.Millisecond, nil).Call(context.Background(), CategoryAirport, []Provider{hung, backup}, Request{})
	elapsed := time.Since(start)

	if !out.OK || out.Provider != "backup" {
		t.Fatalf("expected backup success, got ok=%v err=%v", out.OK, out.Err)
	}
	if out.Attempts[0].Kind != KindTimeout {
		t.Errorf("hung provider kind = %q, want timeout", out.Attempts[0].Kind)
	}
	if elapsed > time.Second {
		t.Errorf("hung provider blocked the chain for %s", elapsed)
	}
}

func TestChainExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", category: CategoryTraffic, err: errors.New("down")}
	b := &fakeProvider{name: "b", category: CategoryTraffic, body: []byte(`{}`)}

	out := NewChain(nil, time.Second, nil).Call(context.Background(), CategoryTraffic, []Provider{a, b}, Request{})
	if out.OK {
		t.Fatal("expected failure")
	}
	if !errors.Is(out.Err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", out.Err)
	}
	if len(out.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(out.Attempts))
	}
}

func TestChainNoProviders(t *testing.T) {
	out := NewChain(nil, time.Second, nil).Call(context.Background(), CategoryTraffic, nil, Request{})
	if out.OK || !errors.Is(out.Err, ErrNoProviders) {
		t.Errorf("expected ErrNoProviders, got ok=%v err=%v", out.OK, out.Err)
	}
}

func TestChainSchemaRejectsWrongShape(t *testing.T) {
	schemas, err := LoadSchemas()
	if err != nil {
		t.Fatalf("LoadSchemas: %v", err)
	}

	wrong := &fakeProvider{name: "wrong", category: CategoryEvents, body: []byte(`{"headline":"not events"}`)}
	right := &fakeProvider{name: "right", category: CategoryEvents, body: []byte(`{"events":[{"title":"Show"}]}`)}

	out := NewChain(schemas, time.Second, nil).Call(context.Background(), CategoryEvents, []Provider{wrong, right}, Request{})
	if !out.OK || out.Provider != "right" {
		t.Fatalf("expected right, got ok=%v provider=%s err=%v", out.OK, out.Provider, out.Err)
	}
	if out.Attempts[0].Kind != KindMalformed {
		t.Errorf("wrong shape kind = %q, want malformed", out.Attempts[0].Kind)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("deadline should map to timeout")
	}
	if KindOf(&StatusError{StatusCode: 429}) != KindRateLimited {
		t.Error("429 should map to rate_limited")
	}
	if KindOf(&StatusError{StatusCode: 500}) != KindFailed {
		t.Error("500 should map to failed")
	}
	if KindOf(ErrUnparseable) != KindMalformed {
		t.Error("unparseable should map to malformed")
	}
}
