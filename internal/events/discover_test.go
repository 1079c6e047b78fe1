package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jimdaga/localbrief/internal/logging"
	"github.com/jimdaga/localbrief/internal/providers"
)

type recordingSink struct {
	calls  int
	source string
	events []Prepared
	err    error
}

func (s *recordingSink) Upsert(_ context.Context, _ Location, source string, events []Prepared) (int64, error) {
	s.calls++
	s.source = source
	s.events = events
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(events)), nil
}

type staticSource []providers.Provider

func (s staticSource) For(providers.Category) []providers.Provider { return s }

type brokenProvider struct{}

func (brokenProvider) Name() string                 { return "broken" }
func (brokenProvider) Category() providers.Category { return providers.CategoryEvents }
func (brokenProvider) Priority() int                { return 1 }
func (brokenProvider) Fetch(context.Context, providers.Request) ([]byte, error) {
	return nil, errors.New("upstream down")
}

func TestDiscoverStoresProcessedBatch(t *testing.T) {
	src := staticSource{
		brokenProvider{},
		providers.NewStubProvider("stub-events", providers.CategoryEvents, 2, 0, nil),
	}
	sink := &recordingSink{}
	chain := providers.NewChain(nil, time.Second, logging.Discard())

	report, err := NewDiscoverer(src, chain, sink, logging.Discard()).Discover(context.Background(), testLoc)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if report.Provider != "stub-events" || sink.source != "stub-events" {
		t.Errorf("provider = %q, sink source = %q", report.Provider, sink.source)
	}
	if len(report.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2 (fallback)", len(report.Attempts))
	}
	if report.Stored != 2 || len(sink.events) != 2 {
		t.Errorf("stored = %d, sink got %d, want 2", report.Stored, len(sink.events))
	}
}

func TestDiscoverChainFailure(t *testing.T) {
	sink := &recordingSink{}
	chain := providers.NewChain(nil, time.Second, logging.Discard())

	_, err := NewDiscoverer(staticSource{brokenProvider{}}, chain, sink, nil).Discover(context.Background(), testLoc)
	if !errors.Is(err, providers.ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if sink.calls != 0 {
		t.Error("sink must not be called when no provider succeeded")
	}
}

func TestDiscoverSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	chain := providers.NewChain(nil, time.Second, logging.Discard())
	src := staticSource{providers.NewStubProvider("stub-events", providers.CategoryEvents, 1, 0, nil)}

	if _, err := NewDiscoverer(src, chain, sink, nil).Discover(context.Background(), testLoc); err == nil {
		t.Error("expected sink error to propagate")
	}
}
