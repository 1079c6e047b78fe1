package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jimdaga/localbrief/internal/metrics"
	"github.com/jimdaga/localbrief/internal/providers"
)

// ProviderSource yields the ordered providers for a category.
type ProviderSource interface {
	For(c providers.Category) []providers.Provider
}

// Sink stores a processed batch.
type Sink interface {
	Upsert(ctx context.Context, loc Location, source string, events []Prepared) (int64, error)
}

// Report describes one discovery run.
type Report struct {
	Provider string              `json:"provider,omitempty"`
	Stats    PipelineStats       `json:"stats"`
	Stored   int64               `json:"stored"`
	Attempts []providers.Attempt `json:"attempts,omitempty"`
}

// Discoverer fetches events through the provider chain and files them in the catalogue.
type Discoverer struct {
	source ProviderSource
	chain  *providers.Chain
	sink   Sink
	logger *slog.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(source ProviderSource, chain *providers.Chain, sink Sink, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		source: source,
		chain:  chain,
		sink:   sink,
		logger: logger.With("component", "event_discovery"),
	}
}

// Discover runs one discovery batch for loc.
func (d *Discoverer) Discover(ctx context.Context, loc Location) (Report, error) {
	req := providers.Request{
		City:      loc.City,
		State:     loc.State,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timezone:  loc.Timezone,
		LocalDate: loc.Date,
		Now:       time.Now().UTC(),
	}

	out := d.chain.Call(ctx, providers.CategoryEvents, d.source.For(providers.CategoryEvents), req)
	report := Report{Provider: out.Provider, Attempts: out.Attempts}
	if !out.OK {
		return report, fmt.Errorf("event discovery for %s, %s: %w", loc.City, loc.State, out.Err)
	}

	raws := providers.Unwrap(out.Value, "events", "results", "items", "data")
	res := Process(raws, loc)
	report.Stats = res.Stats

	stored, err := d.sink.Upsert(ctx, loc, out.Provider, res.Prepared)
	if err != nil {
		return report, err
	}
	report.Stored = stored
	metrics.EventsPipeline.WithLabelValues("stored").Add(float64(stored))

	for _, r := range res.Rejected {
		d.logger.Debug("Event rejected",
			"title", r.Event.Title,
			"reason", string(r.Reason),
		)
	}
	d.logger.Info("Event discovery complete",
		"city", loc.City,
		"state", loc.State,
		"date", loc.Date,
		"provider", out.Provider,
		"received", res.Stats.Received,
		"invalid", res.Stats.Invalid,
		"duplicates", res.Stats.Duplicates,
		"stored", stored,
	)

	return report, nil
}
