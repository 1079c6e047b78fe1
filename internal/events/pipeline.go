package events

import (
	"github.com/jimdaga/localbrief/internal/metrics"
)

// Prepared is a validated, deduplicated event with its storage key.
type Prepared struct {
	Event
	Hash string
}

// PipelineStats counts events at each stage of one batch.
type PipelineStats struct {
	Received   int            `json:"received"`
	Valid      int            `json:"valid"`
	Invalid    int            `json:"invalid"`
	Duplicates int            `json:"duplicates"`
	Unique     int            `json:"unique"`
	ByReason   map[Reason]int `json:"by_reason,omitempty"`
}

// Result is the output of Process.
type Result struct {
	Prepared []Prepared
	Rejected []Rejected
	Stats    PipelineStats
}

// Process runs a raw batch through normalize, validate, dedupe and hash.
// Two survivors that still share a hash are merged so an upsert never touches
// the same row twice.
func Process(raws []any, loc Location) Result {
	normalized := make([]Event, 0, len(raws))
	for _, raw := range raws {
		normalized = append(normalized, Normalize(raw, loc))
	}

	batch := ValidateAll(normalized)
	kept, dropped := Dedupe(batch.Valid)

	res := Result{
		Rejected: batch.Invalid,
		Stats: PipelineStats{
			Received: len(raws),
			Valid:    batch.Stats.Valid,
			Invalid:  batch.Stats.Invalid,
			ByReason: batch.Stats.ByReason,
		},
	}

	byHash := make(map[string]int, len(kept))
	for _, ev := range kept {
		h := Hash(ev)
		if i, ok := byHash[h]; ok {
			dropped++
			if better(ev, res.Prepared[i].Event) {
				res.Prepared[i].Event = ev
			}
			continue
		}
		byHash[h] = len(res.Prepared)
		res.Prepared = append(res.Prepared, Prepared{Event: ev, Hash: h})
	}

	res.Stats.Duplicates = dropped
	res.Stats.Unique = len(res.Prepared)

	metrics.EventsPipeline.WithLabelValues("received").Add(float64(res.Stats.Received))
	metrics.EventsPipeline.WithLabelValues("invalid").Add(float64(res.Stats.Invalid))
	metrics.EventsPipeline.WithLabelValues("duplicate").Add(float64(res.Stats.Duplicates))
	for reason, n := range res.Stats.ByReason {
		metrics.EventsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}

	return res
}
