package events

import (
	"regexp"
	"time"
)

// Reason explains why an event was rejected.
type Reason string

const (
	ReasonMissingTitle        Reason = "missing_title"
	ReasonPlaceholderTitle    Reason = "placeholder_title"
	ReasonMissingLocation     Reason = "missing_venue_and_address"
	ReasonPlaceholderLocation Reason = "placeholder_venue_and_address"
	ReasonInvalidStartDate    Reason = "invalid_start_date"
	ReasonMissingStartTime    Reason = "missing_start_time"
	ReasonPlaceholderTime     Reason = "placeholder_start_time"
)

var placeholder = regexp.MustCompile(`(?i)\b(tbd|tba|unknown|to be determined|to be announced|coming soon|various locations?)\b`)

func isPlaceholder(s string) bool {
	return placeholder.MatchString(s)
}

// Validation is the verdict for one event.
type Validation struct {
	Valid  bool
	Reason Reason
}

// Validate applies the hard filters in order; the first failing rule is
// reported.
func Validate(ev Event) Validation {
	switch {
	case ev.Title == "":
		return Validation{Reason: ReasonMissingTitle}
	case isPlaceholder(ev.Title):
		return Validation{Reason: ReasonPlaceholderTitle}
	}

	if ev.Venue == "" && ev.Address == "" {
		return Validation{Reason: ReasonMissingLocation}
	}
	if !usable(ev.Venue) && !usable(ev.Address) {
		return Validation{Reason: ReasonPlaceholderLocation}
	}

	if _, err := time.Parse(dateLayout, ev.StartDate); err != nil || len(ev.StartDate) != len(dateLayout) {
		return Validation{Reason: ReasonInvalidStartDate}
	}

	switch {
	case ev.StartTime == "":
		return Validation{Reason: ReasonMissingStartTime}
	case isPlaceholder(ev.StartTime):
		return Validation{Reason: ReasonPlaceholderTime}
	}

	return Validation{Valid: true}
}

func usable(s string) bool {
	return s != "" && !isPlaceholder(s)
}

// Rejected pairs an invalid event with the rule it failed.
type Rejected struct {
	Event  Event  `json:"event"`
	Reason Reason `json:"reason"`
}

// Stats summarizes a validation batch.
type Stats struct {
	Total    int            `json:"total"`
	Valid    int            `json:"valid"`
	Invalid  int            `json:"invalid"`
	ByReason map[Reason]int `json:"by_reason,omitempty"`
}

// Batch is the result of ValidateAll. Both buckets keep input order.
type Batch struct {
	Valid   []Event
	Invalid []Rejected
	Stats   Stats
}

// ValidateAll validates every event, splitting them into valid and invalid.
func ValidateAll(events []Event) Batch {
	b := Batch{Stats: Stats{Total: len(events), ByReason: map[Reason]int{}}}
	for _, ev := range events {
		v := Validate(ev)
		if v.Valid {
			b.Valid = append(b.Valid, ev)
			continue
		}
		b.Invalid = append(b.Invalid, Rejected{Event: ev, Reason: v.Reason})
		b.Stats.ByReason[v.Reason]++
	}
	b.Stats.Valid = len(b.Valid)
	b.Stats.Invalid = len(b.Invalid)
	return b
}
