// Package lock coordinates briefing generation so that at most one generation
// runs per key.
//
// Two layers cooperate. A Registry deduplicates concurrent callers inside one
// process. A Coordinator uses the briefing row itself as an advisory mutex
// across processes: an all-NULL placeholder row claims the key, and a
// placeholder that outlives the abandonment threshold is treated as a crashed
// generator and reclaimed in place.
package lock

import "time"

// DefaultAbandonAfter is how long a placeholder may exist before it is
// considered abandoned.
const DefaultAbandonAfter = 2 * time.Minute

// State is derived from a row's nullability and age.
//
//	empty -> placeholder(young) -> placeholder(abandoned) -> complete
type State string

const (
	StateEmpty           State = "empty"
	StateInFlight        State = "in_flight"
	StateAbandoned       State = "abandoned"
	StateComplete        State = "complete"
	StateCompletePartial State = "complete_but_partial"
)

// Row is the lock-relevant projection of a briefing row.
type Row struct {
	Key       string
	UpdatedAt time.Time
	// CoreMissing counts NULL core fields (traffic, events, news, closures).
	CoreMissing int
	// OptionalMissing counts NULL non-core fields (weather, airport).
	OptionalMissing int
}

// IsPlaceholder reports whether any core field is NULL.
func (r Row) IsPlaceholder() bool {
	return r.CoreMissing > 0
}

// Classify is the pure state function over (row, now). A nil row is empty.
func Classify(row *Row, now time.Time, abandonAfter time.Duration) State {
	if row == nil {
		return StateEmpty
	}
	if abandonAfter <= 0 {
		abandonAfter = DefaultAbandonAfter
	}
	if row.IsPlaceholder() {
		if now.Sub(row.UpdatedAt) >= abandonAfter {
			return StateAbandoned
		}
		return StateInFlight
	}
	if row.OptionalMissing > 0 {
		return StateCompletePartial
	}
	return StateComplete
}
