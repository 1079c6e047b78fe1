// Package staleness decides whether cached briefing data for a category may be reused.
//
// Every rule is evaluated against the calendar of the record owner's timezone,
// not a rolling window: a calendar-day category generated at 23:00 expires an
// hour later at local midnight.
package staleness

import (
	"time"
)

// Kind is the freshness rule family a category follows.
type Kind string

const (
	// AlwaysFresh categories are refetched on every call and never reused.
	AlwaysFresh Kind = "always_fresh"
	// CalendarDay categories stay valid until local midnight.
	CalendarDay Kind = "calendar_day"
	// ShortTTL categories stay valid for a fixed TTL.
	ShortTTL Kind = "short_ttl"
	// DBSourced categories are read back from a canonical store; the cached
	// field follows short-TTL semantics because reading it back is cheap.
	DBSourced Kind = "db_sourced"
)

// DefaultShortTTL applies when a ShortTTL or DBSourced policy has no TTL.
const DefaultShortTTL = 4 * time.Hour

// Decision is the only output callers may branch on.
type Decision string

const (
	Fresh             Decision = "fresh"
	StaleRefresh      Decision = "stale-refresh"
	StaleEmptyRefresh Decision = "stale-empty-refresh"
)

// NeedsFetch reports whether the decision requires new data.
func (d Decision) NeedsFetch() bool {
	return d != Fresh
}

// Policy is the rule for one category.
type Policy struct {
	Kind Kind
	TTL  time.Duration
}

// Record describes the cached value being judged.
type Record struct {
	// UpdatedAt is the row's last write; zero means never written.
	UpdatedAt time.Time
	// Empty is true for NULL, missing, or zero-item content.
	Empty bool
}

// Decide applies the policy to a record at time now in loc.
// Empty content always yields StaleEmptyRefresh: empty means "needs data",
// never "confirmed nothing exists".
func Decide(p Policy, rec Record, now time.Time, loc *time.Location) Decision {
	if rec.Empty || rec.UpdatedAt.IsZero() {
		return StaleEmptyRefresh
	}
	if loc == nil {
		loc = time.UTC
	}

	switch p.Kind {
	case CalendarDay:
		if SameLocalDay(rec.UpdatedAt, now, loc) {
			return Fresh
		}
		return StaleRefresh
	case ShortTTL, DBSourced:
		ttl := p.TTL
		if ttl <= 0 {
			ttl = DefaultShortTTL
		}
		if now.Sub(rec.UpdatedAt) < ttl {
			return Fresh
		}
		return StaleRefresh
	default:
		return StaleRefresh
	}
}

// SameLocalDay reports whether a and b fall on the same calendar date in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NextLocalMidnight returns the instant the current local day ends.
func NextLocalMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
