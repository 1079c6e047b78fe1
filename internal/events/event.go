// Package events turns loosely structured event payloads into a deduplicated,
// content-addressed catalogue.
//
// Every discovery batch flows one way: Normalize maps raw provider objects to
// a canonical Event, Validate drops events with missing or placeholder
// fields, Dedupe collapses near-duplicate phrasings, and Hash assigns the
// storage key used for idempotent upserts.
package events

import "time"

// Category is the closed set of event kinds.
type Category string

const (
	CategoryConcert    Category = "concert"
	CategorySports     Category = "sports"
	CategoryTheater    Category = "theater"
	CategoryComedy     Category = "comedy"
	CategoryFestival   Category = "festival"
	CategoryConference Category = "conference"
	CategoryNightlife  Category = "nightlife"
	CategoryFamily     Category = "family"
	CategoryCommunity  Category = "community"
	CategoryOther      Category = "other"
)

// Impact is the expected attendance bucket.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

func (i Impact) rank() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// Event is the canonical event shape. Empty strings mean the field was
// missing or could not be parsed.
type Event struct {
	Title       string   `json:"title"`
	Venue       string   `json:"venue,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	StartDate   string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string   `json:"end_date,omitempty"`
	StartTime   string   `json:"start_time,omitempty"` // HH:MM, 24h
	EndTime     string   `json:"end_time,omitempty"`
	Category    Category `json:"category"`
	Impact      Impact   `json:"expected_attendance"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Location is the context a discovery batch runs in. Date is the local
// calendar date (YYYY-MM-DD) relative words like "today" resolve against.
type Location struct {
	City      string
	State     string
	Timezone  string
	Latitude  float64
	Longitude float64
	Date      string
}

// Year returns the year of Date, or 0 when Date is unset.
func (l Location) Year() int {
	d, err := time.Parse(dateLayout, l.Date)
	if err != nil {
		return 0
	}
	return d.Year()
}

const dateLayout = "2006-01-02"
