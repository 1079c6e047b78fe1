package briefings

import (
	"github.com/goccy/go-json"

	"github.com/jimdaga/localbrief/internal/models"
)

// eventItem is the briefing representation of a catalogued event.
type eventItem struct {
	Hash               string `json:"event_hash"`
	Title              string `json:"title"`
	Venue              string `json:"venue,omitempty"`
	Address            string `json:"address,omitempty"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date,omitempty"`
	StartTime          string `json:"start_time,omitempty"`
	EndTime            string `json:"end_time,omitempty"`
	Category           string `json:"category"`
	ExpectedAttendance string `json:"expected_attendance"`
	Description        string `json:"description,omitempty"`
	URL                string `json:"url,omitempty"`
}

func marshalEvents(rows []models.DiscoveredEvent) (json.RawMessage, error) {
	items := make([]eventItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, eventItem{
			Hash:               r.EventHash,
			Title:              r.Title,
			Venue:              r.Venue,
			Address:            r.Address,
			StartDate:          r.StartDate,
			EndDate:            r.EndDate,
			StartTime:          r.StartTime,
			EndTime:            r.EndTime,
			Category:           r.Category,
			ExpectedAttendance: r.ExpectedAttendance,
			Description:        r.Description,
			URL:                r.URL,
		})
	}
	return json.Marshal(items)
}
