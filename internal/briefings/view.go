package briefings

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	"github.com/jimdaga/localbrief/internal/models"
	"github.com/jimdaga/localbrief/internal/providers"
)

var emptyItems = json.RawMessage(`[]`)

// CategoryResult is what a briefing column holds. "No data" carries a Reason
// and empty Items; a failed fetch also carries Error.
type CategoryResult struct {
	Items     json.RawMessage `json:"items"`
	Provider  string          `json:"provider,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Error     string          `json:"error,omitempty"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
}

// Empty reports whether the result has nothing to show.
func (r CategoryResult) Empty() bool {
	if len(r.Items) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(r.Items, &v); err != nil {
		return true
	}
	return providers.IsEmpty(v)
}

func degraded(reason, errText string) CategoryResult {
	return CategoryResult{Items: emptyItems, Reason: reason, Error: errText}
}

// decodeColumn reads a stored column. ok is false for NULL. Content written
// without the envelope is treated as bare items.
func decodeColumn(raw datatypes.JSON) (CategoryResult, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return CategoryResult{}, false
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if _, has := probe["items"]; has {
				var r CategoryResult
				if err := json.Unmarshal(trimmed, &r); err == nil {
					if len(r.Items) == 0 || bytes.Equal(r.Items, []byte("null")) {
						r.Items = emptyItems
					}
					return r, true
				}
			}
		}
	}
	return CategoryResult{Items: json.RawMessage(trimmed)}, true
}

func encodeColumn(r CategoryResult) (datatypes.JSON, error) {
	if len(r.Items) == 0 {
		r.Items = emptyItems
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// View is the complete briefing shape returned to callers. Every category is
// always present.
type View struct {
	SnapshotID        string         `json:"snapshot_id"`
	TrafficConditions CategoryResult `json:"traffic_conditions"`
	Events            CategoryResult `json:"events"`
	News              CategoryResult `json:"news"`
	SchoolClosures    CategoryResult `json:"school_closures"`
	WeatherCurrent    CategoryResult `json:"weather_current"`
	WeatherForecast   CategoryResult `json:"weather_forecast"`
	AirportConditions CategoryResult `json:"airport_conditions"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (v *View) field(column string) *CategoryResult {
	switch column {
	case models.ColumnTrafficConditions:
		return &v.TrafficConditions
	case models.ColumnEvents:
		return &v.Events
	case models.ColumnNews:
		return &v.News
	case models.ColumnSchoolClosures:
		return &v.SchoolClosures
	case models.ColumnWeatherCurrent:
		return &v.WeatherCurrent
	case models.ColumnWeatherForecast:
		return &v.WeatherForecast
	case models.ColumnAirportConditions:
		return &v.AirportConditions
	}
	return nil
}

// Category returns the result stored under a column name.
func (v *View) Category(column string) (CategoryResult, bool) {
	f := v.field(column)
	if f == nil {
		return CategoryResult{}, false
	}
	return *f, true
}

// buildView merges freshly fetched results over the stored row.
func buildView(snapshotID string, row *models.Briefing, fetched map[string]CategoryResult, updatedAt time.Time) *View {
	v := &View{SnapshotID: snapshotID, UpdatedAt: updatedAt}
	for _, column := range append(append([]string{}, models.CoreColumns...), models.OptionalColumns...) {
		f := v.field(column)
		if f == nil {
			continue
		}
		if r, ok := fetched[column]; ok {
			*f = r
			continue
		}
		if row != nil {
			if r, ok := decodeColumn(row.Column(column)); ok {
				*f = r
				continue
			}
		}
		*f = degraded("not available", "")
	}
	return v
}
