package models

import (
	"time"

	"gorm.io/datatypes"
)

// Briefing column names, shared by the store and the orchestrator.
const (
	ColumnNews              = "news"
	ColumnWeatherCurrent    = "weather_current"
	ColumnWeatherForecast   = "weather_forecast"
	ColumnTrafficConditions = "traffic_conditions"
	ColumnEvents            = "events"
	ColumnSchoolClosures    = "school_closures"
	ColumnAirportConditions = "airport_conditions"
)

// Briefing holds the cached category payloads for one snapshot. Every
// category column is nullable; a row with any core column NULL is a
// placeholder for a generation that is running or never finished.
type Briefing struct {
	ID                uint           `gorm:"primaryKey"`
	SnapshotID        string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	News              datatypes.JSON `gorm:"type:jsonb"`
	WeatherCurrent    datatypes.JSON `gorm:"type:jsonb"`
	WeatherForecast   datatypes.JSON `gorm:"type:jsonb"`
	TrafficConditions datatypes.JSON `gorm:"type:jsonb"`
	Events            datatypes.JSON `gorm:"type:jsonb"`
	SchoolClosures    datatypes.JSON `gorm:"type:jsonb"`
	AirportConditions datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CoreColumns must all be set for a briefing to count as finished.
var CoreColumns = []string{
	ColumnTrafficConditions,
	ColumnEvents,
	ColumnNews,
	ColumnSchoolClosures,
}

// OptionalColumns may stay NULL in a finished briefing.
var OptionalColumns = []string{
	ColumnWeatherCurrent,
	ColumnWeatherForecast,
	ColumnAirportConditions,
}

// Column returns the raw JSON stored in the named column, nil when NULL.
func (b *Briefing) Column(name string) datatypes.JSON {
	switch name {
	case ColumnNews:
		return b.News
	case ColumnWeatherCurrent:
		return b.WeatherCurrent
	case ColumnWeatherForecast:
		return b.WeatherForecast
	case ColumnTrafficConditions:
		return b.TrafficConditions
	case ColumnEvents:
		return b.Events
	case ColumnSchoolClosures:
		return b.SchoolClosures
	case ColumnAirportConditions:
		return b.AirportConditions
	default:
		return nil
	}
}

// SetColumn stores raw JSON in the named column.
func (b *Briefing) SetColumn(name string, value datatypes.JSON) {
	switch name {
	case ColumnNews:
		b.News = value
	case ColumnWeatherCurrent:
		b.WeatherCurrent = value
	case ColumnWeatherForecast:
		b.WeatherForecast = value
	case ColumnTrafficConditions:
		b.TrafficConditions = value
	case ColumnEvents:
		b.Events = value
	case ColumnSchoolClosures:
		b.SchoolClosures = value
	case ColumnAirportConditions:
		b.AirportConditions = value
	}
}

// MissingCounts reports how many core and optional columns are NULL.
func (b *Briefing) MissingCounts() (core, optional int) {
	for _, c := range CoreColumns {
		if isNull(b.Column(c)) {
			core++
		}
	}
	for _, c := range OptionalColumns {
		if isNull(b.Column(c)) {
			optional++
		}
	}
	return core, optional
}

func isNull(v datatypes.JSON) bool {
	return len(v) == 0 || string(v) == "null"
}
