package models

import (
	"time"
)

// DiscoveredEvent is a deduplicated event in the catalogue. Rows are keyed by
// EventHash and soft-deleted through IsActive once the event has ended.
type DiscoveredEvent struct {
	ID                 uint    `gorm:"primaryKey"`
	EventHash          string  `gorm:"type:varchar(32);uniqueIndex;not null"`
	Title              string  `gorm:"not null"`
	Venue              string  `gorm:"not null;default:''"`
	Address            string  `gorm:"not null;default:''"`
	City               string  `gorm:"not null;default:'';index:idx_discovered_events_location"`
	State              string  `gorm:"not null;default:'';index:idx_discovered_events_location"`
	VenueID            *string `gorm:"type:varchar(64)"`
	StartDate          string  `gorm:"type:varchar(10);not null;index"`
	EndDate            string  `gorm:"type:varchar(10);not null"`
	StartTime          string  `gorm:"type:varchar(5);not null;default:''"`
	EndTime            string  `gorm:"type:varchar(5);not null;default:''"`
	Timezone           string  `gorm:"not null;default:''"`
	Category           string  `gorm:"not null;default:'other'"`
	ExpectedAttendance string  `gorm:"not null;default:'medium'"`
	Description        string  `gorm:"type:text;not null;default:''"`
	URL                string  `gorm:"not null;default:''"`
	Source             string  `gorm:"not null;default:''"`
	IsActive           bool    `gorm:"not null;default:true;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
