package models

import (
	"time"
)

// Snapshot is an immutable location and time context. Briefings reference it by ID.
type Snapshot struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	City      string    `gorm:"not null;default:''"`
	State     string    `gorm:"not null;default:''"`
	Latitude  float64   `gorm:"not null;default:0"`
	Longitude float64   `gorm:"not null;default:0"`
	Timezone  string    `gorm:"not null;default:''"` // IANA name
	LocalDate string    `gorm:"type:varchar(10);not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

// Location resolves the snapshot's timezone.
func (s *Snapshot) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}
