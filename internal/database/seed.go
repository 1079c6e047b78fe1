package database

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jimdaga/localbrief/internal/models"
)

// DevSnapshotID is the fixed id of the development snapshot.
const DevSnapshotID = "dev-frisco-tx"

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existing models.Snapshot
	if err := db.Where("id = ?", DevSnapshotID).First(&existing).Error; err == nil {
		slog.Info("Seed data already exists, skipping", "snapshot_id", DevSnapshotID)
		return nil
	}

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return err
	}
	now := time.Now()

	snapshot := models.Snapshot{
		ID:        DevSnapshotID,
		City:      "Frisco",
		State:     "TX",
		Latitude:  33.1507,
		Longitude: -96.8236,
		Timezone:  loc.String(),
		LocalDate: now.In(loc).Format(time.DateOnly),
		CreatedAt: now.UTC(),
	}
	if err := db.Create(&snapshot).Error; err != nil {
		return err
	}

	slog.Info("Seeded dev data: 1 snapshot", "snapshot_id", DevSnapshotID)
	return nil
}
