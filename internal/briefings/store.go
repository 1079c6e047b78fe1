package briefings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jimdaga/localbrief/internal/lock"
	"github.com/jimdaga/localbrief/internal/models"
)

// Store reads and writes snapshots and briefing rows. It is the lock.RowStore
// for cross-process generation.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Postgres keeps microseconds; truncating keeps compare-and-set reads equal to writes.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// CreateSnapshot inserts a snapshot.
func (s *Store) CreateSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads a snapshot by id.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snap, nil
}

// GetBriefing loads the briefing row for a snapshot, nil when none exists.
func (s *Store) GetBriefing(ctx context.Context, snapshotID string) (*models.Briefing, error) {
	var b models.Briefing
	err := s.db.WithContext(ctx).Where("snapshot_id = ?", snapshotID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load briefing: %w", err)
	}
	return &b, nil
}

// LoadRow implements lock.RowStore.
func (s *Store) LoadRow(ctx context.Context, key string) (*lock.Row, error) {
	b, err := s.GetBriefing(ctx, key)
	if err != nil || b == nil {
		return nil, err
	}
	return rowOf(b), nil
}

// InsertPlaceholder implements lock.RowStore. A unique-key conflict means
// another writer won and is reported as false, nil.
func (s *Store) InsertPlaceholder(ctx context.Context, key string, now time.Time) (bool, error) {
	now = dbTime(now)
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_id"}},
			DoNothing: true,
		}).
		Create(&models.Briefing{SnapshotID: key, CreatedAt: now, UpdatedAt: now})
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert placeholder: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ReclaimPlaceholder implements lock.RowStore with a compare-and-set on updated_at.
func (s *Store) ReclaimPlaceholder(ctx context.Context, key string, prev, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Briefing{}).
		Where("snapshot_id = ? AND updated_at = ?", key, dbTime(prev)).
		UpdateColumn("updated_at", dbTime(now))
	if result.Error != nil {
		return false, fmt.Errorf("failed to reclaim placeholder: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SaveFields writes the given columns and bumps updated_at in one statement.
// The row is created if it vanished since the claim.
func (s *Store) SaveFields(ctx context.Context, snapshotID string, fields map[string]datatypes.JSON, now time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	now = dbTime(now)

	row := models.Briefing{SnapshotID: snapshotID, CreatedAt: now, UpdatedAt: now}
	columns := make([]string, 0, len(fields)+1)
	for name, value := range fields {
		row.SetColumn(name, value)
		columns = append(columns, name)
	}
	sort.Strings(columns)
	columns = append(columns, "updated_at")

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save briefing fields: %w", err)
	}
	return nil
}

func rowOf(b *models.Briefing) *lock.Row {
	if b == nil {
		return nil
	}
	core, optional := b.MissingCounts()
	return &lock.Row{
		Key:             b.SnapshotID,
		UpdatedAt:       b.UpdatedAt,
		CoreMissing:     core,
		OptionalMissing: optional,
	}
}
