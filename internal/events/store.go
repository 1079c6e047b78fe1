package events

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jimdaga/localbrief/internal/models"
)

// Store persists the event catalogue in discovered_events.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Upsert inserts new events and bumps updated_at on ones already known by hash.
func (s *Store) Upsert(ctx context.Context, loc Location, source string, events []Prepared) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	rows := make([]models.DiscoveredEvent, 0, len(events))
	for _, p := range events {
		rows = append(rows, models.DiscoveredEvent{
			EventHash:          p.Hash,
			Title:              p.Title,
			Venue:              p.Venue,
			Address:            p.Address,
			City:               firstNonEmpty(p.City, loc.City),
			State:              firstNonEmpty(p.State, loc.State),
			StartDate:          p.StartDate,
			EndDate:            firstNonEmpty(p.EndDate, p.StartDate),
			StartTime:          p.StartTime,
			EndTime:            p.EndTime,
			Timezone:           loc.Timezone,
			Category:           string(p.Category),
			ExpectedAttendance: string(p.Impact),
			Description:        p.Description,
			URL:                p.URL,
			Source:             source,
			IsActive:           true,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": now}),
		}).
		Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Window selects active events for a place overlapping [From, To].
type Window struct {
	City  string
	State string
	From  string // YYYY-MM-DD
	To    string
}

func (w Window) scope(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).
		Where("LOWER(city) = LOWER(?) AND LOWER(state) = LOWER(?)", w.City, w.State).
		Where("start_date <= ? AND end_date >= ?", w.To, w.From)
}

// ListActive returns the active events in the window ordered by start.
func (s *Store) ListActive(ctx context.Context, w Window) ([]models.DiscoveredEvent, error) {
	var rows []models.DiscoveredEvent
	err := s.db.WithContext(ctx).
		Scopes(w.scope).
		Order("start_date ASC, start_time ASC, title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return rows, nil
}

// Summary describes what the catalogue holds for a window.
type Summary struct {
	Count       int64
	LastUpdated time.Time
}

// Summarize counts active events in the window and reports the newest update.
func (s *Store) Summarize(ctx context.Context, w Window) (Summary, error) {
	var row struct {
		Count       int64
		LastUpdated *time.Time
	}
	err := s.db.WithContext(ctx).
		Model(&models.DiscoveredEvent{}).
		Scopes(w.scope).
		Select("COUNT(*) AS count, MAX(updated_at) AS last_updated").
		Scan(&row).Error
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize events: %w", err)
	}

	sum := Summary{Count: row.Count}
	if row.LastUpdated != nil {
		sum.LastUpdated = *row.LastUpdated
	}
	return sum, nil
}

// DeactivateExpired flips is_active off for events whose end has passed in
// their own timezone. Rows are never deleted.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	// Any row ending after tomorrow (UTC) cannot have ended yet in any timezone.
	horizon := now.UTC().AddDate(0, 0, 1).Format(dateLayout)

	var candidates []models.DiscoveredEvent
	err := s.db.WithContext(ctx).
		Select("id", "end_date", "end_time", "start_date", "start_time", "timezone").
		Where("is_active = ? AND end_date <= ?", true, horizon).
		Find(&candidates).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load expiring events: %w", err)
	}

	var ids []uint
	for _, row := range candidates {
		if end, ok := EndsAt(row); ok && end.Before(now) {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.DiscoveredEvent{}).
		Where("id IN ?", ids).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EndsAt returns the instant an event ends: its end date and time in the
// event's timezone, or the end of that day when no end time is known. An end
// time earlier than the start time on the same date belongs to the next day.
func EndsAt(row models.DiscoveredEvent) (time.Time, bool) {
	tz, err := time.LoadLocation(row.Timezone)
	if err != nil || row.Timezone == "" {
		tz = time.UTC
	}

	date := firstNonEmpty(row.EndDate, row.StartDate)
	day, err := time.ParseInLocation(dateLayout, date, tz)
	if err != nil {
		return time.Time{}, false
	}

	if row.EndTime != "" {
		if t, err := time.Parse("15:04", row.EndTime); err == nil {
			// Same-day rows whose end precedes the start run past midnight.
			if (row.EndDate == "" || row.EndDate == row.StartDate) && crossesMidnight(row.StartTime, row.EndTime) {
				day = day.AddDate(0, 0, 1)
			}
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, tz), true
		}
	}
	return day.AddDate(0, 0, 1).Add(-time.Second), true
}
