package events

import (
	"context"
	"testing"
	"time"

	"github.com/jimdaga/localbrief/internal/database/testutil"
	"github.com/jimdaga/localbrief/internal/models"
)

func TestEndsAt(t *testing.T) {
	chicago, _ := time.LoadLocation("America/Chicago")

	withTime := models.DiscoveredEvent{StartDate: "2026-10-17", EndDate: "2026-10-17", EndTime: "22:30", Timezone: "America/Chicago"}
	got, ok := EndsAt(withTime)
	if !ok || !got.Equal(time.Date(2026, 10, 17, 22, 30, 0, 0, chicago)) {
		t.Errorf("EndsAt with end time = %v, %v", got, ok)
	}

	allDay := models.DiscoveredEvent{StartDate: "2026-10-17", Timezone: "America/Chicago"}
	got, ok = EndsAt(allDay)
	if !ok || !got.Equal(time.Date(2026, 10, 17, 23, 59, 59, 0, chicago)) {
		t.Errorf("EndsAt without end time = %v, %v", got, ok)
	}

	badZone := models.DiscoveredEvent{EndDate: "2026-10-17", EndTime: "10:00", Timezone: "Mars/Olympus"}
	got, ok = EndsAt(badZone)
	if !ok || !got.Equal(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unknown timezone should fall back to UTC, got %v", got)
	}

	overnight := models.DiscoveredEvent{StartDate: "2026-10-17", EndDate: "2026-10-17", StartTime: "22:00", EndTime: "02:00", Timezone: "America/Chicago"}
	got, ok = EndsAt(overnight)
	if !ok || !got.Equal(time.Date(2026, 10, 18, 2, 0, 0, 0, chicago)) {
		t.Errorf("overnight event should end the next morning, got %v", got)
	}
	nightly := time.Date(2026, 10, 17, 3, 15, 0, 0, chicago)
	if got.Before(nightly) {
		t.Errorf("overnight event would be deactivated before it starts (ends %v)", got)
	}

	normalized := Normalize(map[string]any{"title": "Late Set", "venue": "Blue Room", "date": "2026-10-17", "time": "10 pm - 2 am"}, testLoc)
	got, ok = EndsAt(models.DiscoveredEvent{
		StartDate: normalized.StartDate,
		EndDate:   normalized.EndDate,
		StartTime: normalized.StartTime,
		EndTime:   normalized.EndTime,
		Timezone:  "America/Chicago",
	})
	if !ok || !got.Equal(time.Date(2026, 10, 18, 2, 0, 0, 0, chicago)) {
		t.Errorf("normalized overnight range ends %v, want 2026-10-18 02:00", got)
	}

	if _, ok := EndsAt(models.DiscoveredEvent{}); ok {
		t.Error("row without dates must not report an end")
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(testutil.Tx(t, testutil.DB(t)))
	ctx := context.Background()

	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	ev := validEvent()
	ev.StartDate, ev.EndDate = "2026-10-17", "2026-10-17"
	batch := []Prepared{{Event: ev, Hash: Hash(ev)}}

	if _, err := store.Upsert(ctx, testLoc, "stub", batch); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	later := base.Add(time.Hour)
	store.now = func() time.Time { return later }
	if _, err := store.Upsert(ctx, testLoc, "stub", batch); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	window := Window{City: "frisco", State: "tx", From: "2026-10-17", To: "2026-10-18"}
	rows, err := store.ListActive(ctx, window)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row after two upserts, got %d", len(rows))
	}
	if !rows[0].UpdatedAt.Equal(later) {
		t.Errorf("updated_at = %v, want %v", rows[0].UpdatedAt, later)
	}
	if !rows[0].CreatedAt.Equal(base) {
		t.Errorf("created_at changed on conflict: %v", rows[0].CreatedAt)
	}

	sum, err := store.Summarize(ctx, window)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Count != 1 || !sum.LastUpdated.Equal(later) {
		t.Errorf("summary = %+v", sum)
	}

	// 23:00 Chicago on the 17th: still running.
	n, err := store.DeactivateExpired(ctx, time.Date(2026, 10, 18, 4, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("early deactivation: n=%d err=%v", n, err)
	}

	n, err = store.DeactivateExpired(ctx, time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC))
	if err != nil || n != 1 {
		t.Fatalf("deactivation: n=%d err=%v", n, err)
	}

	rows, err = store.ListActive(ctx, window)
	if err != nil || len(rows) != 0 {
		t.Errorf("expected no active rows, got %d (%v)", len(rows), err)
	}
}
