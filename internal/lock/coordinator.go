package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RowStore is the persistence the coordinator needs. Implementations must
// enforce a unique key so that concurrent placeholder inserts race safely.
type RowStore interface {
	// LoadRow returns nil, nil when no row exists for key.
	LoadRow(ctx context.Context, key string) (*Row, error)
	// InsertPlaceholder inserts an all-NULL row. It returns false, nil when
	// another writer already holds the key.
	InsertPlaceholder(ctx context.Context, key string, now time.Time) (bool, error)
	// ReclaimPlaceholder bumps an abandoned placeholder's updated_at from prev
	// to now. It returns false, nil when prev no longer matches.
	ReclaimPlaceholder(ctx context.Context, key string, prev, now time.Time) (bool, error)
}

// Outcome is what a claim attempt resolved to.
type Outcome string

const (
	// OutcomeClaimed means this caller inserted the placeholder and owns generation.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeReclaimed means this caller took over an abandoned placeholder.
	OutcomeReclaimed Outcome = "reclaimed"
	// OutcomeInProgress means someone else is generating; poll again later.
	OutcomeInProgress Outcome = "in_progress"
	// OutcomeExisting means a finished row exists; the caller applies staleness.
	OutcomeExisting Outcome = "existing"
)

// Owns reports whether the outcome grants generation rights.
func (o Outcome) Owns() bool {
	return o == OutcomeClaimed || o == OutcomeReclaimed
}

// Claim is the result of Coordinator.Claim.
type Claim struct {
	Outcome Outcome
	State   State
	Row     *Row
}

// Coordinator implements the row-as-mutex protocol.
type Coordinator struct {
	store        RowStore
	abandonAfter time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewCoordinator creates a coordinator. abandonAfter <= 0 uses DefaultAbandonAfter.
func NewCoordinator(store RowStore, abandonAfter time.Duration, logger *slog.Logger) *Coordinator {
	if abandonAfter <= 0 {
		abandonAfter = DefaultAbandonAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:        store,
		abandonAfter: abandonAfter,
		now:          time.Now,
		logger:       logger.With("component", "generation_lock"),
	}
}

// WithClock overrides the time source.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// AbandonAfter returns the configured abandonment threshold.
func (c *Coordinator) AbandonAfter() time.Duration {
	return c.abandonAfter
}

// Classify applies the pure classifier with this coordinator's clock and threshold.
func (c *Coordinator) Classify(row *Row) State {
	return Classify(row, c.now(), c.abandonAfter)
}

// Claim decides whether the caller may generate key. current is the row the
// caller already loaded (nil if none). A lost insert race is not an error: the
// conflicting insert is a no-op and the winner's row decides the outcome.
func (c *Coordinator) Claim(ctx context.Context, key string, current *Row) (Claim, error) {
	row := current
	// A lost insert or reclaim race re-reads the row and classifies again.
	for attempt := 0; attempt < 3; attempt++ {
		now := c.now()
		state := Classify(row, now, c.abandonAfter)

		switch state {
		case StateEmpty:
			inserted, err := c.store.InsertPlaceholder(ctx, key, now)
			if err != nil {
				return Claim{}, fmt.Errorf("insert placeholder: %w", err)
			}
			if inserted {
				return Claim{Outcome: OutcomeClaimed, State: state, Row: &Row{Key: key, UpdatedAt: now, CoreMissing: 4}}, nil
			}
			c.logger.Debug("Placeholder insert lost race", "snapshot_id", key)

		case StateAbandoned:
			ok, err := c.store.ReclaimPlaceholder(ctx, key, row.UpdatedAt, now)
			if err != nil {
				return Claim{}, fmt.Errorf("reclaim placeholder: %w", err)
			}
			if ok {
				c.logger.Warn("Reclaimed abandoned placeholder",
					"snapshot_id", key,
					"age", now.Sub(row.UpdatedAt).String(),
				)
				reclaimed := *row
				reclaimed.UpdatedAt = now
				return Claim{Outcome: OutcomeReclaimed, State: state, Row: &reclaimed}, nil
			}
			c.logger.Debug("Placeholder reclaim lost race", "snapshot_id", key)

		case StateInFlight:
			return Claim{Outcome: OutcomeInProgress, State: state, Row: row}, nil

		default:
			return Claim{Outcome: OutcomeExisting, State: state, Row: row}, nil
		}

		reloaded, err := c.store.LoadRow(ctx, key)
		if err != nil {
			return Claim{}, fmt.Errorf("reload row: %w", err)
		}
		if reloaded == nil {
			// Winner vanished between insert and read; report contention rather than spin.
			return Claim{Outcome: OutcomeInProgress, State: StateInFlight}, nil
		}
		row = reloaded
	}

	return Claim{Outcome: OutcomeInProgress, State: Classify(row, c.now(), c.abandonAfter), Row: row}, nil
}
