package briefings

import (
	"errors"
	"fmt"
)

// ErrSnapshotNotFound is returned when the snapshot id is unknown.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// PreconditionError means the snapshot lacks context generation cannot run
// without. It is never retried.
type PreconditionError struct {
	SnapshotID string
	Field      string
	Reason     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("snapshot %s: %s %s", e.SnapshotID, e.Field, e.Reason)
}

// PersistenceError means fetched data could not be written. The Result
// returned alongside it still carries that data.
type PersistenceError struct {
	SnapshotID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist briefing %s: %v", e.SnapshotID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
