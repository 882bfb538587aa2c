// Package store records the last-known commit and outcome of every
// deployable unit in a relational status table.
package store

import (
	"context"
	"time"
)

// Outcome codes persisted in the status table.
type Outcome int

const (
	OutcomeFailed  Outcome = -1
	OutcomeQueued  Outcome = 0
	OutcomeSuccess Outcome = 1
	OutcomeSkipped Outcome = 2
)

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeQueued:
		return "queued"
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Record is one row of the status table, keyed by the unit's identity
// ("owner/name" for repositories, "<local>/path" for packages).
type Record struct {
	Repo      string    `db:"repo"`
	Commit    string    `db:"commit_hash"`
	UpdatedAt time.Time `db:"updated_at"`
	Status    Outcome   `db:"status"`
}

// Store is the durable status contract consumed by the deployment layer.
// Upsert inserts an unseen identity or overwrites commit, timestamp and
// outcome for a known one; a nil commit leaves the stored hash untouched
// on update. Writes are last-writer-wins.
type Store interface {
	Upsert(ctx context.Context, repo string, commit *string, status Outcome) error
	Get(ctx context.Context, repo string) (*Record, error)
	ListQueued(ctx context.Context) ([]string, error)
	Close() error
}
