// Package repository holds the service's in-memory state and reads and
// writes race-profile corpora on disk.
package repository

import (
	"context"

	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

// Entry is one race in the ranked ratings index.
type Entry struct {
	Rank          int
	RaceID        string
	OverallScore  int
	ComputedScore int
	Tier          rating.Tier
	BaseTier      rating.Tier
	State         rating.OverrideState
}

// Store provides read/write access to the ranked ratings.
type Store interface {
	// Upsert sets the classification of one race. It returns false when the
	// stored entry is already identical.
	Upsert(ctx context.Context, c rating.Classification) (bool, error)

	// Replace swaps the whole index for cs, typically the output of a
	// completed audit.
	Replace(ctx context.Context, cs []rating.Classification) error

	// Rank returns the current rank of a race.
	// Returns ErrNotFound if the race is unknown.
	Rank(ctx context.Context, raceID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc, race id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// TierCounts returns how many races sit in each effective tier.
	TierCounts(ctx context.Context) map[rating.Tier]int

	// Count returns the number of races in the index.
	Count(ctx context.Context) int
}

// RunStore keeps audit runs by id.
type RunStore interface {
	Create(ctx context.Context, run model.AuditRun) error
	// Update applies fn to the stored run under the store's lock.
	Update(ctx context.Context, id string, fn func(*model.AuditRun)) (model.AuditRun, error)
	Get(ctx context.Context, id string) (model.AuditRun, error)
	// Latest returns the most recently finished successful run.
	Latest(ctx context.Context) (model.AuditRun, error)
	// Delete drops a run, typically one rejected by the queue.
	Delete(ctx context.Context, id string)
	Count(ctx context.Context) int
}
