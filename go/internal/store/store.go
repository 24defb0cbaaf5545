// Package store defines the persistence contract the draft engine runs
// against: row-level storage with optimistic concurrency (state-version
// compare-and-set) and an advisory bot-processing lease. Two
// implementations are provided: Postgres (pgx) for real deployments and
// Memory for tests and single-process demos.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// Sentinel errors. ErrConflict is non-fatal and expected under
// contention; ErrNotFound and ErrUnavailable are surfaced to callers as
// terminal for that request.
var (
	ErrConflict    = errors.New("store: state version conflict")
	ErrNotFound    = errors.New("store: draft not found")
	ErrUnavailable = errors.New("store: storage unavailable")
)

// Store is the persistence contract TurnEngine-driven mutations run
// against.
type Store interface {
	// CreateDraft inserts a brand-new draft (stateVersion=1).
	CreateDraft(ctx context.Context, draft *models.Draft) error

	// LoadDraft returns the draft and its seats as a single consistent
	// snapshot, by internal id.
	LoadDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)

	// LoadDraftByShareID is the only other lookup path the Store exposes.
	LoadDraftByShareID(ctx context.Context, shareID string) (*models.Draft, error)

	// UpdateDraft persists next if and only if the stored row's
	// StateVersion still equals expectedVersion; on success the stored
	// StateVersion becomes expectedVersion+1. Returns ErrConflict
	// otherwise. Seats are replaced wholesale in the same transaction.
	UpdateDraft(ctx context.Context, next *models.Draft, expectedVersion int64) error

	// AcquireBotLease sets BotProcessingSince=now iff it is unset or
	// older than maxAge, atomically. Returns true if acquired.
	AcquireBotLease(ctx context.Context, id uuid.UUID, now time.Time, maxAge time.Duration) (bool, error)

	// ReleaseBotLease clears BotProcessingSince.
	ReleaseBotLease(ctx context.Context, id uuid.UUID) error

	// ListActive returns the ids of every draft in leader_draft or
	// pack_draft, for the TimeoutEnforcer's sweep.
	ListActive(ctx context.Context) ([]uuid.UUID, error)
}
