package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// Memory is an in-process Store backed by a mutex-guarded map. It
// implements the same CAS and lease semantics as Postgres without a
// database, for draftservice/botrunner/enforcer tests and a
// single-process demo deployment.
type Memory struct {
	mu      sync.Mutex
	drafts  map[uuid.UUID]*models.Draft
	byShare map[string]uuid.UUID
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		drafts:  make(map[uuid.UUID]*models.Draft),
		byShare: make(map[string]uuid.UUID),
	}
}

func (m *Memory) CreateDraft(ctx context.Context, draft *models.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.drafts[draft.ID]; exists {
		return ErrConflict
	}
	cp := draft.Clone()
	cp.StateVersion = 1
	m.drafts[cp.ID] = cp
	m.byShare[cp.ShareID] = cp.ID
	return nil
}

func (m *Memory) LoadDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *Memory) LoadDraftByShareID(ctx context.Context, shareID string) (*models.Draft, error) {
	m.mu.Lock()
	id, ok := m.byShare[shareID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.LoadDraft(ctx, id)
}

func (m *Memory) UpdateDraft(ctx context.Context, next *models.Draft, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.drafts[next.ID]
	if !ok {
		return ErrNotFound
	}
	if current.StateVersion != expectedVersion {
		return ErrConflict
	}

	cp := next.Clone()
	cp.StateVersion = expectedVersion + 1
	cp.BotProcessingSince = current.BotProcessingSince // the lease is only changed by Acquire/ReleaseBotLease
	m.drafts[cp.ID] = cp
	m.byShare[cp.ShareID] = cp.ID
	return nil
}

func (m *Memory) AcquireBotLease(ctx context.Context, id uuid.UUID, now time.Time, maxAge time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return false, ErrNotFound
	}
	if d.BotProcessingSince != nil && now.Sub(*d.BotProcessingSince) < maxAge {
		return false, nil
	}
	leaseTime := now
	d.BotProcessingSince = &leaseTime
	return true, nil
}

func (m *Memory) ReleaseBotLease(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return ErrNotFound
	}
	d.BotProcessingSince = nil
	return nil
}

func (m *Memory) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id, d := range m.drafts {
		if d.Active() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
