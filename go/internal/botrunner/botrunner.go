// Package botrunner drives bot seats: under the draft's advisory bot
// lease, it repeatedly commits finished rounds and makes bot picks until
// a human is needed or the draft ends. Grounded on the teacher's
// orchestrator lease-guarded worker loop and its RandomStrategy.
package botrunner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/botbehavior"
	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

// EventRecorder is the subset of eventbus.Repository the runner needs.
// Nil-safe: a Runner with no EventRecorder simply skips outbox writes.
type EventRecorder interface {
	InsertEvent(ctx context.Context, draftID uuid.UUID, eventType eventbus.EventType, payload any) error
}

// Notifier is the subset of Broadcaster the runner needs.
type Notifier interface {
	PublishState(draftID uuid.UUID, draft *models.Draft)
}

// Clock abstracts wall-clock reads for testability (clockwork-compatible).
type Clock interface {
	Now() time.Time
}

const (
	leaseMaxAge = 30 * time.Second
	safetyLimit = 100
)

// Runner implements the processBotTurns entry point (spec.md §4.5).
type Runner struct {
	store     store.Store
	notifier  Notifier
	behaviors *botbehavior.Registry
	clock     Clock
	events    EventRecorder
}

// New constructs a Runner.
func New(s store.Store, notifier Notifier, behaviors *botbehavior.Registry, clock Clock) *Runner {
	return &Runner{store: s, notifier: notifier, behaviors: behaviors, clock: clock}
}

// WithEventRecorder attaches an outbox writer so completed rounds and
// draft completion are recorded for the EventBus relay to pick up.
func (r *Runner) WithEventRecorder(events EventRecorder) *Runner {
	r.events = events
	return r
}

func (r *Runner) recordEvent(ctx context.Context, draftID uuid.UUID, eventType eventbus.EventType, payload any) {
	if r.events == nil {
		return
	}
	if err := r.events.InsertEvent(ctx, draftID, eventType, payload); err != nil {
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("failed to record outbox event")
	}
}

// Process is processBotTurns(draftId): called after any successful
// mutation that could have unblocked a bot.
func (r *Runner) Process(ctx context.Context, draftID uuid.UUID) {
	now := r.clock.Now()
	acquired, err := r.store.AcquireBotLease(ctx, draftID, now, leaseMaxAge)
	if err != nil {
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("bot lease acquire failed")
		return
	}
	if !acquired {
		return // another runner holds the lease; it will see the new state
	}
	defer func() {
		if err := r.store.ReleaseBotLease(ctx, draftID); err != nil {
			log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("bot lease release failed")
		}
	}()

	for i := 0; i < safetyLimit; i++ {
		madeProgress, err := r.step(ctx, draftID)
		if err != nil {
			log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("bot runner step failed")
			return
		}
		if !madeProgress {
			return
		}

		// Re-acquire the lease. AcquireBotLease leaves a lease younger than
		// leaseMaxAge untouched, this runner's own included, so this only
		// renews it once it has already gone stale.
		if _, err := r.store.AcquireBotLease(ctx, draftID, r.clock.Now(), leaseMaxAge); err != nil {
			log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("bot lease refresh failed")
		}
	}
	log.Warn().Str("draft_id", draftID.String()).Msg("bot runner hit safety limit")
}

// step performs one unit of work: either commits a fully-selected round,
// or makes one pass of bot picks. It returns madeProgress=false when the
// draft is no longer active or is waiting on a human.
func (r *Runner) step(ctx context.Context, draftID uuid.UUID) (bool, error) {
	draft, err := r.store.LoadDraft(ctx, draftID)
	if err != nil {
		return false, err
	}
	if !draft.Active() {
		return false, nil
	}

	if allSelected(draft) {
		next, err := turnengine.CommitRound(draft, r.clock.Now())
		if err != nil {
			return false, err
		}
		if err := r.store.UpdateDraft(ctx, next, draft.StateVersion); err != nil {
			if err == store.ErrConflict {
				return false, nil // someone else committed; let them notify
			}
			return false, err
		}
		r.notifier.PublishState(draftID, next)
		r.recordEvent(ctx, draftID, eventbus.EventPickMade, map[string]any{"state_version": next.StateVersion})
		if next.Status == models.StatusCompleted {
			r.recordEvent(ctx, draftID, eventbus.EventDraftCompleted, map[string]any{"state_version": next.StateVersion})
		}
		return true, nil
	}

	return r.makeBotPicks(ctx, draft)
}

func (r *Runner) makeBotPicks(ctx context.Context, draft *models.Draft) (bool, error) {
	next := draft.Clone()
	madeAnyPick := false

	for i := range next.Seats {
		seat := &next.Seats[i]
		if !seat.IsBot || seat.PickStatus != models.PickPicking {
			continue
		}
		hand := seat.Hand(next.Status)
		if len(hand) == 0 {
			continue
		}

		behavior := r.behaviors.Get(seat.BotBehaviorID)
		var choice models.Card
		if next.Status == models.StatusLeaderDraft {
			choice = behavior.SelectLeader(seat, hand)
		} else {
			choice = behavior.SelectCard(seat, hand)
		}

		cardID := choice.ID
		seat.SelectedCardID = cardID
		seat.PickStatus = models.PickSelected
		madeAnyPick = true

		if onlyOnePicking(next) {
			now := r.clock.Now()
			next.PhaseState.LastPickerStartedAt = &now
		}
	}

	if !madeAnyPick {
		return false, nil
	}

	if err := r.store.UpdateDraft(ctx, next, draft.StateVersion); err != nil {
		if err == store.ErrConflict {
			return false, nil
		}
		return false, err
	}
	r.notifier.PublishState(draft.ID, next)
	return true, nil
}

func allSelected(draft *models.Draft) bool {
	for _, s := range draft.Seats {
		if s.PickStatus != models.PickSelected {
			return false
		}
	}
	return true
}

func onlyOnePicking(draft *models.Draft) bool {
	count := 0
	for _, s := range draft.Seats {
		if s.PickStatus == models.PickPicking {
			count++
		}
	}
	return count == 1
}
