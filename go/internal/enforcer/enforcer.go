// Package enforcer implements the periodic sweep that forces random
// picks when a draft's round timer or last-picker timer has elapsed.
package enforcer

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

// EventRecorder is the subset of eventbus.Repository the Enforcer
// needs. Nil-safe: an Enforcer with no EventRecorder skips outbox writes.
type EventRecorder interface {
	InsertEvent(ctx context.Context, draftID uuid.UUID, eventType eventbus.EventType, payload any) error
}

// Notifier is the subset of Broadcaster the Enforcer needs: publish a
// new state after a forced commit.
type Notifier interface {
	PublishState(draftID uuid.UUID, draft *models.Draft)
}

// AfterCommit is invoked once a forced commit lands, so the caller can
// kick the BotRunner the same way a human mutation would.
type AfterCommit func(ctx context.Context, draftID uuid.UUID)

// Enforcer periodically sweeps every active draft, forcing random picks
// for any seat whose round or last-picker timer has elapsed.
type Enforcer struct {
	store       store.Store
	notifier    Notifier
	afterCommit AfterCommit
	clock       clockwork.Clock
	workers     int
	events      EventRecorder

	retryLimit int
}

// WithEventRecorder attaches an outbox writer so forced commits are
// recorded for the EventBus relay to pick up.
func (e *Enforcer) WithEventRecorder(events EventRecorder) *Enforcer {
	e.events = events
	return e
}

// New constructs an Enforcer. workers bounds the number of drafts swept
// concurrently in one Tick, mirroring the teacher orchestrator's
// fixed-size worker pool so one slow Store call can't starve the rest.
func New(s store.Store, notifier Notifier, afterCommit AfterCommit, clock clockwork.Clock, workers int) *Enforcer {
	if workers < 1 {
		workers = 1
	}
	return &Enforcer{
		store:       s,
		notifier:    notifier,
		afterCommit: afterCommit,
		clock:       clock,
		workers:     workers,
		retryLimit:  3,
	}
}

// Run loops Tick on the given period until ctx is cancelled.
func (e *Enforcer) Run(ctx context.Context, period time.Duration) error {
	ticker := e.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := e.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("enforcer tick failed")
			}
		}
	}
}

// Tick sweeps every active draft once, bounded by e.workers concurrent
// goroutines via errgroup.
func (e *Enforcer) Tick(ctx context.Context) error {
	ids, err := e.store.ListActive(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, e.workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if err := e.sweepOne(gctx, id); err != nil {
				log.Warn().Err(err).Str("draft_id", id.String()).Msg("sweep failed")
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Enforcer) sweepOne(ctx context.Context, id uuid.UUID) error {
	for attempt := 0; attempt < e.retryLimit; attempt++ {
		draft, err := e.store.LoadDraft(ctx, id)
		if err != nil {
			return err
		}
		if !draft.Active() || draft.Paused {
			return nil
		}

		now := e.clock.Now()
		expired, pending := e.evaluate(draft, now)
		if !expired {
			if pending != nil {
				return e.persistLastPickerStart(ctx, draft, now)
			}
			return nil
		}

		next := draft.Clone()
		rng := rand.New(rand.NewSource(now.UnixNano()))
		for i := range next.Seats {
			seat := &next.Seats[i]
			if seat.PickStatus == models.PickPicking {
				if err := turnengine.ForceRandom(next.Status, seat, rng); err != nil {
					return err
				}
			}
		}

		committed, err := turnengine.CommitRound(next, now)
		if err != nil {
			return err
		}

		if err := e.store.UpdateDraft(ctx, committed, draft.StateVersion); err != nil {
			if err == store.ErrConflict {
				continue // another worker/CAS raced us; retry from a fresh read
			}
			return err
		}

		e.notifier.PublishState(id, committed)
		if e.events != nil {
			if err := e.events.InsertEvent(ctx, id, eventbus.EventPickMade, map[string]any{"state_version": committed.StateVersion, "forced": true}); err != nil {
				log.Warn().Err(err).Str("draft_id", id.String()).Msg("failed to record forced-pick outbox event")
			}
		}
		if e.afterCommit != nil {
			e.afterCommit(ctx, id)
		}
		return nil
	}
	return nil
}

// evaluate reports whether a forced commit is due, and otherwise
// whether a single pending seat was just observed (so its
// lastPickerStartedAt can be recorded).
func (e *Enforcer) evaluate(draft *models.Draft, now time.Time) (expired bool, lastPicker *models.Seat) {
	elapsed := now.Sub(*draft.PickStartedAt).Seconds() - draft.PausedAccumulatedSeconds

	roundExpired := draft.Settings.RoundTimerEnabled &&
		elapsed >= float64(draft.Settings.RoundTimerSeconds)

	var pending []*models.Seat
	for i := range draft.Seats {
		if draft.Seats[i].PickStatus == models.PickPicking {
			pending = append(pending, &draft.Seats[i])
		}
	}

	lastPickerExpired := false
	if len(pending) == 1 {
		if draft.PhaseState.LastPickerStartedAt == nil {
			// Recorded the first time exactly one seat remains picking,
			// regardless of whether the timer enforces anything — clients
			// reconcile off this timestamp too.
			return roundExpired, pending[0]
		}
		if draft.Settings.LastPickerTimerEnabled {
			since := now.Sub(*draft.PhaseState.LastPickerStartedAt).Seconds()
			lastPickerExpired = since >= float64(draft.Settings.LastPickerTimerSeconds)
		}
	}

	return roundExpired || lastPickerExpired, nil
}

// persistLastPickerStart records the moment exactly one seat remains
// picking, so the enforcer and any client reconciling state agree on
// when the last-picker timer began. The BotRunner also sets this field
// when a bot pick leaves one seat picking; this function leaves an
// already-set value unchanged.
func (e *Enforcer) persistLastPickerStart(ctx context.Context, draft *models.Draft, now time.Time) error {
	if draft.PhaseState.LastPickerStartedAt != nil {
		return nil
	}
	next := draft.Clone()
	next.PhaseState.LastPickerStartedAt = &now
	if err := e.store.UpdateDraft(ctx, next, draft.StateVersion); err != nil {
		if err == store.ErrConflict {
			return nil
		}
		return err
	}
	return nil
}
