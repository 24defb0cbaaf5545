// Package draftservice is the DraftService facade spec.md §4.7 describes:
// the only entry point clients (via internal/httpapi) or tests drive.
// Every method loads a draft, applies a TurnEngine operation, retries the
// Store's compare-and-set on conflict, publishes the result, and kicks
// the BotRunner so a human's move can immediately unblock a bot's.
package draftservice

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"strconv"
	"time"

	mathrand "math/rand"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/botbehavior"
	"github.com/harlowbrent/boosterdraft/go/internal/botrunner"
	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/eventbus"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

// EventRecorder is the subset of eventbus.Repository the Service needs.
// Nil-safe: a Service with no EventRecorder skips outbox writes.
type EventRecorder interface {
	InsertEvent(ctx context.Context, draftID uuid.UUID, eventType eventbus.EventType, payload any) error
}

// casRetryLimit bounds how many times an entry point re-reads and
// re-applies its operation after losing a compare-and-set race.
const casRetryLimit = 5

// Service wires together the Store, PackGenerator, BotRunner and
// Broadcaster behind the operations spec.md §4.7 names.
type Service struct {
	store     store.Store
	packs     packgen.Generator
	behaviors *botbehavior.Registry
	hub       *broadcast.Hub
	bots      *botrunner.Runner
	clock     clockwork.Clock
	events    EventRecorder
}

// New constructs a Service.
func New(s store.Store, packs packgen.Generator, behaviors *botbehavior.Registry, hub *broadcast.Hub, bots *botrunner.Runner, clock clockwork.Clock) *Service {
	return &Service{store: s, packs: packs, behaviors: behaviors, hub: hub, bots: bots, clock: clock}
}

// WithEventRecorder attaches an outbox writer so draft lifecycle
// transitions (start/pause/resume/cancel) are recorded for the
// EventBus relay to pick up.
func (s *Service) WithEventRecorder(events EventRecorder) *Service {
	s.events = events
	return s
}

func (s *Service) recordEvent(ctx context.Context, draftID uuid.UUID, eventType eventbus.EventType, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.InsertEvent(ctx, draftID, eventType, payload); err != nil {
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("failed to record outbox event")
	}
}

// CreateParams is the body of POST /draft.
type CreateParams struct {
	SetCode                string
	MaxSeats               int
	PackSize               int
	RoundTimerEnabled      *bool
	RoundTimerSeconds      *int
	LastPickerTimerEnabled *bool
	LastPickerTimerSeconds *int
}

// Create constructs a new waiting draft hosted by principal, with
// principal already seated (spec.md §4.7 implies the host is always a
// player; the host seat is created alongside the draft itself).
func (s *Service) Create(ctx context.Context, params CreateParams, principal string) (*models.Draft, error) {
	settings := models.DefaultSettings()
	if params.PackSize > 0 {
		settings.PackSize = params.PackSize
	}
	if params.RoundTimerEnabled != nil {
		settings.RoundTimerEnabled = *params.RoundTimerEnabled
	}
	if params.RoundTimerSeconds != nil {
		settings.RoundTimerSeconds = *params.RoundTimerSeconds
	}
	if params.LastPickerTimerEnabled != nil {
		settings.LastPickerTimerEnabled = *params.LastPickerTimerEnabled
	}
	if params.LastPickerTimerSeconds != nil {
		settings.LastPickerTimerSeconds = *params.LastPickerTimerSeconds
	}

	maxSeats := params.MaxSeats
	if maxSeats < 2 {
		maxSeats = 8
	}

	hostSeatID := uuid.New()
	now := s.clock.Now()
	draft := &models.Draft{
		ID:           uuid.New(),
		ShareID:      newShareID(),
		HostSeatID:   hostSeatID,
		SetCode:      params.SetCode,
		MaxSeats:     maxSeats,
		Status:       models.StatusWaiting,
		Settings:     settings,
		StateVersion: 1,
		CreatedAt:    now,
		Seats: []models.Seat{{
			SeatID:     hostSeatID,
			SeatNumber: 1,
			Principal:  principal,
			PickStatus: models.PickIdle,
		}},
	}

	if err := s.store.CreateDraft(ctx, draft); err != nil {
		return nil, wrapStoreErr(err)
	}
	return draft, nil
}

// Join seats principal into shareId's draft.
func (s *Service) Join(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	return s.mutate(ctx, shareID, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.JoinSeat(d, principal)
	})
}

// Leave removes principal's seat.
func (s *Service) Leave(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	return s.mutate(ctx, shareID, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.LeaveSeat(d, principal)
	})
}

// AddBot is host-only: it seats a new bot bound to a fresh PowerTable
// behavior instance.
func (s *Service) AddBot(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	return s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		ordinal := 1
		for _, seat := range d.Seats {
			if seat.IsBot {
				ordinal++
			}
		}
		behaviorID := "bot-" + strconv.Itoa(ordinal) + "-" + d.ID.String()[:8]
		s.behaviors.Get(behaviorID) // pre-warm so Process never sees an unbound id
		return turnengine.AddBot(d, ordinal, behaviorID)
	})
}

// Randomize is host-only: shuffles seatNumber assignment.
func (s *Service) Randomize(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	return s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		rng := mathrand.New(mathrand.NewSource(s.clock.Now().UnixNano()))
		return turnengine.RandomizeSeats(d, rng)
	})
}

// UpdateSettings is host-only, waiting-only.
func (s *Service) UpdateSettings(ctx context.Context, shareID, principal string, patch turnengine.SettingsPatch) (*models.Draft, error) {
	return s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.UpdateSettings(d, patch)
	})
}

// Start is host-only: generates packs up front and transitions to
// leader_draft.
func (s *Service) Start(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	next, err := s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		seed := s.clock.Now().UnixNano()
		result, err := s.packs.Generate(d.SetCode, len(d.Seats), d.Settings.PackSize, seed)
		if err != nil {
			return nil, newError(CodeStateChanged, err.Error())
		}
		return turnengine.Start(d, s.clock.Now(), seed, result)
	})
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, next.ID, eventbus.EventDraftStarted, map[string]any{"seat_count": len(next.Seats)})
	return next, nil
}

// Select is seat-owner-only.
func (s *Service) Select(ctx context.Context, shareID, principal string, cardID *string) (*models.Draft, error) {
	return s.mutate(ctx, shareID, func(d *models.Draft) (*models.Draft, error) {
		owned := d.SeatByPrincipal(principal)
		if owned == nil {
			return nil, newError(CodeNotSeatOwner, "principal does not hold a seat in this draft")
		}
		return turnengine.Select(d, owned.SeatID, cardID)
	})
}

// Pause is host-only.
func (s *Service) Pause(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	next, err := s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.Pause(d, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, next.ID, eventbus.EventDraftPaused, map[string]any{"state_version": next.StateVersion})
	return next, nil
}

// Resume is host-only.
func (s *Service) Resume(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	next, err := s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.Resume(d, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, next.ID, eventbus.EventDraftResumed, map[string]any{"state_version": next.StateVersion})
	return next, nil
}

// Cancel is host-only.
func (s *Service) Cancel(ctx context.Context, shareID, principal string) (*models.Draft, error) {
	draft, err := s.mutateHostOnly(ctx, shareID, principal, func(d *models.Draft) (*models.Draft, error) {
		return turnengine.Cancel(d, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.hub.PublishDeleted(draft.ID)
	s.recordEvent(ctx, draft.ID, eventbus.EventDraftCancelled, map[string]any{"state_version": draft.StateVersion})
	return draft, nil
}

// StateView is what GetState returns: the public projection plus, when
// the caller owns a seat, their own hidden hand.
type StateView struct {
	Public *broadcast.PublicState
	Self   *models.Seat
}

// Resolve maps a public shareId to the Store's internal draft id, so
// callers (the WebSocket upgrade handler) can subscribe to the
// Broadcaster, which is keyed by internal id.
func (s *Service) Resolve(ctx context.Context, shareID string) (uuid.UUID, error) {
	draft, err := s.store.LoadDraftByShareID(ctx, shareID)
	if err != nil {
		return uuid.Nil, wrapStoreErr(err)
	}
	return draft.ID, nil
}

// GetState returns shareId's public state plus the caller's private hand
// if principal owns a seat (spec.md §4.7).
func (s *Service) GetState(ctx context.Context, shareID, principal string) (*StateView, error) {
	draft, err := s.store.LoadDraftByShareID(ctx, shareID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return ViewFor(draft, principal), nil
}

// ViewFor projects draft into the public-state-plus-own-hand shape
// every client-facing response uses, so a seat's hidden hand is never
// serialized to anyone but its owner.
func ViewFor(draft *models.Draft, principal string) *StateView {
	view := &StateView{Public: broadcast.NewPublicState(draft)}
	if principal != "" {
		if seat := draft.SeatByPrincipal(principal); seat != nil {
			cp := seat.Clone()
			view.Self = &cp
		}
	}
	return view
}

// PollForChange blocks (bounded by timeout) until shareId's stateVersion
// exceeds sinceVersion, or returns immediately if it already has.
func (s *Service) PollForChange(ctx context.Context, shareID string, sinceVersion int64, timeout time.Duration) (*StateView, error) {
	deadline := s.clock.Now().Add(timeout)
	for {
		view, err := s.GetState(ctx, shareID, "")
		if err != nil {
			return nil, err
		}
		if view.Public.StateVersion > sinceVersion {
			return view, nil
		}
		if s.clock.Now().After(deadline) {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return nil, newError(CodeStorageUnavailable, ctx.Err().Error())
		case <-s.clock.After(250 * time.Millisecond):
		}
	}
}

// mutateHostOnly checks host ownership before delegating to mutate.
func (s *Service) mutateHostOnly(ctx context.Context, shareID, principal string, op func(*models.Draft) (*models.Draft, error)) (*models.Draft, error) {
	return s.mutate(ctx, shareID, func(d *models.Draft) (*models.Draft, error) {
		if !d.IsHost(principal) {
			return nil, newError(CodeNotHost, "only the host may perform this action")
		}
		return op(d)
	})
}

// mutate is the load -> TurnEngine op -> CAS-retry -> publish -> kick
// BotRunner pipeline every entry point funnels through.
func (s *Service) mutate(ctx context.Context, shareID string, op func(*models.Draft) (*models.Draft, error)) (*models.Draft, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		draft, err := s.store.LoadDraftByShareID(ctx, shareID)
		if err != nil {
			return nil, wrapStoreErr(err)
		}

		next, err := op(draft)
		if err != nil {
			if de, ok := err.(*Error); ok {
				return nil, de
			}
			return nil, fromEngine(err)
		}

		if err := s.store.UpdateDraft(ctx, next, draft.StateVersion); err != nil {
			if err == store.ErrConflict {
				continue
			}
			return nil, wrapStoreErr(err)
		}

		s.hub.PublishState(next.ID, next)
		if s.bots != nil {
			go s.bots.Process(context.WithoutCancel(ctx), next.ID)
		}
		return next, nil
	}
	return nil, newError(CodeStateChanged, "too many concurrent updates, please retry")
}

func wrapStoreErr(err error) *Error {
	switch err {
	case store.ErrNotFound:
		return newError(CodeNotFound, "unknown shareId")
	case store.ErrConflict:
		return newError(CodeStateChanged, "state changed, please retry")
	default:
		log.Warn().Err(err).Msg("store unavailable")
		return newError(CodeStorageUnavailable, "storage unavailable")
	}
}

// newShareID returns a short, URL-safe public identifier. Collisions are
// astronomically unlikely at this length and are, in any case, rejected
// by the store's unique constraint on shareId.
func newShareID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing means the OS entropy source is broken
	}
	return base32.HexEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}
