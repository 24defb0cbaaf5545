// Package models holds the persisted aggregate types for a draft: the
// Draft and its Seats, and the small value types they are built from.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the top-level draft state machine position.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusLeaderDraft Status = "leader_draft"
	StatusPackDraft   Status = "pack_draft"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// PickStatus is the per-seat pick state machine position.
type PickStatus string

const (
	PickIdle     PickStatus = "idle"
	PickPicking  PickStatus = "picking"
	PickSelected PickStatus = "selected"
	PickPicked   PickStatus = "picked"
)

// Settings holds the configurable knobs for a draft, set at creation and
// patchable (while waiting) via DraftService.UpdateSettings.
type Settings struct {
	RoundTimerEnabled      bool `json:"round_timer_enabled"`
	RoundTimerSeconds      int  `json:"round_timer_seconds"`
	LastPickerTimerEnabled bool `json:"last_picker_timer_enabled"`
	LastPickerTimerSeconds int  `json:"last_picker_timer_seconds"`
	PackSize               int  `json:"pack_size"`
}

// DefaultSettings matches spec.md §3's defaults.
func DefaultSettings() Settings {
	return Settings{
		RoundTimerEnabled:      true,
		RoundTimerSeconds:      120,
		LastPickerTimerEnabled: true,
		LastPickerTimerSeconds: 30,
		PackSize:               14,
	}
}

// PhaseState is the union over Status: LeaderRound is meaningful only in
// leader_draft, PackNumber/PickInPack only in pack_draft. Both share
// LastPickerStartedAt, which has two writers: the BotRunner sets it when
// a bot pick leaves one seat picking, and the TimeoutEnforcer sets it
// when it first sees one seat picking. TurnEngine does not set it; it
// only clears it in CommitRound.
type PhaseState struct {
	LeaderRound         int        `json:"leader_round,omitempty"`
	PackNumber          int        `json:"pack_number,omitempty"`
	PickInPack          int        `json:"pick_in_pack,omitempty"`
	LastPickerStartedAt *time.Time `json:"last_picker_started_at,omitempty"`

	// PendingPacks holds the PackGenerator's full per-seat booster output,
	// generated once at Start and revealed into a seat's CurrentPack one
	// pack at a time as pack_draft advances. Indexed [seatPosition][packNumber-1].
	// Never exposed to clients — only the revealed CurrentPack reaches a
	// client, and only the seat's owner.
	PendingPacks [][3][]Card `json:"pending_packs,omitempty"`
}

// Draft is the root aggregate. A Draft plus its Seats forms the single
// unit of optimistic-concurrency-controlled storage (see internal/store).
type Draft struct {
	ID         uuid.UUID `json:"id"`
	ShareID    string    `json:"share_id"`
	HostSeatID uuid.UUID `json:"host_seat_id"`
	SetCode    string    `json:"set_code"`
	MaxSeats   int       `json:"max_seats"`
	Status     Status    `json:"status"`

	PhaseState PhaseState `json:"phase_state"`
	Settings   Settings   `json:"settings"`

	// Seed is handed to the PackGenerator so a draft's packs are
	// reproducible given the same seed (spec.md §4.2 contract).
	Seed int64 `json:"seed"`

	Paused                   bool       `json:"paused"`
	PausedAt                 *time.Time `json:"paused_at,omitempty"`
	PausedAccumulatedSeconds float64    `json:"paused_accumulated_seconds"`

	PickStartedAt *time.Time `json:"pick_started_at,omitempty"`

	StateVersion int64 `json:"state_version"`

	// BotProcessingSince is the BotRunner's advisory lease (spec.md §4.1/§4.5).
	BotProcessingSince *time.Time `json:"bot_processing_since,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Seats []Seat `json:"seats"`
}

// Seat returns the seat with the given id, or nil.
func (d *Draft) Seat(seatID uuid.UUID) *Seat {
	for i := range d.Seats {
		if d.Seats[i].SeatID == seatID {
			return &d.Seats[i]
		}
	}
	return nil
}

// SeatByPrincipal returns the seat owned by principal, or nil.
func (d *Draft) SeatByPrincipal(principal string) *Seat {
	for i := range d.Seats {
		if d.Seats[i].Principal == principal {
			return &d.Seats[i]
		}
	}
	return nil
}

// SeatByNumber returns the seat at seatNumber, or nil.
func (d *Draft) SeatByNumber(seatNumber int) *Seat {
	for i := range d.Seats {
		if d.Seats[i].SeatNumber == seatNumber {
			return &d.Seats[i]
		}
	}
	return nil
}

// IsHost reports whether principal owns the host seat.
func (d *Draft) IsHost(principal string) bool {
	host := d.Seat(d.HostSeatID)
	return host != nil && host.Principal == principal
}

// Active reports whether the draft is still progressing (not completed or
// cancelled); used by the TimeoutEnforcer's and BotRunner's sweeps.
func (d *Draft) Active() bool {
	return d.Status == StatusLeaderDraft || d.Status == StatusPackDraft
}

// Clone deep-copies the draft, including seats, so callers can mutate the
// result without aliasing the original (TurnEngine never mutates in place).
func (d *Draft) Clone() *Draft {
	cp := *d
	cp.PhaseState.LastPickerStartedAt = clonePtr(d.PhaseState.LastPickerStartedAt)
	if d.PhaseState.PendingPacks != nil {
		cp.PhaseState.PendingPacks = make([][3][]Card, len(d.PhaseState.PendingPacks))
		for i, perSeat := range d.PhaseState.PendingPacks {
			for j, pack := range perSeat {
				cp.PhaseState.PendingPacks[i][j] = cloneCards(pack)
			}
		}
	}
	cp.PausedAt = clonePtr(d.PausedAt)
	cp.PickStartedAt = clonePtr(d.PickStartedAt)
	cp.BotProcessingSince = clonePtr(d.BotProcessingSince)
	cp.StartedAt = clonePtr(d.StartedAt)
	cp.CompletedAt = clonePtr(d.CompletedAt)
	cp.CancelledAt = clonePtr(d.CancelledAt)

	cp.Seats = make([]Seat, len(d.Seats))
	for i := range d.Seats {
		cp.Seats[i] = d.Seats[i].Clone()
	}
	return &cp
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
