// Package turnengine holds the pure state-machine functions that
// advance a Draft: no I/O, no wall-clock reads except via an explicit
// `now` parameter, no randomness except via an explicit `*rand.Rand`.
// Every exported function except ForceRandom takes a *models.Draft and
// returns a fresh *models.Draft (via Draft.Clone) plus an error; callers
// persist the result through the Store's compare-and-set. ForceRandom
// instead stages a pick on the *models.Seat it is given, in place.
package turnengine

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
)

// JoinSeat assigns principal the lowest free seat number.
func JoinSeat(draft *models.Draft, principal string) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "draft is not waiting for players")
	}
	if draft.SeatByPrincipal(principal) != nil {
		return nil, newError(CodeAlreadyJoined, "principal already has a seat")
	}
	if len(draft.Seats) >= draft.MaxSeats {
		return nil, newError(CodeDraftFull, "no free seats")
	}

	next := draft.Clone()
	next.Seats = append(next.Seats, models.Seat{
		SeatID:     uuid.New(),
		SeatNumber: lowestFreeSeatNumber(next.Seats, next.MaxSeats),
		Principal:  principal,
		PickStatus: models.PickIdle,
	})
	return next, nil
}

// AddBot creates a bot seat bound to botBehaviorID, principal
// "bot:<ordinal>".
func AddBot(draft *models.Draft, ordinal int, botBehaviorID string) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "draft is not waiting for players")
	}
	if len(draft.Seats) >= draft.MaxSeats {
		return nil, newError(CodeDraftFull, "no free seats")
	}

	next := draft.Clone()
	next.Seats = append(next.Seats, models.Seat{
		SeatID:        uuid.New(),
		SeatNumber:    lowestFreeSeatNumber(next.Seats, next.MaxSeats),
		Principal:     botOrdinalPrincipal(ordinal),
		IsBot:         true,
		BotBehaviorID: botBehaviorID,
		PickStatus:    models.PickIdle,
	})
	return next, nil
}

// LeaveSeat removes principal's seat while the draft is still waiting.
func LeaveSeat(draft *models.Draft, principal string) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "draft is not waiting for players")
	}
	seat := draft.SeatByPrincipal(principal)
	if seat == nil {
		return nil, newError(CodeStateChanged, "no seat for principal")
	}

	next := draft.Clone()
	kept := next.Seats[:0]
	for _, s := range next.Seats {
		if s.Principal != principal {
			kept = append(kept, s)
		}
	}
	next.Seats = kept
	return next, nil
}

// RandomizeSeats uniformly permutes seatNumber across existing seats,
// keeping each seat's identity (principal, hand, picks) with it.
func RandomizeSeats(draft *models.Draft, rng *rand.Rand) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "draft is not waiting for players")
	}

	next := draft.Clone()
	numbers := make([]int, len(next.Seats))
	for i, s := range next.Seats {
		numbers[i] = s.SeatNumber
	}
	perm := rng.Perm(len(numbers))
	for i := range next.Seats {
		next.Seats[i].SeatNumber = numbers[perm[i]]
	}
	return next, nil
}

// Start transitions waiting -> leader_draft: places round-1 leader
// offerings from packs (indexed by each seat's position in seatNumber
// order) and sets every seat to picking.
func Start(draft *models.Draft, now time.Time, seed int64, packs packgen.Result) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "draft already started")
	}
	if len(draft.Seats) < 2 {
		return nil, newError(CodeTooFewPlayers, "at least 2 seats required")
	}

	next := draft.Clone()
	next.Seed = seed
	next.Status = models.StatusLeaderDraft
	next.PhaseState = models.PhaseState{LeaderRound: 1}
	next.PickStartedAt = &now
	next.StartedAt = &now

	next.PhaseState.PendingPacks = packs.Packs

	order := orderedSeatIndices(next.Seats)
	for pos, idx := range order {
		seat := &next.Seats[idx]
		seat.LeaderOffering = packs.LeaderOfferings[pos][0]
		seat.PickStatus = handPickStatus(seat.LeaderOffering)
	}
	return next, nil
}

// SettingsPatch carries the subset of Settings UpdateSettings may
// change; nil fields are left untouched.
type SettingsPatch struct {
	RoundTimerEnabled      *bool
	RoundTimerSeconds      *int
	LastPickerTimerEnabled *bool
	LastPickerTimerSeconds *int
	PackSize               *int
}

// UpdateSettings applies patch while the draft is waiting.
func UpdateSettings(draft *models.Draft, patch SettingsPatch) (*models.Draft, error) {
	if draft.Status != models.StatusWaiting {
		return nil, newError(CodeDraftLocked, "settings are only editable before start")
	}

	next := draft.Clone()
	if patch.RoundTimerEnabled != nil {
		next.Settings.RoundTimerEnabled = *patch.RoundTimerEnabled
	}
	if patch.RoundTimerSeconds != nil {
		next.Settings.RoundTimerSeconds = *patch.RoundTimerSeconds
	}
	if patch.LastPickerTimerEnabled != nil {
		next.Settings.LastPickerTimerEnabled = *patch.LastPickerTimerEnabled
	}
	if patch.LastPickerTimerSeconds != nil {
		next.Settings.LastPickerTimerSeconds = *patch.LastPickerTimerSeconds
	}
	if patch.PackSize != nil {
		next.Settings.PackSize = *patch.PackSize
	}
	return next, nil
}

// Pause sets paused=true and records pausedAt, unless already paused.
func Pause(draft *models.Draft, now time.Time) (*models.Draft, error) {
	if !draft.Active() {
		return nil, newError(CodeDraftLocked, "draft is not active")
	}
	if draft.Paused {
		return draft.Clone(), nil
	}
	next := draft.Clone()
	next.Paused = true
	next.PausedAt = &now
	return next, nil
}

// Resume clears paused and folds the elapsed pause interval into
// pausedAccumulatedSeconds. pickStartedAt is never shifted; elapsed time
// is always computed relative to it minus pausedAccumulatedSeconds.
func Resume(draft *models.Draft, now time.Time) (*models.Draft, error) {
	if !draft.Active() {
		return nil, newError(CodeDraftLocked, "draft is not active")
	}
	if !draft.Paused {
		return draft.Clone(), nil
	}
	next := draft.Clone()
	next.Paused = false
	if next.PausedAt != nil {
		next.PausedAccumulatedSeconds += now.Sub(*next.PausedAt).Seconds()
	}
	next.PausedAt = nil
	return next, nil
}

// Cancel transitions any non-terminal draft to cancelled.
func Cancel(draft *models.Draft, now time.Time) (*models.Draft, error) {
	if draft.Status == models.StatusCompleted || draft.Status == models.StatusCancelled {
		return nil, newError(CodeDraftLocked, "draft already terminal")
	}
	next := draft.Clone()
	next.Status = models.StatusCancelled
	next.CancelledAt = &now
	return next, nil
}

func lowestFreeSeatNumber(seats []models.Seat, maxSeats int) int {
	taken := make(map[int]bool, len(seats))
	for _, s := range seats {
		taken[s.SeatNumber] = true
	}
	for n := 1; n <= maxSeats; n++ {
		if !taken[n] {
			return n
		}
	}
	return maxSeats + 1
}

func botOrdinalPrincipal(ordinal int) string {
	return "bot:" + strconv.Itoa(ordinal)
}

// orderedSeatIndices returns indices into seats sorted by SeatNumber
// ascending; rotation and initial placement both address seats by this
// order ("seat k"), not by their position in the slice.
func orderedSeatIndices(seats []models.Seat) []int {
	idx := make([]int, len(seats))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return seats[idx[a]].SeatNumber < seats[idx[b]].SeatNumber
	})
	return idx
}

func handPickStatus(hand []models.Card) models.PickStatus {
	if len(hand) == 0 {
		return models.PickIdle
	}
	return models.PickPicking
}
