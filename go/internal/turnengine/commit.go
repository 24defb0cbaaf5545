package turnengine

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// Select stages or clears a pick for seatID. cardID nil means unselect.
func Select(draft *models.Draft, seatID uuid.UUID, cardID *string) (*models.Draft, error) {
	if !draft.Active() {
		return nil, newError(CodeDraftLocked, "draft is not accepting picks")
	}
	seat := draft.Seat(seatID)
	if seat == nil {
		return nil, newError(CodeStateChanged, "unknown seat")
	}
	if seat.PickStatus != models.PickPicking && seat.PickStatus != models.PickSelected {
		return nil, newError(CodeStateChanged, "seat is not currently picking")
	}

	next := draft.Clone()
	nextSeat := next.Seat(seatID)

	if cardID == nil {
		nextSeat.SelectedCardID = ""
		nextSeat.PickStatus = models.PickPicking
		return next, nil
	}

	if !handContains(nextSeat.Hand(next.Status), *cardID) {
		return nil, newError(CodeStateChanged, "card is no longer in hand")
	}
	nextSeat.SelectedCardID = *cardID
	nextSeat.PickStatus = models.PickSelected
	return next, nil
}

// CommitRound requires every seat to have PickStatus=selected. It moves
// each seat's staged pick into its drafted list, rotates residual hands,
// and advances the phase (or transitions leader_draft -> pack_draft ->
// completed), all atomically within the returned snapshot.
func CommitRound(draft *models.Draft, now time.Time) (*models.Draft, error) {
	if !draft.Active() {
		return nil, newError(CodeDraftLocked, "draft is not active")
	}
	for i := range draft.Seats {
		if draft.Seats[i].PickStatus != models.PickSelected {
			return nil, newError(CodeStateChanged, "not every seat has a staged pick")
		}
	}

	next := draft.Clone()
	switch next.Status {
	case models.StatusLeaderDraft:
		commitLeaderRound(next)
	case models.StatusPackDraft:
		commitPackRound(next)
	}

	if next.Active() {
		next.PickStartedAt = &now
		next.PhaseState.LastPickerStartedAt = nil
	}
	return next, nil
}

func commitLeaderRound(d *models.Draft) {
	order := orderedSeatIndices(d.Seats)
	for _, idx := range order {
		seat := &d.Seats[idx]
		card, rest, _ := removeCard(seat.LeaderOffering, seat.SelectedCardID)
		seat.DraftedLeaders = append(seat.DraftedLeaders, card)
		seat.LeaderOffering = rest
		seat.SelectedCardID = ""
	}

	if d.PhaseState.LeaderRound < 3 {
		rotateRight(d.Seats, order, leaderOfferingHand)
		d.PhaseState.LeaderRound++
		for _, idx := range order {
			d.Seats[idx].PickStatus = handPickStatus(d.Seats[idx].LeaderOffering)
		}
		return
	}

	// Last leader round: no rotation, transition straight to pack_draft.
	d.Status = models.StatusPackDraft
	d.PhaseState.PackNumber = 1
	d.PhaseState.PickInPack = 1
	revealPack(d, order, 0)
}

func commitPackRound(d *models.Draft) {
	order := orderedSeatIndices(d.Seats)
	for _, idx := range order {
		seat := &d.Seats[idx]
		card, rest, _ := removeCard(seat.CurrentPack, seat.SelectedCardID)
		seat.DraftedCards = append(seat.DraftedCards, card)
		seat.CurrentPack = rest
		seat.SelectedCardID = ""
	}

	direction := rotateLeft
	if d.PhaseState.PackNumber%2 == 0 {
		direction = rotateRight
	}
	direction(d.Seats, order, currentPackHand)
	d.PhaseState.PickInPack++

	if len(d.Seats[order[0]].CurrentPack) > 0 {
		for _, idx := range order {
			d.Seats[idx].PickStatus = handPickStatus(d.Seats[idx].CurrentPack)
		}
		return
	}

	// Every seat's rotated-in pack is empty: that pack is exhausted.
	if d.PhaseState.PackNumber >= 3 {
		d.Status = models.StatusCompleted
		now := *d.PickStartedAt
		d.CompletedAt = &now
		return
	}
	d.PhaseState.PackNumber++
	d.PhaseState.PickInPack = 1
	revealPack(d, order, d.PhaseState.PackNumber-1)
}

// revealPack places PendingPacks[pos][packIdx] into each seat's
// CurrentPack, in seatNumber order, and sets the resulting pick status.
func revealPack(d *models.Draft, order []int, packIdx int) {
	for pos, idx := range order {
		seat := &d.Seats[idx]
		if pos < len(d.PhaseState.PendingPacks) {
			seat.CurrentPack = d.PhaseState.PendingPacks[pos][packIdx]
		}
		seat.PickStatus = handPickStatus(seat.CurrentPack)
	}
}

// ForceRandom stages a uniformly random card from seat's current hand
// when it has none staged yet; used by the TimeoutEnforcer.
func ForceRandom(status models.Status, seat *models.Seat, rng *rand.Rand) error {
	if seat.SelectedCardID != "" {
		return nil
	}
	hand := seat.Hand(status)
	if len(hand) == 0 {
		return newError(CodeInvalidSelection, "seat has no cards to force a pick from")
	}
	choice := hand[rng.Intn(len(hand))]
	seat.SelectedCardID = choice.ID
	seat.PickStatus = models.PickSelected
	return nil
}

func handContains(hand []models.Card, cardID string) bool {
	for _, c := range hand {
		if c.ID == cardID {
			return true
		}
	}
	return false
}

func removeCard(hand []models.Card, cardID string) (models.Card, []models.Card, bool) {
	for i, c := range hand {
		if c.ID == cardID {
			rest := make([]models.Card, 0, len(hand)-1)
			rest = append(rest, hand[:i]...)
			rest = append(rest, hand[i+1:]...)
			return c, rest, true
		}
	}
	return models.Card{}, hand, false
}

func leaderOfferingHand(s *models.Seat) *[]models.Card { return &s.LeaderOffering }
func currentPackHand(s *models.Seat) *[]models.Card    { return &s.CurrentPack }

// rotateRight moves ordered seat k's hand to seat k+1 mod N.
func rotateRight(seats []models.Seat, order []int, hand func(*models.Seat) *[]models.Card) {
	rotate(seats, order, hand, 1)
}

// rotateLeft moves ordered seat k's hand to seat k-1 mod N.
func rotateLeft(seats []models.Seat, order []int, hand func(*models.Seat) *[]models.Card) {
	rotate(seats, order, hand, -1)
}

// rotate sends ordered seat k's hand to seat (k+shift) mod n: shift=+1
// is RIGHT, shift=-1 is LEFT.
func rotate(seats []models.Seat, order []int, hand func(*models.Seat) *[]models.Card, shift int) {
	n := len(order)
	if n == 0 {
		return
	}
	current := make([][]models.Card, n)
	for k, idx := range order {
		current[k] = *hand(&seats[idx])
	}
	next := make([][]models.Card, n)
	for k := 0; k < n; k++ {
		dest := ((k+shift)%n + n) % n
		next[dest] = current[k]
	}
	for k, idx := range order {
		*hand(&seats[idx]) = next[k]
	}
}
