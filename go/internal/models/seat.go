package models

import "github.com/google/uuid"

// Seat is one occupant of a draft: either a human principal or a bot.
// Seats belong to exactly one Draft and are persisted together with it.
type Seat struct {
	SeatID     uuid.UUID `json:"seat_id"`
	SeatNumber int       `json:"seat_number"`

	// Principal identifies the seat's owner: an external user id, or
	// "bot:<ordinal>" for bot seats.
	Principal string `json:"principal"`
	IsBot     bool   `json:"is_bot"`

	// BotBehaviorID selects the botbehavior.Behavior used to drive this
	// seat's picks; only meaningful when IsBot. A seat keeps the same
	// behavior id for its lifetime, so within one process every pick for
	// the seat goes to the same instance; the instance's learning state is
	// held in memory and does not survive a process restart.
	BotBehaviorID string `json:"bot_behavior_id,omitempty"`

	// LeaderOffering is this seat's visible hand during leader_draft.
	LeaderOffering []Card `json:"leader_offering,omitempty"`
	// DraftedLeaders accumulates one entry per completed leader round.
	DraftedLeaders []Card `json:"drafted_leaders,omitempty"`

	// CurrentPack is this seat's visible hand during pack_draft.
	CurrentPack  []Card `json:"current_pack,omitempty"`
	DraftedCards []Card `json:"drafted_cards,omitempty"`

	PickStatus     PickStatus `json:"pick_status"`
	SelectedCardID string     `json:"selected_card_id,omitempty"`
}

// Hand returns whichever of LeaderOffering/CurrentPack is the seat's
// currently visible set of choices, depending on the given status.
func (s *Seat) Hand(status Status) []Card {
	if status == StatusLeaderDraft {
		return s.LeaderOffering
	}
	return s.CurrentPack
}

// Clone deep-copies the seat's slice fields.
func (s Seat) Clone() Seat {
	cp := s
	cp.LeaderOffering = cloneCards(s.LeaderOffering)
	cp.DraftedLeaders = cloneCards(s.DraftedLeaders)
	cp.CurrentPack = cloneCards(s.CurrentPack)
	cp.DraftedCards = cloneCards(s.DraftedCards)
	return cp
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return cp
}
