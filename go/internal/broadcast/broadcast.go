// Package broadcast implements the in-process subscription hub: every
// publish for a draft is fanned out to its subscribers. Grounded on the
// teacher's gateway.ConnectionManager — the publishing goroutine sends
// straight into per-subscriber buffered channels (there is no hub-wide
// queue or dispatch goroutine), and an event for a subscriber whose
// buffer is full is dropped rather than backpressuring mutations.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// EventType distinguishes the two publish kinds the wire protocol
// defines (spec.md §6's subscription channel).
type EventType string

const (
	EventState   EventType = "state"
	EventDeleted EventType = "deleted"
)

// Event is what a subscriber channel receives.
type Event struct {
	Type         EventType
	StateVersion int64
	PublicState  *PublicState
}

// PublicState is the broadcast-safe projection of a Draft: never a
// seat's hidden hand (leaderOffering, currentPack, selectedCardId).
type PublicState struct {
	Status       models.Status    `json:"status"`
	PhaseState   PublicPhaseState `json:"phase_state"`
	StateVersion int64            `json:"state_version"`
	Paused       bool             `json:"paused"`
	Seats        []PublicSeatView `json:"seats"`
}

// PublicPhaseState omits PendingPacks.
type PublicPhaseState struct {
	LeaderRound int `json:"leader_round,omitempty"`
	PackNumber  int `json:"pack_number,omitempty"`
	PickInPack  int `json:"pick_in_pack,omitempty"`
}

// PublicSeatView is the per-seat projection named in SPEC_FULL §3.
type PublicSeatView struct {
	SeatNumber            int               `json:"seat_number"`
	Principal             string            `json:"principal"`
	IsBot                 bool              `json:"is_bot"`
	PickStatus            models.PickStatus `json:"pick_status"`
	DraftedLeadersSummary int               `json:"drafted_leaders_summary"`
	DraftedCardCount      int               `json:"drafted_card_count"`
}

// NewPublicState projects draft into its broadcast-safe view.
func NewPublicState(draft *models.Draft) *PublicState {
	seats := make([]PublicSeatView, len(draft.Seats))
	for i, s := range draft.Seats {
		seats[i] = PublicSeatView{
			SeatNumber:            s.SeatNumber,
			Principal:             s.Principal,
			IsBot:                 s.IsBot,
			PickStatus:            s.PickStatus,
			DraftedLeadersSummary: len(s.DraftedLeaders),
			DraftedCardCount:      len(s.DraftedCards),
		}
	}
	return &PublicState{
		Status: draft.Status,
		PhaseState: PublicPhaseState{
			LeaderRound: draft.PhaseState.LeaderRound,
			PackNumber:  draft.PhaseState.PackNumber,
			PickInPack:  draft.PhaseState.PickInPack,
		},
		StateVersion: draft.StateVersion,
		Paused:       draft.Paused,
		Seats:        seats,
	}
}

const subscriberBuffer = 32

// Hub is the per-process Broadcaster. Cross-process fan-out is out of
// scope (spec.md §4.6); a multi-node deployment tunnels Hub events
// between nodes at the adapter layer.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Subscribe registers a new channel for draftID. The returned
// unsubscribe func MUST be called when the subscriber disconnects.
func (h *Hub) Subscribe(draftID uuid.UUID) (ch chan Event, unsubscribe func()) {
	ch = make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[draftID] == nil {
		h.subs[draftID] = make(map[chan Event]struct{})
	}
	h.subs[draftID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[draftID]; ok {
			delete(set, ch)
			close(ch)
			if len(set) == 0 {
				delete(h.subs, draftID)
			}
		}
	}
}

// PublishState implements enforcer.Notifier and botrunner.Notifier.
func (h *Hub) PublishState(draftID uuid.UUID, draft *models.Draft) {
	h.publish(draftID, Event{
		Type:         EventState,
		StateVersion: draft.StateVersion,
		PublicState:  NewPublicState(draft),
	})
}

// PublishDeleted announces a cancelled draft.
func (h *Hub) PublishDeleted(draftID uuid.UUID) {
	h.publish(draftID, Event{Type: EventDeleted})
}

func (h *Hub) publish(draftID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[draftID] {
		select {
		case ch <- event:
		default:
			log.Warn().
				Str("draft_id", draftID.String()).
				Msg("broadcast channel full, dropping event for slow subscriber")
		}
	}
}
