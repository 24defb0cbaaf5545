// Package botbehavior implements the scoring hook bot seats use to pick
// leaders and cards. Grounded on the teacher's AutoPickStrategy/
// RandomStrategy split: a narrow interface plus a default implementation
// that owns its own rand source rather than a global one.
package botbehavior

import (
	"math/rand"
	"sync"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// Behavior is a capability interface a bot seat is bound to for the
// lifetime of the draft. Implementations may carry learning state across
// calls (e.g. aspect counts already seen for that seat), which is why a
// seat must keep the same Behavior instance rather than constructing a
// new one per pick.
type Behavior interface {
	// SelectLeader chooses one card from options (the seat's current
	// leaderOffering). options is always non-empty.
	SelectLeader(seat *models.Seat, options []models.Card) models.Card
	// SelectCard chooses one card from options (the seat's currentPack).
	// options is always non-empty.
	SelectCard(seat *models.Seat, options []models.Card) models.Card
}

// Registry looks Behaviors up by the id persisted on a Seat
// (Seat.BotBehaviorID), so the same instance — and any learning state it
// carries — survives across BotRunner invocations for the life of the
// process. The map is in memory only: after a restart, the first lookup
// of an id builds a fresh instance.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]Behavior
	newFn func() Behavior
}

// NewRegistry builds a Registry whose newFn constructs fresh Behaviors
// on first lookup of an unseen id.
func NewRegistry(newFn func() Behavior) *Registry {
	return &Registry{byID: make(map[string]Behavior), newFn: newFn}
}

// Get returns the Behavior bound to id, creating one if this is the
// first time id has been seen.
func (r *Registry) Get(id string) Behavior {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byID[id]; ok {
		return b
	}
	b := r.newFn()
	r.byID[id] = b
	return b
}

// ratedCard is a scored candidate used by PowerTable.
type ratedCard struct {
	card  models.Card
	score int
}

// PowerTable is the default Behavior: it scores candidates by a static
// per-card power rating (keyed by card name — a stand-in for a real
// "powerful cards" table keyed off rarity/power-level metadata) and
// nudges the score up for cards sharing a color already seen in the
// seat's drafted pool, then picks the top-scoring candidate. Ties break
// via its own rand source so repeated identical boards don't always
// resolve the same way.
type PowerTable struct {
	rng    *rand.Rand
	power  map[string]int
	aspect map[string]int // colors/aspects already drafted by this instance
}

// NewPowerTable constructs a PowerTable behavior seeded independently so
// concurrent bot seats never share an rng.Source.
func NewPowerTable(seed int64, power map[string]int) *PowerTable {
	return &PowerTable{
		rng:    rand.New(rand.NewSource(seed)),
		power:  power,
		aspect: make(map[string]int),
	}
}

// SelectLeader implements Behavior.
func (p *PowerTable) SelectLeader(seat *models.Seat, options []models.Card) models.Card {
	return p.pick(options)
}

// SelectCard implements Behavior.
func (p *PowerTable) SelectCard(seat *models.Seat, options []models.Card) models.Card {
	choice := p.pick(options)
	p.aspect[choice.Colors]++
	return choice
}

func (p *PowerTable) pick(options []models.Card) models.Card {
	rated := make([]ratedCard, len(options))
	best := 0
	for i, c := range options {
		score := p.power[c.Name]
		score += p.aspect[c.Colors]
		rated[i] = ratedCard{card: c, score: score}
		if score > rated[best].score {
			best = i
		}
	}

	// Collect all ties with the best score and break uniformly at random.
	var tied []int
	for i, r := range rated {
		if r.score == rated[best].score {
			tied = append(tied, i)
		}
	}
	return rated[tied[p.rng.Intn(len(tied))]].card
}
