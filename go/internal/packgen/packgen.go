// Package packgen defines the contract the draft engine uses to obtain
// leader offerings and booster packs, and ships one deterministic
// generator against an in-memory card pool (suitable for a demo
// deployment or for tests; a real deployment swaps in a generator backed
// by the card catalog service).
package packgen

import (
	"fmt"
	"math/rand"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
)

// Generator produces, for a fixed seed, the leader offerings and booster
// packs a draft needs up front. Implementations MUST be reproducible:
// the same (setCode, seatCount, seed) always yields the same result, so
// a draft can be replayed or resumed from persisted state without
// re-deriving hands from the current (possibly different) card pool.
type Generator interface {
	// Generate returns, per seat, the 3 leader-round offerings and the 3
	// booster packs for the given setCode/seatCount/seed.
	Generate(setCode string, seatCount, packSize int, seed int64) (Result, error)
}

// Result is the per-seat output of a Generator call.
type Result struct {
	// LeaderOfferings[seat][round] (round is 0-indexed, 3 rounds).
	LeaderOfferings [][3][]models.Card
	// Packs[seat][packNumber] (packNumber is 0-indexed, 3 packs).
	Packs [][3][]models.Card
}

const (
	leaderRounds      = 3
	packCount         = 3
	leaderOfferSize   = 3
	minPoolMultiplier = 4
)

// PoolGenerator is the example Generator: it draws from a synthetic,
// set-scoped card pool built from the set code and card ordinals, so no
// external catalog is required to exercise the engine end to end.
type PoolGenerator struct{}

// NewPoolGenerator constructs the example Generator.
func NewPoolGenerator() *PoolGenerator {
	return &PoolGenerator{}
}

// Generate implements Generator.
func (g *PoolGenerator) Generate(setCode string, seatCount, packSize int, seed int64) (Result, error) {
	if seatCount < 2 {
		return Result{}, fmt.Errorf("packgen: seatCount must be >= 2, got %d", seatCount)
	}
	if packSize < 1 {
		return Result{}, fmt.Errorf("packgen: packSize must be >= 1, got %d", packSize)
	}

	rng := rand.New(rand.NewSource(seed))

	leaderPool := g.buildPool(setCode, "leader", seatCount*leaderRounds*leaderOfferSize*minPoolMultiplier)
	cardPool := g.buildPool(setCode, "card", seatCount*packCount*packSize*minPoolMultiplier)

	leaderOfferings := make([][3][]models.Card, seatCount)
	for seat := 0; seat < seatCount; seat++ {
		for round := 0; round < leaderRounds; round++ {
			leaderOfferings[seat][round] = drawN(rng, leaderPool, leaderOfferSize)
		}
	}

	packs := make([][3][]models.Card, seatCount)
	for seat := 0; seat < seatCount; seat++ {
		for pack := 0; pack < packCount; pack++ {
			packs[seat][pack] = drawN(rng, cardPool, packSize)
		}
	}

	return Result{LeaderOfferings: leaderOfferings, Packs: packs}, nil
}

// buildPool deterministically names `size` distinct cards for the given
// set/kind so the same (setCode, size) always yields the same names;
// randomness only governs which subset each seat/round/pack draws.
func (g *PoolGenerator) buildPool(setCode, kind string, size int) []models.Card {
	if size < 1 {
		size = 1
	}
	pool := make([]models.Card, size)
	for i := range pool {
		pool[i] = models.Card{
			ID:   fmt.Sprintf("%s-%s-%04d", setCode, kind, i),
			Name: fmt.Sprintf("%s %s %d", setCode, kind, i),
		}
	}
	return pool
}

// drawN samples n distinct cards from pool without replacement, in a
// fresh shuffled order. Each call draws independently of earlier calls,
// so the same card can appear in more than one draw.
func drawN(rng *rand.Rand, pool []models.Card, n int) []models.Card {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]models.Card, n)
	for i, p := range idx {
		out[i] = pool[p]
	}
	return out
}
