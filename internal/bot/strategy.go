// Package bot runs computer players. A worker drives one seat of one
// session through the same move interface a human uses; move selection is
// delegated to a Strategy.
package bot

import (
	"math/rand"

	"github.com/battlelinehq/battleline/internal/game"
)

// Strategy picks a move for seat from a state snapshot. The second return
// is false when no legal move exists.
type Strategy interface {
	ChooseMove(st *game.State, seat int) (game.Move, bool)
}

// Greedy plays toward the flag closest to completion, breaking ties at
// random. It is deliberately shallow; it exists to make computer seats
// make progress, not to play well.
type Greedy struct {
	rng *rand.Rand
}

// NewGreedy returns a Greedy strategy seeded with seed.
func NewGreedy(seed int64) *Greedy {
	return &Greedy{rng: rand.New(rand.NewSource(seed))}
}

func (g *Greedy) ChooseMove(st *game.State, seat int) (game.Move, bool) {
	moves := game.LegalMoves(st, seat)
	if len(moves) == 0 {
		return game.Move{}, false
	}

	best := -1
	var candidates []game.Move
	for _, m := range moves {
		played := len(st.Flags[m.Flag].Sides[seat-1])
		if played > best {
			best = played
			candidates = candidates[:0]
		}
		if played == best {
			candidates = append(candidates, m)
		}
	}
	return candidates[g.rng.Intn(len(candidates))], true
}
