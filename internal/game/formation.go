package game

import "sort"

// Formation ranks a completed three-card side, strongest last.
type Formation int

const (
	// Host is any three cards.
	Host Formation = iota + 1
	// Skirmish is three consecutive ranks.
	Skirmish
	// Battalion is three cards of one color.
	Battalion
	// Phalanx is three cards of equal rank.
	Phalanx
	// Wedge is three consecutive ranks of one color.
	Wedge
)

func (f Formation) String() string {
	switch f {
	case Wedge:
		return "wedge"
	case Phalanx:
		return "phalanx"
	case Battalion:
		return "battalion"
	case Skirmish:
		return "skirmish"
	case Host:
		return "host"
	default:
		return "none"
	}
}

// Evaluate classifies a completed side and returns its formation together
// with the rank sum used to break same-formation comparisons.
func Evaluate(cards []Card) (Formation, int) {
	if len(cards) != FormationSize {
		return 0, 0
	}
	ranks := make([]int, FormationSize)
	sum := 0
	sameColor := true
	for i, c := range cards {
		ranks[i] = c.Rank
		sum += c.Rank
		if c.Color != cards[0].Color {
			sameColor = false
		}
	}
	sort.Ints(ranks)
	straight := ranks[1] == ranks[0]+1 && ranks[2] == ranks[1]+1
	sameRank := ranks[0] == ranks[2]

	switch {
	case straight && sameColor:
		return Wedge, sum
	case sameRank:
		return Phalanx, sum
	case sameColor:
		return Battalion, sum
	case straight:
		return Skirmish, sum
	default:
		return Host, sum
	}
}

// resolveFlag decides a contested flag once both sides are full. Exact
// ties go to the side that completed its formation first.
func resolveFlag(f *Flag) int {
	f1, sum1 := Evaluate(f.Sides[0])
	f2, sum2 := Evaluate(f.Sides[1])
	switch {
	case f1 != f2:
		if f1 > f2 {
			return 1
		}
		return 2
	case sum1 != sum2:
		if sum1 > sum2 {
			return 1
		}
		return 2
	case f.FirstFull != 0:
		return f.FirstFull
	default:
		return 1
	}
}
