// Package game implements the Battle Line troop deck, flag formations and
// move validation. The engine is pure: Apply never mutates its input state,
// so callers own all synchronization and snapshotting concerns.
package game

import "fmt"

// RejectedError reports an illegal move. The prior state is unchanged.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "move rejected: " + e.Reason
}

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// Engine validates and applies moves.
type Engine struct{}

// Apply validates m against s and returns the successor state. On
// rejection it returns a *RejectedError and s is untouched.
func (Engine) Apply(s *State, m Move) (*State, error) {
	if s.Over {
		return nil, reject("game is over")
	}
	if m.Seat < 1 || m.Seat > 2 {
		return nil, reject("invalid seat %d", m.Seat)
	}
	if m.Seat != s.Turn {
		return nil, reject("not seat %d's turn", m.Seat)
	}
	if m.Flag < 0 || m.Flag >= len(s.Flags) {
		return nil, reject("no such flag %d", m.Flag)
	}
	flag := &s.Flags[m.Flag]
	if flag.ClaimedBy != 0 {
		return nil, reject("flag %d is already claimed", m.Flag)
	}
	if flag.Full(m.Seat) {
		return nil, reject("flag %d already holds a full formation", m.Flag)
	}
	handIdx := -1
	for i, c := range s.Hands[m.Seat-1] {
		if c == m.Card {
			handIdx = i
			break
		}
	}
	if handIdx < 0 {
		return nil, reject("card %s is not in hand", m.Card)
	}

	next := s.Clone()
	hand := next.Hands[m.Seat-1]
	next.Hands[m.Seat-1] = append(hand[:handIdx], hand[handIdx+1:]...)
	side := &next.Flags[m.Flag].Sides[m.Seat-1]
	*side = append(*side, m.Card)
	if len(*side) == FormationSize && next.Flags[m.Flag].FirstFull == 0 {
		next.Flags[m.Flag].FirstFull = m.Seat
	}
	if len(next.Deck) > 0 {
		next.Hands[m.Seat-1] = append(next.Hands[m.Seat-1], next.draw())
	}
	next.MoveCount++

	for i := range next.Flags {
		f := &next.Flags[i]
		if f.ClaimedBy == 0 && f.Full(1) && f.Full(2) {
			f.ClaimedBy = resolveFlag(f)
		}
	}

	if winner := victor(next); winner != 0 {
		next.Over = true
		next.Winner = winner
		next.Turn = 0
		return next, nil
	}

	next.Turn = advanceTurn(next, m.Seat)
	if next.Turn == 0 {
		// Neither seat can play: the line is decided on claimed flags.
		next.Over = true
		c1, c2 := next.ClaimedFlags(1), next.ClaimedFlags(2)
		switch {
		case c1 > c2:
			next.Winner = 1
		case c2 > c1:
			next.Winner = 2
		default:
			next.Winner = 0 // drawn line
		}
	}
	return next, nil
}

// victor returns the winning seat once it holds five flags in total or
// three adjacent flags, 0 otherwise.
func victor(s *State) int {
	for seat := 1; seat <= 2; seat++ {
		adjacent := 0
		total := 0
		for i := range s.Flags {
			if s.Flags[i].ClaimedBy == seat {
				total++
				adjacent++
				if total >= 5 || adjacent >= 3 {
					return seat
				}
			} else {
				adjacent = 0
			}
		}
	}
	return 0
}

// advanceTurn hands the turn to the opponent, keeps it with the mover when
// only the mover can still play, and returns 0 when the game is exhausted.
func advanceTurn(s *State, mover int) int {
	other := 3 - mover
	if len(LegalMoves(s, other)) > 0 {
		return other
	}
	if len(LegalMoves(s, mover)) > 0 {
		return mover
	}
	return 0
}
