package game

import "math/rand"

// Flag is one contested position on the line. Sides is indexed by seat-1.
type Flag struct {
	Sides [2][]Card `json:"sides"`
	// ClaimedBy is the seat that won the flag, 0 while contested.
	ClaimedBy int `json:"claimed_by,omitempty"`
	// FirstFull is the seat that completed its formation first; it wins
	// exact formation ties.
	FirstFull int `json:"first_full,omitempty"`
}

// Full reports whether seat's side of the flag holds a complete formation.
func (f *Flag) Full(seat int) bool {
	return len(f.Sides[seat-1]) >= FormationSize
}

// State is the complete mutable state of one game. It has no internal
// synchronization; ownership is the caller's concern.
type State struct {
	Deck      []Card    `json:"deck"`
	Hands     [2][]Card `json:"hands"`
	Flags     []Flag    `json:"flags"`
	Turn      int       `json:"turn"` // seat to act, 0 once the game is over
	Winner    int       `json:"winner"`
	Over      bool      `json:"over"`
	MoveCount int       `json:"move_count"`
}

// New deals a fresh game: shuffled deck, seven cards per seat, seat 1 to act.
func New(rng *rand.Rand) *State {
	s := &State{
		Deck:  NewDeck(rng),
		Flags: make([]Flag, NumFlags),
		Turn:  1,
	}
	for i := 0; i < HandSize; i++ {
		for seat := 1; seat <= 2; seat++ {
			s.Hands[seat-1] = append(s.Hands[seat-1], s.draw())
		}
	}
	return s
}

func (s *State) draw() Card {
	c := s.Deck[len(s.Deck)-1]
	s.Deck = s.Deck[:len(s.Deck)-1]
	return c
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := *s
	out.Deck = append([]Card(nil), s.Deck...)
	for i := range s.Hands {
		out.Hands[i] = append([]Card(nil), s.Hands[i]...)
	}
	out.Flags = make([]Flag, len(s.Flags))
	for i, f := range s.Flags {
		out.Flags[i] = f
		for side := range f.Sides {
			out.Flags[i].Sides[side] = append([]Card(nil), f.Sides[side]...)
		}
	}
	return &out
}

// Hand returns the given seat's hand.
func (s *State) Hand(seat int) []Card {
	return s.Hands[seat-1]
}

// ClaimedFlags counts flags claimed by seat.
func (s *State) ClaimedFlags(seat int) int {
	n := 0
	for i := range s.Flags {
		if s.Flags[i].ClaimedBy == seat {
			n++
		}
	}
	return n
}

// LegalMoves enumerates every playable (card, flag) pair for seat. The
// result is empty when the seat's hand is empty or every flag is closed
// to it.
func LegalMoves(s *State, seat int) []Move {
	if seat < 1 || seat > 2 || s.Over {
		return nil
	}
	var moves []Move
	for _, card := range s.Hands[seat-1] {
		for flag := range s.Flags {
			f := &s.Flags[flag]
			if f.ClaimedBy != 0 || f.Full(seat) {
				continue
			}
			moves = append(moves, Move{Seat: seat, Card: card, Flag: flag})
		}
	}
	return moves
}
