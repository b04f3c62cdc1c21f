package game

import (
	"fmt"
	"math/rand"
)

// Color identifies one of the six troop suits.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
)

// Colors lists every suit in deck order.
var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorOrange}

const (
	// MaxRank is the highest troop rank per color.
	MaxRank = 10

	// NumFlags is the number of flags on the line.
	NumFlags = 9

	// HandSize is the number of cards each player holds while the deck lasts.
	HandSize = 7

	// FormationSize is the number of cards that completes one side of a flag.
	FormationSize = 3
)

// Card is a single troop card.
type Card struct {
	Color Color `json:"color"`
	Rank  int   `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s-%d", c.Color, c.Rank)
}

// Move plays one card from a seat's hand onto a flag.
type Move struct {
	Seat int  `json:"seat"` // 1 or 2
	Card Card `json:"card"`
	Flag int  `json:"flag"` // 0-based flag index
}

// NewDeck returns the full 60-card troop deck shuffled with rng.
// A nil rng leaves the deck in canonical order.
func NewDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, len(Colors)*MaxRank)
	for _, color := range Colors {
		for rank := 1; rank <= MaxRank; rank++ {
			deck = append(deck, Card{Color: color, Rank: rank})
		}
	}
	if rng != nil {
		rng.Shuffle(len(deck), func(i, j int) {
			deck[i], deck[j] = deck[j], deck[i]
		})
	}
	return deck
}
