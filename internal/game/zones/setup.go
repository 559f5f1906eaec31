package zones

import (
	"fmt"
	"math/rand/v2"

	"github.com/Tantawi65/khofogame/internal/game/cards"
)

const (
	MinPlayers = 2
	MaxPlayers = 6

	// StartingDraw is the number of deck cards dealt to each player on top
	// of the guaranteed defuse.
	StartingDraw = 4
)

// Deal builds the deck for a match of players seats and deals the opening
// hands. The deck is shuffled before dealing so every hand is a uniformly
// random non-elimination draw, then the leftover defuse and the elimination
// cards are added and the deck is shuffled again.
func Deal(players int, rng *rand.Rand) (*Deck, []*Hand, error) {
	if players < MinPlayers || players > MaxPlayers {
		return nil, nil, fmt.Errorf("player count %d outside [%d, %d]", players, MinPlayers, MaxPlayers)
	}

	deck := NewDeck(rng)
	for _, t := range cards.Normal {
		deck.Add(NewInstances(t, players)...)
	}
	for _, t := range cards.Halves {
		deck.Add(NewInstances(t, players)...)
	}
	defuses := NewInstances(cards.Defuse, players+1)
	mummies := NewInstances(cards.Elimination, players-1)

	deck.Shuffle()

	hands := make([]*Hand, players)
	for i := range hands {
		opening := make([]Instance, 0, StartingDraw+1)
		opening = append(opening, defuses[i])
		for j := 0; j < StartingDraw; j++ {
			inst, ok := deck.Draw()
			if !ok {
				break
			}
			opening = append(opening, inst)
		}
		rng.Shuffle(len(opening), func(a, b int) {
			opening[a], opening[b] = opening[b], opening[a]
		})
		hands[i] = NewHand(opening...)
	}

	deck.Add(defuses[players:]...)
	deck.Add(mummies...)
	deck.Shuffle()

	return deck, hands, nil
}
