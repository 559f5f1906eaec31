package zones

import (
	"math/rand/v2"
)

// Deck is the draw pile. The top card is the last element of the slice so
// that drawing is a pop.
type Deck struct {
	cards []Instance
	rng   *rand.Rand
}

// NewDeck creates a deck holding instances in the given order, the last
// element on top. rng drives Shuffle and InsertRandom.
func NewDeck(rng *rand.Rand, instances ...Instance) *Deck {
	d := &Deck{
		cards: make([]Instance, 0, len(instances)+8),
		rng:   rng,
	}
	d.cards = append(d.cards, instances...)
	return d
}

// Len returns the number of cards in the deck.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Draw removes and returns the top card. ok is false on an empty deck.
func (d *Deck) Draw() (Instance, bool) {
	if len(d.cards) == 0 {
		return Instance{}, false
	}
	idx := len(d.cards) - 1
	top := d.cards[idx]
	d.cards = d.cards[:idx]
	return top, true
}

// PeekTop returns up to n cards, top first, without removing them.
func (d *Deck) PeekTop(n int) []Instance {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Instance, 0, n)
	for i := len(d.cards) - 1; i >= len(d.cards)-n; i-- {
		out = append(out, d.cards[i])
	}
	return out
}

// InsertAt places inst offset cards below the top. The offset is clamped
// into [0, Len()]; 0 puts it on top and Len() on the bottom.
func (d *Deck) InsertAt(inst Instance, offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.cards) {
		offset = len(d.cards)
	}
	idx := len(d.cards) - offset
	d.cards = append(d.cards, Instance{})
	copy(d.cards[idx+1:], d.cards[idx:])
	d.cards[idx] = inst
}

// InsertRandom places inst at a uniformly random offset and returns it.
func (d *Deck) InsertRandom(inst Instance) int {
	offset := d.rng.IntN(len(d.cards) + 1)
	d.InsertAt(inst, offset)
	return offset
}

// ReorderTop replaces the top len(order) cards with the same cards in the
// given order; order[0] becomes the new top. It reports false, leaving the
// deck untouched, when order is not a permutation of the current top cards.
func (d *Deck) ReorderTop(order []string) bool {
	n := len(order)
	if n == 0 || n > len(d.cards) {
		return false
	}
	top := make(map[string]Instance, n)
	for _, inst := range d.PeekTop(n) {
		top[inst.ID] = inst
	}
	reordered := make([]Instance, 0, n)
	for _, id := range order {
		inst, ok := top[id]
		if !ok {
			return false
		}
		delete(top, id)
		reordered = append(reordered, inst)
	}
	for i, inst := range reordered {
		d.cards[len(d.cards)-1-i] = inst
	}
	return true
}

// Shuffle applies an unbiased Fisher-Yates permutation.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Add pushes instances onto the top of the deck without shuffling.
func (d *Deck) Add(instances ...Instance) {
	d.cards = append(d.cards, instances...)
}

// Contents returns a copy of the deck, top first.
func (d *Deck) Contents() []Instance {
	return d.PeekTop(len(d.cards))
}
