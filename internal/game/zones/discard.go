package zones

import "github.com/Tantawi65/khofogame/internal/game/cards"

// Discard is the append-only discard pile. Only card types are public.
type Discard struct {
	cards []Instance
}

// NewDiscard creates an empty discard pile.
func NewDiscard() *Discard {
	return &Discard{cards: make([]Instance, 0, 32)}
}

// Push appends instances in order.
func (d *Discard) Push(instances ...Instance) {
	d.cards = append(d.cards, instances...)
}

// Len returns the pile size.
func (d *Discard) Len() int {
	return len(d.cards)
}

// Types returns the pile by card type, oldest first.
func (d *Discard) Types() []cards.Type {
	return Types(d.cards)
}
