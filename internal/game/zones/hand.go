package zones

import "github.com/Tantawi65/khofogame/internal/game/cards"

// Hand is a player's cards. Order carries no game meaning but is preserved
// so that the owner's last arrangement is what a thief sees.
type Hand struct {
	cards []Instance
}

// NewHand creates a hand holding instances in order.
func NewHand(instances ...Instance) *Hand {
	h := &Hand{cards: make([]Instance, 0, len(instances)+4)}
	h.cards = append(h.cards, instances...)
	return h
}

// Len returns the hand size, the only hand information others may see.
func (h *Hand) Len() int {
	return len(h.cards)
}

// Add appends inst to the hand.
func (h *Hand) Add(instances ...Instance) {
	h.cards = append(h.cards, instances...)
}

// Remove takes the instance with the given ID out of the hand.
func (h *Hand) Remove(id string) (Instance, bool) {
	for i, inst := range h.cards {
		if inst.ID == id {
			h.cards = append(h.cards[:i], h.cards[i+1:]...)
			return inst, true
		}
	}
	return Instance{}, false
}

// Find returns the instance with the given ID without removing it.
func (h *Hand) Find(id string) (Instance, bool) {
	for _, inst := range h.cards {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// FirstOf returns the first instance of t in hand order.
func (h *Hand) FirstOf(t cards.Type) (Instance, bool) {
	for _, inst := range h.cards {
		if inst.Type == t {
			return inst, true
		}
	}
	return Instance{}, false
}

// RemoveFirstOf removes the first instance of t in hand order.
func (h *Hand) RemoveFirstOf(t cards.Type) (Instance, bool) {
	inst, ok := h.FirstOf(t)
	if !ok {
		return Instance{}, false
	}
	return h.Remove(inst.ID)
}

// CountOf counts the instances of t.
func (h *Hand) CountOf(t cards.Type) int {
	n := 0
	for _, inst := range h.cards {
		if inst.Type == t {
			n++
		}
	}
	return n
}

// Has reports whether the hand holds at least one instance of t.
func (h *Hand) Has(t cards.Type) bool {
	return h.CountOf(t) > 0
}

// At returns the card at position idx of the current order.
func (h *Hand) At(idx int) (Instance, bool) {
	if idx < 0 || idx >= len(h.cards) {
		return Instance{}, false
	}
	return h.cards[idx], true
}

// Reorder rearranges the hand to match order. It reports false and leaves
// the hand untouched unless order names every card exactly once.
func (h *Hand) Reorder(order []string) bool {
	if len(order) != len(h.cards) {
		return false
	}
	byID := make(map[string]Instance, len(h.cards))
	for _, inst := range h.cards {
		byID[inst.ID] = inst
	}
	next := make([]Instance, 0, len(order))
	for _, id := range order {
		inst, ok := byID[id]
		if !ok {
			return false
		}
		delete(byID, id)
		next = append(next, inst)
	}
	h.cards = next
	return true
}

// TakeAll empties the hand and returns what it held.
func (h *Hand) TakeAll() []Instance {
	out := h.cards
	h.cards = make([]Instance, 0, 4)
	return out
}

// Lowest returns the lowest-valued card not of an excluded type. Ties go to
// the earliest card in hand order.
func (h *Hand) Lowest(exclude ...cards.Type) (Instance, bool) {
	return h.pick(func(a, b int) bool { return a < b }, exclude)
}

// Highest returns the highest-valued card not of an excluded type. Ties go
// to the earliest card in hand order.
func (h *Hand) Highest(exclude ...cards.Type) (Instance, bool) {
	return h.pick(func(a, b int) bool { return a > b }, exclude)
}

func (h *Hand) pick(better func(a, b int) bool, exclude []cards.Type) (Instance, bool) {
	var (
		best  Instance
		found bool
	)
	for _, inst := range h.cards {
		if excluded(inst.Type, exclude) {
			continue
		}
		if !found || better(inst.Type.Value(), best.Type.Value()) {
			best = inst
			found = true
		}
	}
	return best, found
}

func excluded(t cards.Type, exclude []cards.Type) bool {
	for _, e := range exclude {
		if e == t {
			return true
		}
	}
	return false
}

// Cards returns a copy of the hand in its current order.
func (h *Hand) Cards() []Instance {
	out := make([]Instance, len(h.cards))
	copy(out, h.cards)
	return out
}
