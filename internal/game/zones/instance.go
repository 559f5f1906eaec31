package zones

import (
	"github.com/google/uuid"

	"github.com/Tantawi65/khofogame/internal/game/cards"
)

// Instance is a single physical card. Its ID is stable while the card
// moves between hands, the deck and the discard pile.
type Instance struct {
	ID   string     `json:"instance_id"`
	Type cards.Type `json:"card_id"`
}

// NewInstance creates an instance of t with a fresh ID.
func NewInstance(t cards.Type) Instance {
	return Instance{ID: uuid.NewString(), Type: t}
}

// NewInstances creates count fresh instances of t.
func NewInstances(t cards.Type, count int) []Instance {
	out := make([]Instance, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, NewInstance(t))
	}
	return out
}

// Types projects instances onto their card types, preserving order.
func Types(instances []Instance) []cards.Type {
	out := make([]cards.Type, len(instances))
	for i, inst := range instances {
		out[i] = inst.Type
	}
	return out
}

// IDs projects instances onto their IDs, preserving order.
func IDs(instances []Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.ID
	}
	return out
}
