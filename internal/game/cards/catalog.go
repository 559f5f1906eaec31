package cards

import "fmt"

// Type identifies a card in the fixed roster.
type Type string

const (
	SharpEye      Type = "sharp_eye"
	WaitASec      Type = "wait_a_sec"
	MeOrYou       Type = "me_or_you"
	Spellbound    Type = "spellbound"
	CriminalMummy Type = "criminal_mummy"
	ShuffleIt     Type = "shuffle_it"
	KingRaSaysNo  Type = "king_ra_says_no"
	SafeTravels   Type = "safe_travels"
	TakeALap      Type = "take_a_lap"
	GiveAndTake   Type = "give_and_take"
	AllOrNothing  Type = "all_or_nothing"
	FlipTheTable  Type = "flip_the_table"
	ThisIsOnYou   Type = "this_is_on_you"
	Mummified     Type = "mummified"
)

// Counter is the card whose only effect is cancelling a pending action.
const Counter = KingRaSaysNo

// Defuse neutralizes an elimination card draw.
const Defuse = TakeALap

// Elimination removes the drawing player from the match unless defused.
const Elimination = Mummified

// Definition describes the static properties of a card type.
type Definition struct {
	Type       Type
	Name       string
	Value      int
	Half       bool // played only as a pair of identical instances
	Cancelable bool // subject to the reaction window
	Playable   bool // may be played from hand on the owner's turn
	Targeted   bool // requires a living opponent as target
}

var catalog = map[Type]Definition{
	SharpEye:      {Type: SharpEye, Name: "Sharp Eye", Value: 1, Playable: true},
	WaitASec:      {Type: WaitASec, Name: "Wait a Sec", Value: 3, Playable: true},
	MeOrYou:       {Type: MeOrYou, Name: "Me or You", Value: 4, Cancelable: true, Playable: true, Targeted: true},
	Spellbound:    {Type: Spellbound, Name: "Spellbound", Value: 5, Cancelable: true, Playable: true, Targeted: true},
	CriminalMummy: {Type: CriminalMummy, Name: "Criminal Mummy", Value: 3, Cancelable: true, Playable: true, Targeted: true},
	ShuffleIt:     {Type: ShuffleIt, Name: "Shuffle It", Value: 3, Playable: true},
	KingRaSaysNo:  {Type: KingRaSaysNo, Name: "King Ra Says NO", Value: 4},
	SafeTravels:   {Type: SafeTravels, Name: "Safe Travels", Value: 3, Cancelable: true, Playable: true},
	TakeALap:      {Type: TakeALap, Name: "Take a Lap", Value: 6},
	GiveAndTake:   {Type: GiveAndTake, Name: "Give & Take", Value: 0, Half: true, Cancelable: true, Playable: true, Targeted: true},
	AllOrNothing:  {Type: AllOrNothing, Name: "All or Nothing", Value: 0, Half: true, Cancelable: true, Playable: true, Targeted: true},
	FlipTheTable:  {Type: FlipTheTable, Name: "Flip the Table", Value: 0, Half: true, Playable: true},
	ThisIsOnYou:   {Type: ThisIsOnYou, Name: "This is on You", Value: 0, Half: true, Cancelable: true, Playable: true, Targeted: true},
	Mummified:     {Type: Mummified, Name: "You're Mummified", Value: 0},
}

// Normal lists the single-play card types seeded N copies each.
var Normal = []Type{
	SharpEye, WaitASec, MeOrYou, Spellbound,
	CriminalMummy, ShuffleIt, KingRaSaysNo, SafeTravels,
}

// Halves lists the half-pair card types seeded N copies each.
var Halves = []Type{GiveAndTake, AllOrNothing, FlipTheTable, ThisIsOnYou}

// Lookup returns the definition for t.
func Lookup(t Type) (Definition, bool) {
	def, ok := catalog[t]
	return def, ok
}

// MustLookup returns the definition for t and panics on an unknown type.
// Only use it with types that came from the catalog.
func MustLookup(t Type) Definition {
	def, ok := catalog[t]
	if !ok {
		panic(fmt.Sprintf("cards: unknown card type %q", t))
	}
	return def
}

// Valid reports whether t is part of the roster.
func (t Type) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Value returns the catalog value of t, or 0 for unknown types.
func (t Type) Value() int {
	return catalog[t].Value
}

// Definition returns the catalog entry for t.
func (t Type) Definition() Definition {
	return catalog[t]
}

func (t Type) String() string {
	return string(t)
}

// All returns every card type in roster order.
func All() []Type {
	out := make([]Type, 0, len(catalog))
	out = append(out, Normal...)
	out = append(out, Halves...)
	return append(out, Defuse, Elimination)
}

// TotalInstances returns the number of card instances in a match of n players.
// Normal and half types contribute n each, plus n+1 defuses and n-1 elimination cards.
func TotalInstances(n int) int {
	return (len(Normal)+len(Halves))*n + (n + 1) + (n - 1)
}
