package game

import "github.com/Tantawi65/khofogame/internal/game/cards"

// Command is a player intent submitted to a match. The set is closed; the
// match dispatches on the concrete type.
type Command interface {
	Player() string
	command()
}

// PlayCard spends a card from hand. Target is required for targeted cards.
// Named optionally pre-selects the card type a Spellbound asks for; without
// it the asker is prompted once the play resolves.
type PlayCard struct {
	PlayerID   string
	InstanceID string
	Target     string
	Named      cards.Type
}

// DrawCard draws the top card and ends one turn.
type DrawCard struct {
	PlayerID string
}

// RespondReaction answers a reaction prompt. Generation, when non-zero, must
// match the prompt being answered; a mismatched answer is stale.
type RespondReaction struct {
	PlayerID   string
	Accept     bool
	Generation uint64
}

// SelectBlindSteal picks a position in the victim's hand.
type SelectBlindSteal struct {
	PlayerID string
	Index    int
}

// SubmitHandOrder rearranges the submitter's own hand. Order must list every
// card in hand exactly once.
type SubmitHandOrder struct {
	PlayerID string
	Order    []string
}

// SubmitDeckTopOrder rearranges the cards revealed by Flip the Table.
type SubmitDeckTopOrder struct {
	PlayerID string
	Order    []string
}

// BurnCard discards one card from the hand revealed by All or Nothing.
type BurnCard struct {
	PlayerID   string
	InstanceID string
}

// NameCard names the card type a Spellbound asks the target for.
type NameCard struct {
	PlayerID string
	Target   string
	Card     cards.Type
}

// ChooseInsertion places a defused elimination card Offset cards below the
// top of the deck.
type ChooseInsertion struct {
	PlayerID string
	Offset   int
}

// Leave removes the player from the match, voluntary or on disconnect.
type Leave struct {
	PlayerID string
}

func (c PlayCard) Player() string           { return c.PlayerID }
func (c DrawCard) Player() string           { return c.PlayerID }
func (c RespondReaction) Player() string    { return c.PlayerID }
func (c SelectBlindSteal) Player() string   { return c.PlayerID }
func (c SubmitHandOrder) Player() string    { return c.PlayerID }
func (c SubmitDeckTopOrder) Player() string { return c.PlayerID }
func (c BurnCard) Player() string           { return c.PlayerID }
func (c NameCard) Player() string           { return c.PlayerID }
func (c ChooseInsertion) Player() string    { return c.PlayerID }
func (c Leave) Player() string              { return c.PlayerID }

func (PlayCard) command()           {}
func (DrawCard) command()           {}
func (RespondReaction) command()    {}
func (SelectBlindSteal) command()   {}
func (SubmitHandOrder) command()    {}
func (SubmitDeckTopOrder) command() {}
func (BurnCard) command()           {}
func (NameCard) command()           {}
func (ChooseInsertion) command()    {}
func (Leave) command()              {}
