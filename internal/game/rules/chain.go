package rules

// Chain is the ordered list of players who layered a counter-card onto one
// pending action, oldest first. It is a value; Push returns a new chain and
// never aliases the receiver.
type Chain struct {
	players []string
}

// Push returns a chain with playerID's counter on top.
func (c Chain) Push(playerID string) Chain {
	next := make([]string, len(c.players), len(c.players)+1)
	copy(next, c.players)
	return Chain{players: append(next, playerID)}
}

// Len is the number of counters played so far.
func (c Chain) Len() int {
	return len(c.players)
}

// Top returns the player behind the most recent counter.
func (c Chain) Top() (string, bool) {
	if len(c.players) == 0 {
		return "", false
	}
	return c.players[len(c.players)-1], true
}

// Players returns a copy of the chain, oldest first.
func (c Chain) Players() []string {
	out := make([]string, len(c.players))
	copy(out, c.players)
	return out
}

// Cancels reports whether the chain voids the original action. An odd
// number of counters cancels; an even number, zero included, lets it
// resolve.
func (c Chain) Cancels() bool {
	return len(c.players)%2 == 1
}
