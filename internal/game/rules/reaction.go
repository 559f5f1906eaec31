package rules

import (
	"errors"
	"slices"
	"time"

	"github.com/Tantawi65/khofogame/internal/game/cards"
)

var (
	// ErrNotPrompted is returned for a response from a player the current
	// round did not ask.
	ErrNotPrompted = errors.New("player was not prompted this round")
	// ErrAlreadyResponded is returned for a second response in one round.
	ErrAlreadyResponded = errors.New("player already responded this round")
)

// Outcome is how a closed reaction window resolves.
type Outcome string

const (
	OutcomeExecute Outcome = "execute"
	OutcomeCancel  Outcome = "cancel"
)

// Window is the reaction window for one cancelable play. All transitions
// return a new value; the match owns the single live copy.
type Window struct {
	Generation uint64
	Card       cards.Type
	Actor      string
	Target     string
	Round      int
	Prompted   []string
	Responded  []string
	Chain      Chain
	Deadline   time.Time
}

// Open starts the first round of a window for card played by actor. Every
// player in prompted may respond until deadline.
func Open(generation uint64, card cards.Type, actor, target string, prompted []string, deadline time.Time) Window {
	return Window{
		Generation: generation,
		Card:       card,
		Actor:      actor,
		Target:     target,
		Round:      1,
		Prompted:   slices.Clone(prompted),
		Responded:  nil,
		Deadline:   deadline,
	}
}

// IsPrompted reports whether playerID was asked in the current round.
func (w Window) IsPrompted(playerID string) bool {
	return slices.Contains(w.Prompted, playerID)
}

// HasResponded reports whether playerID answered in the current round.
func (w Window) HasResponded(playerID string) bool {
	return slices.Contains(w.Responded, playerID)
}

// Respond records that playerID answered the current round. Declines need
// nothing more; they never close the round early.
func (w Window) Respond(playerID string) (Window, error) {
	if !w.IsPrompted(playerID) {
		return w, ErrNotPrompted
	}
	if w.HasResponded(playerID) {
		return w, ErrAlreadyResponded
	}
	next := w.clone()
	next.Responded = append(next.Responded, playerID)
	return next, nil
}

// Counter layers playerID's counter-card onto the chain. The caller has
// already recorded the response and spent the card.
func (w Window) Counter(playerID string) Window {
	next := w.clone()
	next.Chain = w.Chain.Push(playerID)
	return next
}

// Eligible filters holders down to the players who may counter in a new
// round: anyone holding a counter-card who has not responded this round.
// The original actor is eligible like everyone else.
func (w Window) Eligible(holders []string) []string {
	out := make([]string, 0, len(holders))
	for _, id := range holders {
		if !w.HasResponded(id) {
			out = append(out, id)
		}
	}
	return out
}

// NextRound opens a fresh round for prompted with a new deadline and
// generation. Responses from the previous round are forgotten.
func (w Window) NextRound(generation uint64, prompted []string, deadline time.Time) Window {
	next := w.clone()
	next.Generation = generation
	next.Round++
	next.Prompted = slices.Clone(prompted)
	next.Responded = nil
	next.Deadline = deadline
	return next
}

// Outcome evaluates the chain parity. It is read once, when the window
// closes.
func (w Window) Outcome() Outcome {
	if w.Chain.Cancels() {
		return OutcomeCancel
	}
	return OutcomeExecute
}

// Counters is the total number of counter-cards layered so far.
func (w Window) Counters() int {
	return w.Chain.Len()
}

func (w Window) clone() Window {
	next := w
	next.Prompted = slices.Clone(w.Prompted)
	next.Responded = slices.Clone(w.Responded)
	return next
}
