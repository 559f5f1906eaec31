package rules

import (
	"fmt"
	"strings"
)

// Phase is the match lifecycle. It only moves forward.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseGameOver Phase = "game_over"
)

func (p Phase) String() string {
	return string(p)
}

type seat struct {
	id    string
	alive bool
}

// Sequencer tracks whose turn it is, how many turns they have left and which
// seats are still alive. It knows nothing about cards; callers discard an
// eliminated player's hand themselves.
type Sequencer struct {
	seats          []seat
	current        int
	turnsRemaining int
	turn           int
	phase          Phase
	winner         string
}

// NewSequencer seats players in the given order. The match starts in the
// waiting phase.
func NewSequencer(players []string) *Sequencer {
	seats := make([]seat, 0, len(players))
	for _, id := range players {
		seats = append(seats, seat{id: strings.TrimSpace(id), alive: true})
	}
	return &Sequencer{
		seats:          seats,
		turnsRemaining: 1,
		phase:          PhaseWaiting,
	}
}

// Start moves the match from waiting to playing, first seat to act.
func (s *Sequencer) Start() error {
	if s.phase != PhaseWaiting {
		return fmt.Errorf("cannot start from phase %s", s.phase)
	}
	if len(s.seats) < 2 {
		return fmt.Errorf("need at least 2 players, have %d", len(s.seats))
	}
	s.phase = PhasePlaying
	s.current = 0
	s.turnsRemaining = 1
	s.turn = 1
	return nil
}

// Phase returns the lifecycle phase.
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// Current returns the seat holding the turn, or "" when not playing.
func (s *Sequencer) Current() string {
	if s.phase != PhasePlaying || len(s.seats) == 0 {
		return ""
	}
	return s.seats[s.current].id
}

// CurrentIndex returns the seat index of the turn holder.
func (s *Sequencer) CurrentIndex() int {
	return s.current
}

// TurnsRemaining returns how many turns the current player still owes.
func (s *Sequencer) TurnsRemaining() int {
	return s.turnsRemaining
}

// Turn counts turns taken since the match started. It changes whenever a
// turn is spent, including one of several owed by the same player.
func (s *Sequencer) Turn() int {
	return s.turn
}

// Winner returns the winner once the match is over. It is empty for a match
// that ended without survivors.
func (s *Sequencer) Winner() string {
	return s.winner
}

// IsTurnOf reports whether playerID may act as turn holder right now.
func (s *Sequencer) IsTurnOf(playerID string) bool {
	return s.phase == PhasePlaying && s.Current() == playerID
}

// Alive reports whether playerID is seated and still in the match.
func (s *Sequencer) Alive(playerID string) bool {
	idx := s.index(playerID)
	return idx >= 0 && s.seats[idx].alive
}

// Seated reports whether playerID is part of the match at all.
func (s *Sequencer) Seated(playerID string) bool {
	return s.index(playerID) >= 0
}

// Living returns the living players in seating order.
func (s *Sequencer) Living() []string {
	out := make([]string, 0, len(s.seats))
	for _, st := range s.seats {
		if st.alive {
			out = append(out, st.id)
		}
	}
	return out
}

// Others returns the living players other than playerID, in seating order
// starting from the seat after playerID.
func (s *Sequencer) Others(playerID string) []string {
	start := s.index(playerID)
	out := make([]string, 0, len(s.seats))
	for i := 1; i <= len(s.seats); i++ {
		st := s.seats[(start+i+len(s.seats))%len(s.seats)]
		if st.alive && st.id != playerID {
			out = append(out, st.id)
		}
	}
	return out
}

// EndTurn spends one of the current player's turns. When none are left the
// turn passes to the next living seat with a budget of one. With one or no
// living players left the match ends instead.
func (s *Sequencer) EndTurn() {
	if s.phase != PhasePlaying {
		return
	}
	s.turnsRemaining--
	if s.turnsRemaining <= 0 {
		s.advance(1)
		return
	}
	s.turn++
}

// GrantExtraTurns ends the current player's turn immediately and hands the
// next living seat a budget of n turns.
func (s *Sequencer) GrantExtraTurns(n int) {
	if s.phase != PhasePlaying || len(s.Living()) <= 1 {
		return
	}
	if n < 1 {
		n = 1
	}
	s.advance(n)
}

// Eliminate marks playerID dead. It reports false if the player was not
// alive. Dropping to one survivor ends the match with that survivor as
// winner; eliminating the turn holder passes the turn.
func (s *Sequencer) Eliminate(playerID string) bool {
	idx := s.index(playerID)
	if idx < 0 || !s.seats[idx].alive {
		return false
	}
	s.seats[idx].alive = false
	if s.phase != PhasePlaying {
		return true
	}

	living := s.Living()
	switch {
	case len(living) == 1:
		s.finish(living[0])
	case len(living) == 0:
		s.finish("")
	case idx == s.current:
		s.advance(1)
	}
	return true
}

// Abort ends the match without a winner.
func (s *Sequencer) Abort() {
	s.finish("")
}

func (s *Sequencer) advance(budget int) {
	living := s.Living()
	if len(living) <= 1 {
		winner := ""
		if len(living) == 1 {
			winner = living[0]
		}
		s.finish(winner)
		return
	}

	next := (s.current + 1) % len(s.seats)
	for !s.seats[next].alive {
		next = (next + 1) % len(s.seats)
	}
	s.current = next
	s.turnsRemaining = budget
	s.turn++
}

func (s *Sequencer) finish(winner string) {
	s.phase = PhaseGameOver
	s.winner = winner
}

func (s *Sequencer) index(playerID string) int {
	for i, st := range s.seats {
		if st.id == playerID {
			return i
		}
	}
	return -1
}
