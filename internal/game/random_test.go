package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

const (
	randomSeeds = 60
	randomSteps = 400
)

// tableView is what a random player can see or guess at one step.
type tableView struct {
	seats   []string
	hands   map[string][]zones.Instance
	deckTop []zones.Instance
	deckLen int
	pending *PendingView
	playing bool
}

func (tm *testMatch) table(t *testing.T) tableView {
	t.Helper()
	var v tableView
	require.NoError(t, tm.call(context.Background(), func() error {
		v.hands = make(map[string][]zones.Instance, len(tm.seats))
		for _, s := range tm.seats {
			v.seats = append(v.seats, s.ID)
			v.hands[s.ID] = tm.hands[s.ID].Cards()
		}
		v.deckTop = tm.deck.PeekTop(flipTheTablePeek)
		v.deckLen = tm.deck.Len()
		if tm.pending != nil {
			v.pending = tm.pending.view()
		}
		v.playing = tm.seq.Phase() == rules.PhasePlaying
		return nil
	}))
	return v
}

// requireInvariants checks what must hold after every command: nothing
// aborted, every card instance accounted for, one in-flight action at most.
func (tm *testMatch) requireInvariants(t *testing.T) {
	t.Helper()
	require.NoError(t, tm.call(context.Background(), func() error {
		if tm.aborted {
			return errors.New("match aborted")
		}
		if tm.finished {
			return nil
		}
		return tm.checkConservation()
	}))
	require.LessOrEqual(t, tm.sched.live(), 1, "more than one armed timer")
}

func pick[T any](rng *rand.Rand, from []T) (T, bool) {
	var zero T
	if len(from) == 0 {
		return zero, false
	}
	return from[rng.IntN(len(from))], true
}

func shuffledIDs(rng *rand.Rand, insts []zones.Instance) []string {
	ids := zones.IDs(insts)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// randomCommand builds a plausible command for a random player. Most of them
// will be rejected; the match must stay consistent either way.
func randomCommand(rng *rand.Rand, v tableView) Command {
	player, _ := pick(rng, v.seats)
	if v.pending != nil && v.pending.Kind != PendingReaction && rng.IntN(10) < 7 {
		player = v.pending.OwnerID
	}
	target, _ := pick(rng, v.seats)
	named, _ := pick(rng, append(append([]cards.Type{cards.Defuse, cards.Elimination}, cards.Normal...), cards.Halves...))

	switch rng.IntN(11) {
	case 0, 1, 2:
		inst, ok := pick(rng, v.hands[player])
		if !ok {
			return DrawCard{PlayerID: player}
		}
		cmd := PlayCard{PlayerID: player, InstanceID: inst.ID, Target: target}
		if inst.Type == cards.Spellbound && rng.IntN(2) == 0 {
			cmd.Named = named
		}
		return cmd
	case 3:
		return DrawCard{PlayerID: player}
	case 4:
		var gen uint64
		if v.pending != nil {
			gen = v.pending.Generation
		}
		if rng.IntN(8) == 0 {
			gen++
		}
		return RespondReaction{PlayerID: player, Accept: rng.IntN(2) == 0, Generation: gen}
	case 5:
		return SelectBlindSteal{PlayerID: player, Index: rng.IntN(8) - 1}
	case 6:
		whose := player
		if v.pending != nil && v.pending.TargetID != "" && rng.IntN(2) == 0 {
			whose = v.pending.TargetID
		}
		return SubmitHandOrder{PlayerID: player, Order: shuffledIDs(rng, v.hands[whose])}
	case 7:
		return SubmitDeckTopOrder{PlayerID: player, Order: shuffledIDs(rng, v.deckTop)}
	case 8:
		inst, _ := pick(rng, v.hands[target])
		return BurnCard{PlayerID: player, InstanceID: inst.ID}
	case 9:
		return NameCard{PlayerID: player, Target: target, Card: named}
	default:
		if rng.IntN(12) == 0 {
			return Leave{PlayerID: player}
		}
		return ChooseInsertion{PlayerID: player, Offset: rng.IntN(v.deckLen+3) - 1}
	}
}

func TestRandomCommandSequencesKeepInvariants(t *testing.T) {
	for seed := uint64(1); seed <= randomSeeds; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			opts := Options{ChooseMummyPosition: seed%2 == 0}
			players := []string{"p1", "p2", "p3", "p4", "p5"}[:2+int(seed%4)]
			tm := newSeededTestMatch(t, seed, opts, players...)
			rng := rand.New(rand.NewPCG(seed, 99))

			for step := 0; step < randomSteps; step++ {
				v := tm.table(t)
				if !v.playing {
					break
				}
				if tm.sched.live() > 0 && rng.IntN(6) == 0 {
					tm.sched.fire(t)
				} else {
					cmd := randomCommand(rng, v)
					err := tm.submit(cmd)
					require.NotErrorIs(t, err, ErrMatchClosed, "step %d: %#v", step, cmd)
				}
				tm.requireInvariants(t)
			}
		})
	}
}
