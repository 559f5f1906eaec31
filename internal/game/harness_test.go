package game

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

type fakeTimer struct {
	sched   *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

// fakeScheduler only fires when a test says so. Firing runs the callback on
// the caller's goroutine, which blocks until the match has handled it.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{sched: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs the most recently armed live timer and returns its duration.
func (s *fakeScheduler) fire(t *testing.T) time.Duration {
	t.Helper()
	s.mu.Lock()
	var next *fakeTimer
	for i := len(s.timers) - 1; i >= 0; i-- {
		if !s.timers[i].stopped && !s.timers[i].fired {
			next = s.timers[i]
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		t.Fatal("no armed timer")
		return 0
	}
	next.fired = true
	s.mu.Unlock()
	next.f()
	return next.d
}

type eventLog struct {
	mu     sync.Mutex
	events []rules.Event
}

func (l *eventLog) publish(e rules.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t rules.EventType) []rules.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []rules.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) last(t *testing.T, et rules.EventType) rules.Event {
	t.Helper()
	found := l.ofType(et)
	require.NotEmpty(t, found, "no %s event", et)
	return found[len(found)-1]
}

type testMatch struct {
	*Match
	sched  *fakeScheduler
	events *eventLog
}

func newTestMatch(t *testing.T, opts Options, ids ...string) *testMatch {
	t.Helper()
	return newSeededTestMatch(t, 1, opts, ids...)
}

// newSeededTestMatch deals from a generator seeded with seed.
func newSeededTestMatch(t *testing.T, seed uint64, opts Options, ids ...string) *testMatch {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"p1", "p2"}
	}
	seats := make([]Seat, len(ids))
	for i, id := range ids {
		seats[i] = Seat{ID: id, Name: "Player " + id}
	}
	tm := &testMatch{sched: &fakeScheduler{}, events: &eventLog{}}
	m, err := NewMatch(MatchConfig{
		ID:        "match-1",
		Seats:     seats,
		Options:   opts,
		Logger:    zaptest.NewLogger(t),
		Scheduler: tm.sched,
		Rand:      rand.New(rand.NewPCG(seed, 2)),
		Publish:   tm.events.publish,
	})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(m.Close)
	tm.Match = m
	return tm
}

// rig replaces every zone with the given layout. deck is listed top first.
func (tm *testMatch) rig(t *testing.T, hands map[string][]cards.Type, deck ...cards.Type) {
	t.Helper()
	require.NoError(t, tm.call(context.Background(), func() error {
		total := len(deck)
		for id := range tm.hands {
			tm.hands[id] = zones.NewHand(instancesOf(hands[id]...)...)
			total += len(hands[id])
		}
		bottomFirst := instancesOf(deck...)
		slices.Reverse(bottomFirst)
		tm.deck = zones.NewDeck(rand.New(rand.NewPCG(7, 7)), bottomFirst...)
		tm.discard = zones.NewDiscard()
		tm.total = total
		return nil
	}))
}

func instancesOf(types ...cards.Type) []zones.Instance {
	out := make([]zones.Instance, len(types))
	for i, ct := range types {
		out[i] = zones.NewInstance(ct)
	}
	return out
}

func (tm *testMatch) submit(cmd Command) error {
	return tm.Submit(context.Background(), cmd)
}

func (tm *testMatch) state(t *testing.T) PublicState {
	t.Helper()
	st, err := tm.State(context.Background())
	require.NoError(t, err)
	return st
}

func (tm *testMatch) hand(t *testing.T, playerID string) []zones.Instance {
	t.Helper()
	h, err := tm.Hand(context.Background(), playerID)
	require.NoError(t, err)
	return h
}

func (tm *testMatch) handTypes(t *testing.T, playerID string) []cards.Type {
	t.Helper()
	return zones.Types(tm.hand(t, playerID))
}

// cardID returns the id of the first ct in playerID's hand.
func (tm *testMatch) cardID(t *testing.T, playerID string, ct cards.Type) string {
	t.Helper()
	for _, inst := range tm.hand(t, playerID) {
		if inst.Type == ct {
			return inst.ID
		}
	}
	t.Fatalf("%s holds no %s", playerID, ct)
	return ""
}

func (tm *testMatch) deckTop(t *testing.T, n int) []cards.Type {
	t.Helper()
	var out []cards.Type
	require.NoError(t, tm.call(context.Background(), func() error {
		out = zones.Types(tm.deck.PeekTop(n))
		return nil
	}))
	return out
}

func (tm *testMatch) requireConserved(t *testing.T) {
	t.Helper()
	require.NoError(t, tm.call(context.Background(), tm.checkConservation))
}

func (tm *testMatch) play(t *testing.T, playerID string, ct cards.Type, target string) {
	t.Helper()
	require.NoError(t, tm.submit(PlayCard{PlayerID: playerID, InstanceID: tm.cardID(t, playerID, ct), Target: target}))
}
