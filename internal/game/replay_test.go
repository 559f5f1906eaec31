package game

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tantawi65/khofogame/internal/game/rules"
)

func snapshot(deck int) PublicState {
	return PublicState{MatchID: "m-1", Phase: rules.PhasePlaying, DeckCount: deck}
}

func TestReplayNavigation(t *testing.T) {
	replay := NewReplay("m-1")
	for deck := 30; deck > 27; deck-- {
		replay.RecordState(snapshot(deck))
	}
	require.Equal(t, 3, replay.Size())

	st, ok := replay.Next()
	require.True(t, ok)
	assert.Equal(t, 30, st.DeckCount)
	st, _ = replay.Next()
	assert.Equal(t, 29, st.DeckCount)

	st, ok = replay.Previous()
	require.True(t, ok)
	assert.Equal(t, 29, st.DeckCount)

	replay.Start()
	_, ok = replay.Previous()
	assert.False(t, ok)

	for range 3 {
		_, ok = replay.Next()
		require.True(t, ok)
	}
	_, ok = replay.Next()
	assert.False(t, ok)

	st, ok = replay.StateAt(2)
	require.True(t, ok)
	assert.Equal(t, 28, st.DeckCount)
	_, ok = replay.StateAt(3)
	assert.False(t, ok)
}

func TestReplaySaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "replays")
	replay := NewReplay("m-1")
	replay.RecordState(snapshot(30))
	withPending := snapshot(29)
	withPending.Pending = &PendingView{Kind: PendingReaction, ActorID: "p1", Generation: 3}
	replay.RecordState(withPending)

	require.NoError(t, replay.SaveToFile(dir))
	_, err := os.Stat(filepath.Join(dir, "m-1.replay"))
	require.NoError(t, err)

	loaded, err := LoadReplayFromFile(dir, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", loaded.MatchID)
	require.Equal(t, 2, loaded.Size())
	assert.Nil(t, loaded.States[0].Pending)
	require.NotNil(t, loaded.States[1].Pending)
	assert.Equal(t, uint64(3), loaded.States[1].Pending.Generation)
}

func TestReplayLoadMissingFile(t *testing.T) {
	_, err := LoadReplayFromFile(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestReplayRecorderSavesFinishedMatch(t *testing.T) {
	dir := t.TempDir()
	bus := rules.NewEventBus()
	rr := NewReplayRecorder(zaptest.NewLogger(t), dir)
	handle := rr.Attach(bus)
	t.Cleanup(func() { bus.Unsubscribe(handle) })

	mgr := NewManager(zaptest.NewLogger(t), bus, WithScheduler(&fakeScheduler{}), WithRand(3))
	t.Cleanup(mgr.Close)

	match, err := mgr.Create(seats("alice", "bob"))
	require.NoError(t, err)

	recording, ok := rr.Recording(match.ID())
	require.True(t, ok)
	assert.Positive(t, recording.Size())

	require.NoError(t, mgr.Disconnect(context.Background(), "bob"))
	rr.Close()

	_, ok = rr.Recording(match.ID())
	assert.False(t, ok)

	loaded, err := rr.Load(match.ID())
	require.NoError(t, err)
	last, ok := loaded.StateAt(loaded.Size() - 1)
	require.True(t, ok)
	assert.Equal(t, rules.PhaseGameOver, last.Phase)
	assert.Equal(t, "alice", last.WinnerID)
}

func TestReplayRecorderIgnoresOtherEvents(t *testing.T) {
	rr := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	rr.onEvent(rules.NewEvent(rules.EventTurnStarted, "m-1", TurnStartedData{PlayerID: "p1"}))
	rr.onEvent(rules.NewEvent(rules.EventGameOver, "m-1", GameOverData{}))
	rr.Close()

	_, ok := rr.Recording("m-1")
	assert.False(t, ok)
	_, err := rr.Load("m-1")
	assert.Error(t, err)
}
