package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/rules"
)

const replayVersion = 1

// Replay is the sequence of public snapshots a match broadcast, in order.
// Private hands are never recorded.
type Replay struct {
	MatchID      string
	States       []PublicState
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay for matchID.
func NewReplay(matchID string) *Replay {
	return &Replay{MatchID: matchID}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(st PublicState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, st)
}

// Start rewinds playback.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the snapshot at the cursor and advances it.
func (r *Replay) Next() (PublicState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex >= len(r.States) {
		return PublicState{}, false
	}
	st := r.States[r.CurrentIndex]
	r.CurrentIndex++
	return st, true
}

// Previous steps the cursor back and returns that snapshot.
func (r *Replay) Previous() (PublicState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex == 0 {
		return PublicState{}, false
	}
	r.CurrentIndex--
	return r.States[r.CurrentIndex], true
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// StateAt returns the snapshot at index.
func (r *Replay) StateAt(index int) (PublicState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.States) {
		return PublicState{}, false
	}
	return r.States[index], true
}

type replayHeader struct {
	MatchID    string
	SavedAt    time.Time
	Version    int
	StateCount int
}

func replayPath(directory, matchID string) string {
	return filepath.Join(directory, matchID+".replay")
}

// SaveToFile writes the replay as gzipped gob to directory/<match>.replay.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(replayPath(directory, r.MatchID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	header := replayHeader{
		MatchID:    r.MatchID,
		SavedAt:    time.Now(),
		Version:    replayVersion,
		StateCount: len(r.States),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i := range r.States {
		if err := enc.Encode(&r.States[i]); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, matchID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.MatchID)
	replay.States = make([]PublicState, 0, header.StateCount)
	for i := 0; i < header.StateCount; i++ {
		var st PublicState
		if err := dec.Decode(&st); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, st)
	}
	return replay, nil
}

// ReplayRecorder listens on a match bus, records every public state and
// writes the replay to disk when the match ends.
type ReplayRecorder struct {
	logger  *zap.Logger
	saveDir string

	mu      sync.Mutex
	replays map[string]*Replay
	saving  sync.WaitGroup
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		saveDir: saveDir,
		replays: make(map[string]*Replay),
	}
}

// Attach subscribes the recorder to bus and returns the handle for
// Unsubscribe.
func (rr *ReplayRecorder) Attach(bus *rules.EventBus) int {
	return bus.Subscribe(rr.onEvent)
}

// onEvent runs on the match goroutine; disk writes happen elsewhere.
func (rr *ReplayRecorder) onEvent(e rules.Event) {
	switch e.Type {
	case rules.EventState:
		st, ok := e.Data.(PublicState)
		if !ok {
			return
		}
		rr.mu.Lock()
		replay, exists := rr.replays[e.MatchID]
		if !exists {
			replay = NewReplay(e.MatchID)
			rr.replays[e.MatchID] = replay
		}
		rr.mu.Unlock()
		replay.RecordState(st)
	case rules.EventGameOver:
		rr.mu.Lock()
		replay, exists := rr.replays[e.MatchID]
		delete(rr.replays, e.MatchID)
		rr.mu.Unlock()
		if !exists {
			return
		}
		rr.saving.Add(1)
		go func() {
			defer rr.saving.Done()
			if err := replay.SaveToFile(rr.saveDir); err != nil {
				rr.logger.Error("failed to save replay", zap.String("match_id", replay.MatchID), zap.Error(err))
				return
			}
			rr.logger.Info("saved replay",
				zap.String("match_id", replay.MatchID),
				zap.Int("state_count", replay.Size()),
				zap.String("directory", rr.saveDir),
			)
		}()
	}
}

// Recording returns the in-progress replay of matchID.
func (rr *ReplayRecorder) Recording(matchID string) (*Replay, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	replay, ok := rr.replays[matchID]
	return replay, ok
}

// Load reads a saved replay.
func (rr *ReplayRecorder) Load(matchID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, matchID)
}

// Close waits for pending writes. Matches still running are not saved.
func (rr *ReplayRecorder) Close() {
	rr.saving.Wait()
	rr.mu.Lock()
	clear(rr.replays)
	rr.mu.Unlock()
}
