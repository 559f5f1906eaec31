package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/rules"
)

// ResultRecorder persists finished matches.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result Result) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithScheduler replaces the wall clock used for match timers.
func WithScheduler(s Scheduler) ManagerOption {
	return func(m *Manager) { m.sched = s }
}

// WithRand makes every new match draw its shuffles from seed-derived
// generators.
func WithRand(seed uint64) ManagerOption {
	return func(m *Manager) { m.seed = &seed }
}

// WithRecorder stores every finished match through r.
func WithRecorder(r ResultRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithOptions sets the timings and rule switches of new matches.
func WithOptions(opts Options) ManagerOption {
	return func(m *Manager) { m.opts = opts }
}

// Manager owns the running matches and fans their events out on one bus.
type Manager struct {
	logger   *zap.Logger
	bus      *rules.EventBus
	opts     Options
	sched    Scheduler
	recorder ResultRecorder
	seed     *uint64
	created  uint64

	mu      sync.RWMutex
	matches map[string]*Match
	players map[string]string
	closed  bool

	recording sync.WaitGroup
}

// NewManager creates a manager publishing on bus.
func NewManager(logger *zap.Logger, bus *rules.EventBus, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = rules.NewEventBus()
	}
	m := &Manager{
		logger:  logger,
		bus:     bus,
		opts:    DefaultOptions(),
		matches: make(map[string]*Match),
		players: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bus returns the bus every match publishes on.
func (m *Manager) Bus() *rules.EventBus {
	return m.bus
}

// Create starts a match for seats. A player can sit in one match at a time.
func (m *Manager) Create(seats []Seat) (*Match, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrMatchClosed
	}
	for _, s := range seats {
		if id, busy := m.players[s.ID]; busy {
			m.mu.Unlock()
			return nil, fmt.Errorf("player %s is already in match %s", s.ID, id)
		}
	}

	cfg := MatchConfig{
		ID:        uuid.New().String(),
		Seats:     seats,
		Options:   m.opts,
		Logger:    m.logger,
		Scheduler: m.sched,
		Publish:   m.bus.Publish,
		OnFinish:  m.finished,
	}
	if m.seed != nil {
		m.created++
		cfg.Rand = rand.New(rand.NewPCG(*m.seed, m.created))
	}
	match, err := NewMatch(cfg)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	m.matches[match.ID()] = match
	for _, s := range match.Seats() {
		m.players[s.ID] = match.ID()
	}
	m.mu.Unlock()

	if err := match.Start(); err != nil {
		m.Remove(match.ID())
		return nil, fmt.Errorf("failed to start match: %w", err)
	}
	m.logger.Info("match created",
		zap.String("match_id", match.ID()),
		zap.Int("players", len(seats)),
	)
	return match, nil
}

// Get returns a running match.
func (m *Manager) Get(matchID string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// MatchOf returns the match playerID is seated in.
func (m *Manager) MatchOf(playerID string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.players[playerID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.matches[id], nil
}

// Submit routes cmd to matchID.
func (m *Manager) Submit(ctx context.Context, matchID string, cmd Command) error {
	match, err := m.Get(matchID)
	if err != nil {
		return err
	}
	return match.Submit(ctx, cmd)
}

// Disconnect treats a dropped connection as leaving the player's match.
func (m *Manager) Disconnect(ctx context.Context, playerID string) error {
	match, err := m.MatchOf(playerID)
	if err != nil {
		return nil
	}
	m.logger.Info("player disconnected",
		zap.String("player_id", playerID),
		zap.String("match_id", match.ID()),
	)
	return match.Submit(ctx, Leave{PlayerID: playerID})
}

// List returns the ids of running matches in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove closes a match and forgets it.
func (m *Manager) Remove(matchID string) {
	m.mu.Lock()
	match, ok := m.matches[matchID]
	if ok {
		delete(m.matches, matchID)
		for _, s := range match.Seats() {
			if m.players[s.ID] == matchID {
				delete(m.players, s.ID)
			}
		}
	}
	m.mu.Unlock()
	if ok {
		match.Close()
	}
}

// Close shuts down every match and waits for pending result writes.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
	m.recording.Wait()
}

// finished runs on the match goroutine, so it must not call back into
// the match. Cleanup and persistence happen elsewhere.
func (m *Manager) finished(result Result) {
	m.recording.Add(1)
	go func() {
		defer m.recording.Done()
		m.Remove(result.MatchID)
		if m.recorder == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.recorder.RecordResult(ctx, result); err != nil {
			m.logger.Error("failed to record match result",
				zap.String("match_id", result.MatchID),
				zap.Error(err),
			)
		}
	}()
}
